// internal/service/dispatch/dispatcher_test.go
package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"postflow-service/internal/domain/post"
	"postflow-service/internal/scheduler"
	ws "postflow-service/internal/websocket"
)

type fakePublisher struct {
	mu       sync.Mutex
	failures map[string]int // post ID -> remaining failures before success
	calls    map[string]int
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failures: map[string]int{}, calls: map[string]int{}}
}

func (f *fakePublisher) failTimes(postID string, n int) { f.failures[postID] = n }

func (f *fakePublisher) Publish(_ context.Context, p post.ScheduledPost) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[p.ID]++
	if f.failures[p.ID] > 0 {
		f.failures[p.ID]--
		return nil, errors.New("platform unavailable")
	}
	return map[string]string{"instagram": "ig-" + p.ID}, nil
}

type fakePostStore struct {
	mu     sync.Mutex
	states map[string][]post.Status
}

func newFakePostStore() *fakePostStore {
	return &fakePostStore{states: map[string][]post.Status{}}
}

func (f *fakePostStore) UpdateState(_ context.Context, p *post.ScheduledPost) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[p.ID] = append(f.states[p.ID], p.Status)
	return nil
}

func (f *fakePostStore) history(postID string) []post.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[postID]
}

type fakeCounter struct {
	mu     sync.Mutex
	counts map[int64]int
}

func newFakeCounter() *fakeCounter { return &fakeCounter{counts: map[int64]int{}} }

func (f *fakeCounter) IncrementPublished(_ context.Context, campaignID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[campaignID]++
	return nil
}

type fakeGuard struct {
	held map[int64]bool
}

func (f *fakeGuard) Held(_ context.Context, campaignID int64) (bool, error) {
	return f.held[campaignID], nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []ws.Event
}

func (f *fakeSink) Broadcast(evt ws.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
}

func (f *fakeSink) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func duePost(campaignID int64, position int) post.ScheduledPost {
	return post.ScheduledPost{
		ID:               ulid.Make().String(),
		CampaignID:       campaignID,
		ScheduledTime:    time.Now().Add(-time.Minute),
		CampaignPosition: position,
		Content:          post.ContentAssignment{Caption: "hello"},
		Status:           post.StatusScheduled,
	}
}

type dispatchHarness struct {
	queue     *scheduler.PublishQueue
	publisher *fakePublisher
	store     *fakePostStore
	counter   *fakeCounter
	guard     *fakeGuard
	sink      *fakeSink
	d         *Dispatcher
}

func newHarness(t *testing.T, cfg Config) *dispatchHarness {
	t.Helper()
	h := &dispatchHarness{
		queue:     scheduler.NewPublishQueue(),
		publisher: newFakePublisher(),
		store:     newFakePostStore(),
		counter:   newFakeCounter(),
		guard:     &fakeGuard{held: map[int64]bool{}},
		sink:      &fakeSink{},
	}
	h.d = NewDispatcher(h.queue, h.store, h.counter, h.publisher, h.guard, h.sink, cfg, zap.NewNop())
	return h
}

func TestTickPublishesDuePosts(t *testing.T) {
	h := newHarness(t, Config{Workers: 2, MaxRetries: 3})

	p1 := duePost(1, 1)
	p2 := duePost(1, 2)
	h.queue.Index(p1, p2)

	h.d.Tick(context.Background(), time.Now())

	assert.Equal(t, 0, h.queue.Len(), "published posts leave the index")
	assert.Equal(t, 2, h.counter.counts[1])
	assert.Equal(t, []post.Status{post.StatusQueued, post.StatusPublished}, h.store.history(p1.ID))
	assert.Equal(t, []post.Status{post.StatusQueued, post.StatusPublished}, h.store.history(p2.ID))
	assert.ElementsMatch(t, []string{"post.queued", "post.queued", "post.published", "post.published"}, h.sink.types())
}

func TestTickSkipsFuturePosts(t *testing.T) {
	h := newHarness(t, Config{Workers: 1, MaxRetries: 3})

	future := duePost(1, 1)
	future.ScheduledTime = time.Now().Add(time.Hour)
	h.queue.Index(future)

	h.d.Tick(context.Background(), time.Now())

	assert.Equal(t, 1, h.queue.Len())
	assert.Equal(t, 0, h.publisher.calls[future.ID])
}

func TestTickRetriesFailedAttemptInline(t *testing.T) {
	h := newHarness(t, Config{Workers: 1, MaxRetries: 3})

	p := duePost(7, 1)
	h.queue.Index(p)
	h.publisher.failTimes(p.ID, 2)

	h.d.Tick(context.Background(), time.Now())

	assert.Equal(t, 3, h.publisher.calls[p.ID])
	assert.Equal(t, 1, h.counter.counts[7])
	assert.Equal(t, 0, h.queue.Len())

	history := h.store.history(p.ID)
	require.NotEmpty(t, history)
	assert.Equal(t, post.StatusPublished, history[len(history)-1])
	assert.Contains(t, h.sink.types(), "post.retrying")
}

func TestTickDropsPostAfterRetryBudget(t *testing.T) {
	h := newHarness(t, Config{Workers: 1, MaxRetries: 2})

	p := duePost(3, 1)
	h.queue.Index(p)
	h.publisher.failTimes(p.ID, 10)

	h.d.Tick(context.Background(), time.Now())

	assert.Equal(t, 2, h.publisher.calls[p.ID], "one initial attempt plus one retry")
	assert.Equal(t, 0, h.counter.counts[3])
	assert.Equal(t, 0, h.queue.Len(), "exhausted posts leave the index")

	history := h.store.history(p.ID)
	require.NotEmpty(t, history)
	assert.Equal(t, post.StatusFailed, history[len(history)-1])
	assert.Contains(t, h.sink.types(), "post.failed")
}

func TestTickPublishesPostRecoveredFromStaleClaim(t *testing.T) {
	h := newHarness(t, Config{Workers: 1, MaxRetries: 3})

	// A previous process died between claim and publish, leaving the post
	// queued. The boot rebuild resets it before indexing.
	stale := duePost(2, 1)
	stale.Status = post.StatusQueued
	require.True(t, scheduler.Recover(&stale))
	h.queue.Index(stale)

	h.d.Tick(context.Background(), time.Now())

	assert.Equal(t, 1, h.publisher.calls[stale.ID])
	assert.Equal(t, 0, h.queue.Len())
	history := h.store.history(stale.ID)
	require.NotEmpty(t, history)
	assert.Equal(t, post.StatusPublished, history[len(history)-1])
}

func TestTickSkipsRegeneratingCampaigns(t *testing.T) {
	h := newHarness(t, Config{Workers: 1, MaxRetries: 3})

	locked := duePost(5, 1)
	free := duePost(6, 1)
	h.queue.Index(locked, free)
	h.guard.held[5] = true

	h.d.Tick(context.Background(), time.Now())

	assert.Equal(t, 0, h.publisher.calls[locked.ID])
	assert.Equal(t, 1, h.publisher.calls[free.ID])

	remaining, ok := h.queue.Get(locked.ID)
	require.True(t, ok)
	assert.Equal(t, post.StatusScheduled, remaining.Status)
}

func TestTickSkipsPausedCampaigns(t *testing.T) {
	h := newHarness(t, Config{Workers: 1, MaxRetries: 3})

	p := duePost(9, 1)
	h.queue.Index(p)
	h.queue.SetCampaignPaused(9, true)

	h.d.Tick(context.Background(), time.Now())

	assert.Equal(t, 0, h.publisher.calls[p.ID])
	remaining, ok := h.queue.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, post.StatusScheduled, remaining.Status)
}

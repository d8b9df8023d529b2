// internal/scheduler/queue.go
package scheduler

import (
	"sort"
	"sync"
	"time"

	"postflow-service/internal/domain/post"
	xerrors "postflow-service/internal/pkg/errors"
)

// PublishQueue is a sorted in-memory index over posts in {scheduled, queued},
// per campaign and globally. It holds no publishing logic; persistence is the
// caller's concern. All state transitions go through the queue so that claim
// is an atomic compare-and-set: at most one in-flight attempt per post.
type PublishQueue struct {
	mu     sync.RWMutex
	posts  map[string]*post.ScheduledPost
	paused map[int64]bool
}

func NewPublishQueue() *PublishQueue {
	return &PublishQueue{
		posts:  make(map[string]*post.ScheduledPost),
		paused: make(map[int64]bool),
	}
}

// Index adds or refreshes posts in the queue. Terminal posts are ignored.
func (q *PublishQueue) Index(posts ...post.ScheduledPost) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range posts {
		if p.Status.IsTerminal() {
			continue
		}
		cp := p
		q.posts[p.ID] = &cp
	}
}

// Remove drops a post from the index regardless of state.
func (q *PublishQueue) Remove(postID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.posts, postID)
}

// RemoveCampaign drops every indexed post of a campaign, typically before
// re-indexing after regeneration or on campaign deletion.
func (q *PublishQueue) RemoveCampaign(campaignID int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, p := range q.posts {
		if p.CampaignID == campaignID {
			delete(q.posts, id)
		}
	}
	delete(q.paused, campaignID)
}

// SetCampaignPaused toggles dispatch eligibility for a campaign. Paused
// campaigns keep their posts indexed but DueBefore skips them.
func (q *PublishQueue) SetCampaignPaused(campaignID int64, paused bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if paused {
		q.paused[campaignID] = true
		return
	}
	delete(q.paused, campaignID)
}

// Get returns a copy of an indexed post.
func (q *PublishQueue) Get(postID string) (post.ScheduledPost, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	p, ok := q.posts[postID]
	if !ok {
		return post.ScheduledPost{}, false
	}
	return copyPost(p), true
}

// DueBefore returns copies of all scheduled posts with scheduled_time <= ts
// whose campaign is not paused, ordered by scheduled_time ascending, ties by
// campaign position.
func (q *PublishQueue) DueBefore(ts time.Time) []post.ScheduledPost {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var due []post.ScheduledPost
	for _, p := range q.posts {
		if p.Status != post.StatusScheduled {
			continue
		}
		if q.paused[p.CampaignID] {
			continue
		}
		if p.ScheduledTime.After(ts) {
			continue
		}
		due = append(due, copyPost(p))
	}
	sortPending(due)
	return due
}

// Pending returns up to limit pending (scheduled or queued) posts of a
// campaign in queue order. A non-positive limit returns all of them.
func (q *PublishQueue) Pending(campaignID int64, limit int) []post.ScheduledPost {
	q.mu.RLock()
	defer q.mu.RUnlock()

	pending := q.campaignPendingLocked(campaignID)
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}

// PositionOf returns the 1-based rank of a post within its campaign's
// pending set.
func (q *PublishQueue) PositionOf(postID string) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	p, ok := q.posts[postID]
	if !ok {
		return 0, xerrors.ErrNotFound
	}
	for i, candidate := range q.campaignPendingLocked(p.CampaignID) {
		if candidate.ID == postID {
			return i + 1, nil
		}
	}
	return 0, xerrors.ErrNotFound
}

// Claim atomically moves a post from scheduled to queued. A concurrent
// claimer loses with ErrPostAlreadyClaimed and must not start a publish
// attempt. The queue lock is held only for the compare-and-set, never for
// the publish call itself.
func (q *PublishQueue) Claim(postID string) (post.ScheduledPost, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.posts[postID]
	if !ok {
		return post.ScheduledPost{}, xerrors.ErrNotFound
	}
	if q.paused[p.CampaignID] {
		return post.ScheduledPost{}, xerrors.ErrCampaignPaused
	}
	if p.Status == post.StatusQueued {
		return post.ScheduledPost{}, xerrors.ErrPostAlreadyClaimed
	}
	if err := Claim(p); err != nil {
		return post.ScheduledPost{}, err
	}
	return copyPost(p), nil
}

// MarkPublished finalizes a successful attempt and drops the post from the
// index (published is terminal).
func (q *PublishQueue) MarkPublished(postID string, platformPostIDs map[string]string) (post.ScheduledPost, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.posts[postID]
	if !ok {
		return post.ScheduledPost{}, xerrors.ErrNotFound
	}
	if err := MarkPublished(p, platformPostIDs); err != nil {
		return post.ScheduledPost{}, err
	}
	result := copyPost(p)
	delete(q.posts, postID)
	return result, nil
}

// MarkFailed records a failed attempt. The post stays indexed so the caller
// can immediately Requeue it or Remove it once retries are exhausted.
func (q *PublishQueue) MarkFailed(postID, reason string) (post.ScheduledPost, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.posts[postID]
	if !ok {
		return post.ScheduledPost{}, xerrors.ErrNotFound
	}
	if err := MarkFailed(p, reason); err != nil {
		return post.ScheduledPost{}, err
	}
	return copyPost(p), nil
}

// Requeue re-arms a failed post while its retry budget allows; otherwise the
// post is dropped from the index and the exhaustion error returned.
func (q *PublishQueue) Requeue(postID string, maxRetries int) (post.ScheduledPost, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.posts[postID]
	if !ok {
		return post.ScheduledPost{}, xerrors.ErrNotFound
	}
	if err := Requeue(p, maxRetries); err != nil {
		if xerrors.Is(err, xerrors.ErrRetriesExhausted) {
			delete(q.posts, postID)
		}
		return post.ScheduledPost{}, err
	}
	return copyPost(p), nil
}

// Len reports the number of indexed posts.
func (q *PublishQueue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.posts)
}

func (q *PublishQueue) campaignPendingLocked(campaignID int64) []post.ScheduledPost {
	var pending []post.ScheduledPost
	for _, p := range q.posts {
		if p.CampaignID != campaignID {
			continue
		}
		if p.Status != post.StatusScheduled && p.Status != post.StatusQueued {
			continue
		}
		pending = append(pending, copyPost(p))
	}
	sortPending(pending)
	return pending
}

func sortPending(posts []post.ScheduledPost) {
	sort.Slice(posts, func(a, b int) bool {
		if posts[a].ScheduledTime.Equal(posts[b].ScheduledTime) {
			return posts[a].CampaignPosition < posts[b].CampaignPosition
		}
		return posts[a].ScheduledTime.Before(posts[b].ScheduledTime)
	})
}

func copyPost(p *post.ScheduledPost) post.ScheduledPost {
	cp := *p
	if p.PlatformPostIDs != nil {
		cp.PlatformPostIDs = make(map[string]string, len(p.PlatformPostIDs))
		for k, v := range p.PlatformPostIDs {
			cp.PlatformPostIDs[k] = v
		}
	}
	return cp
}

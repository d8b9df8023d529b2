package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postflow-service/internal/domain/post"
	xerrors "postflow-service/internal/pkg/errors"
)

func queuePost(id string, campaignID int64, position int, at time.Time) post.ScheduledPost {
	return post.ScheduledPost{
		ID:               id,
		CampaignID:       campaignID,
		CampaignPosition: position,
		ScheduledTime:    at,
		Status:           post.StatusScheduled,
	}
}

func TestQueueDueBeforeOrderingAndFiltering(t *testing.T) {
	q := NewPublishQueue()
	base := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)

	q.Index(
		queuePost("c1-p2", 1, 2, base.Add(2*time.Hour)),
		queuePost("c1-p1", 1, 1, base),
		queuePost("c2-p1", 2, 1, base.Add(time.Hour)),
		queuePost("c2-p2", 2, 2, base.Add(48*time.Hour)), // not yet due
	)

	due := q.DueBefore(base.Add(3 * time.Hour))
	require.Len(t, due, 3)
	assert.Equal(t, "c1-p1", due[0].ID)
	assert.Equal(t, "c2-p1", due[1].ID)
	assert.Equal(t, "c1-p2", due[2].ID)
}

func TestQueueDueBeforeTieBreaksByPosition(t *testing.T) {
	q := NewPublishQueue()
	at := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)

	// Jitter clamping can collapse two slots onto the same instant; ordering
	// then falls back to campaign position.
	q.Index(
		queuePost("second", 1, 2, at),
		queuePost("first", 1, 1, at),
	)

	due := q.DueBefore(at)
	require.Len(t, due, 2)
	assert.Equal(t, "first", due[0].ID)
	assert.Equal(t, "second", due[1].ID)
}

func TestQueuePausedCampaignExcludedFromDispatch(t *testing.T) {
	q := NewPublishQueue()
	at := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	q.Index(queuePost("p1", 1, 1, at), queuePost("p2", 2, 1, at))

	q.SetCampaignPaused(1, true)

	due := q.DueBefore(at)
	require.Len(t, due, 1)
	assert.Equal(t, "p2", due[0].ID)

	// Paused posts stay indexed and pending.
	assert.Len(t, q.Pending(1, 0), 1)

	_, err := q.Claim("p1")
	require.ErrorIs(t, err, xerrors.ErrCampaignPaused)

	q.SetCampaignPaused(1, false)
	assert.Len(t, q.DueBefore(at), 2)
}

func TestQueuePositionOf(t *testing.T) {
	q := NewPublishQueue()
	base := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	q.Index(
		queuePost("a", 1, 1, base),
		queuePost("b", 1, 2, base.Add(time.Hour)),
		queuePost("c", 1, 3, base.Add(2*time.Hour)),
		queuePost("other", 2, 1, base),
	)

	pos, err := q.PositionOf("b")
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	// Publishing the head shifts everyone up.
	_, err = q.Claim("a")
	require.NoError(t, err)
	_, err = q.MarkPublished("a", map[string]string{"instagram": "ig-1"})
	require.NoError(t, err)

	pos, err = q.PositionOf("b")
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	_, err = q.PositionOf("a")
	require.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestQueueClaimIsExclusive(t *testing.T) {
	q := NewPublishQueue()
	at := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	q.Index(queuePost("contested", 1, 1, at))

	const attempts = 64
	var wg sync.WaitGroup
	var mu sync.Mutex
	claimed, alreadyClaimed := 0, 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Claim("contested")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				claimed++
			case xerrors.Is(err, xerrors.ErrPostAlreadyClaimed):
				alreadyClaimed++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, claimed)
	assert.Equal(t, attempts-1, alreadyClaimed)

	got, ok := q.Get("contested")
	require.True(t, ok)
	assert.Equal(t, post.StatusQueued, got.Status)
}

func TestQueueFailRequeueAndExhaust(t *testing.T) {
	q := NewPublishQueue()
	at := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	q.Index(queuePost("flaky", 1, 1, at))

	maxRetries := 2
	for attempt := 1; attempt <= maxRetries; attempt++ {
		claimed, err := q.Claim("flaky")
		if attempt > 1 {
			// Requeued posts are already queued; no second claim happens.
			require.ErrorIs(t, err, xerrors.ErrPostAlreadyClaimed)
		} else {
			require.NoError(t, err)
			assert.Equal(t, post.StatusQueued, claimed.Status)
		}

		failed, err := q.MarkFailed("flaky", "network timeout")
		require.NoError(t, err)
		assert.Equal(t, attempt, failed.RetryCount)

		if attempt < maxRetries {
			requeued, err := q.Requeue("flaky", maxRetries)
			require.NoError(t, err)
			assert.Equal(t, post.StatusQueued, requeued.Status)
		}
	}

	_, err := q.Requeue("flaky", maxRetries)
	require.ErrorIs(t, err, xerrors.ErrRetriesExhausted)

	_, ok := q.Get("flaky")
	assert.False(t, ok, "exhausted post should leave the index")
}

func TestQueueIndexIgnoresTerminalPosts(t *testing.T) {
	q := NewPublishQueue()
	at := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)

	published := queuePost("done", 1, 1, at)
	published.Status = post.StatusPublished
	q.Index(published, queuePost("open", 1, 2, at))

	assert.Equal(t, 1, q.Len())
	_, ok := q.Get("done")
	assert.False(t, ok)
}

func TestQueueRemoveCampaign(t *testing.T) {
	q := NewPublishQueue()
	at := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	q.Index(
		queuePost("a", 1, 1, at),
		queuePost("b", 1, 2, at.Add(time.Hour)),
		queuePost("c", 2, 1, at),
	)
	q.SetCampaignPaused(1, true)

	q.RemoveCampaign(1)
	assert.Equal(t, 1, q.Len())

	// Pause flag is cleared along with the posts.
	q.Index(queuePost("a2", 1, 1, at))
	assert.Len(t, q.DueBefore(at), 2)
}

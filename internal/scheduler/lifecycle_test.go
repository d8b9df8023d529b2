package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postflow-service/internal/domain/post"
	xerrors "postflow-service/internal/pkg/errors"
)

func newTestPost(status post.Status) *post.ScheduledPost {
	return &post.ScheduledPost{
		ID:            "01J0TESTPOST",
		CampaignID:    1,
		ScheduledTime: time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC),
		Status:        status,
	}
}

func TestLifecycleHappyPath(t *testing.T) {
	p := newTestPost(post.StatusScheduled)

	require.NoError(t, Claim(p))
	assert.Equal(t, post.StatusQueued, p.Status)

	ids := map[string]string{"instagram": "ig-123"}
	require.NoError(t, MarkPublished(p, ids))
	assert.Equal(t, post.StatusPublished, p.Status)
	assert.Equal(t, ids, p.PlatformPostIDs)
	assert.Empty(t, p.ErrorMessage)
}

func TestLifecycleFailureAndRetry(t *testing.T) {
	p := newTestPost(post.StatusScheduled)
	require.NoError(t, Claim(p))

	require.NoError(t, MarkFailed(p, "rate limited"))
	assert.Equal(t, post.StatusFailed, p.Status)
	assert.Equal(t, 1, p.RetryCount)
	assert.Equal(t, "rate limited", p.ErrorMessage)

	require.NoError(t, Requeue(p, 3))
	assert.Equal(t, post.StatusQueued, p.Status)

	// Success after retry clears the recorded failure.
	require.NoError(t, MarkPublished(p, map[string]string{"facebook": "fb-9"}))
	assert.Empty(t, p.ErrorMessage)
	assert.Equal(t, 1, p.RetryCount)
}

func TestLifecycleRetryBudgetExhausted(t *testing.T) {
	p := newTestPost(post.StatusFailed)
	p.RetryCount = 3

	err := Requeue(p, 3)
	require.ErrorIs(t, err, xerrors.ErrRetriesExhausted)
	assert.Equal(t, post.StatusFailed, p.Status)
}

func TestRecoverReleasesStaleClaim(t *testing.T) {
	p := newTestPost(post.StatusQueued)

	require.True(t, Recover(p))
	assert.Equal(t, post.StatusScheduled, p.Status)

	// Recovered posts re-enter the normal lifecycle.
	require.NoError(t, Claim(p))
	assert.Equal(t, post.StatusQueued, p.Status)
}

func TestRecoverLeavesOtherStatesAlone(t *testing.T) {
	for _, status := range []post.Status{post.StatusScheduled, post.StatusPublished, post.StatusFailed} {
		p := newTestPost(status)
		assert.False(t, Recover(p))
		assert.Equal(t, status, p.Status)
	}
}

func TestLifecycleIllegalEdgesLeaveStateUnchanged(t *testing.T) {
	cases := []struct {
		name    string
		status  post.Status
		attempt func(*post.ScheduledPost) error
	}{
		{"claim queued", post.StatusQueued, Claim},
		{"claim published", post.StatusPublished, Claim},
		{"claim failed", post.StatusFailed, Claim},
		{"publish scheduled", post.StatusScheduled, func(p *post.ScheduledPost) error {
			return MarkPublished(p, nil)
		}},
		{"publish published", post.StatusPublished, func(p *post.ScheduledPost) error {
			return MarkPublished(p, nil)
		}},
		{"fail scheduled", post.StatusScheduled, func(p *post.ScheduledPost) error {
			return MarkFailed(p, "nope")
		}},
		{"requeue published", post.StatusPublished, func(p *post.ScheduledPost) error {
			return Requeue(p, 3)
		}},
		{"requeue scheduled", post.StatusScheduled, func(p *post.ScheduledPost) error {
			return Requeue(p, 3)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestPost(tc.status)
			before := *p

			err := tc.attempt(p)
			require.ErrorIs(t, err, xerrors.ErrInvalidTransition)
			assert.Equal(t, before, *p)
		})
	}
}

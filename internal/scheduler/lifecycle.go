// internal/scheduler/lifecycle.go
package scheduler

import (
	"fmt"
	"time"

	"postflow-service/internal/domain/post"
	xerrors "postflow-service/internal/pkg/errors"
)

// Lifecycle edges:
//
//	scheduled -> queued     (dispatch claims the post)
//	queued    -> published  (publisher succeeded)
//	queued    -> failed     (publisher failed; retry_count incremented)
//	failed    -> queued     (retry, only while retry_count < maxRetries)
//
// Any other edge is ErrInvalidTransition and leaves the post unchanged.
// Callers mutating shared posts must hold the owning queue's lock; the
// functions themselves do no locking.

func invalidTransition(p *post.ScheduledPost, to post.Status) error {
	return fmt.Errorf("%w: %s -> %s (post %s)", xerrors.ErrInvalidTransition, p.Status, to, p.ID)
}

// Claim moves a due post from scheduled to queued, granting the caller
// exclusive attempt rights.
func Claim(p *post.ScheduledPost) error {
	if p.Status != post.StatusScheduled {
		return invalidTransition(p, post.StatusQueued)
	}
	p.Status = post.StatusQueued
	p.UpdatedAt = time.Now()
	return nil
}

// MarkPublished records a successful publish result: platform post IDs are
// stored and any previous error message is cleared.
func MarkPublished(p *post.ScheduledPost, platformPostIDs map[string]string) error {
	if p.Status != post.StatusQueued {
		return invalidTransition(p, post.StatusPublished)
	}
	p.Status = post.StatusPublished
	p.PlatformPostIDs = platformPostIDs
	p.ErrorMessage = ""
	p.UpdatedAt = time.Now()
	return nil
}

// MarkFailed records an unsuccessful attempt, incrementing the retry count.
func MarkFailed(p *post.ScheduledPost, reason string) error {
	if p.Status != post.StatusQueued {
		return invalidTransition(p, post.StatusFailed)
	}
	p.Status = post.StatusFailed
	p.RetryCount++
	p.ErrorMessage = reason
	p.UpdatedAt = time.Now()
	return nil
}

// Recover releases a stale claim: a post left queued by a process that died
// between claim and publish returns to scheduled so dispatch can pick it up
// again. Reports whether the post was changed.
func Recover(p *post.ScheduledPost) bool {
	if p.Status != post.StatusQueued {
		return false
	}
	p.Status = post.StatusScheduled
	p.UpdatedAt = time.Now()
	return true
}

// Requeue re-arms a failed post for another attempt while the retry budget
// allows. Beyond maxRetries, failed is terminal.
func Requeue(p *post.ScheduledPost, maxRetries int) error {
	if p.Status != post.StatusFailed {
		return invalidTransition(p, post.StatusQueued)
	}
	if p.RetryCount >= maxRetries {
		return fmt.Errorf("%w: post %s failed %d times", xerrors.ErrRetriesExhausted, p.ID, p.RetryCount)
	}
	p.Status = post.StatusQueued
	p.UpdatedAt = time.Now()
	return nil
}

package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConflict             = errors.New("conflict: resource already exists")
	ErrInternal             = errors.New("internal server error")
	ErrInvalidRules         = errors.New("invalid campaign rules")
	ErrInvalidTransition    = errors.New("invalid post state transition")
	ErrRegenerationConflict = errors.New("campaign regeneration already in progress")
	ErrCampaignPaused       = errors.New("campaign is paused")
	ErrPostAlreadyClaimed   = errors.New("post already claimed for publishing")
	ErrRetriesExhausted     = errors.New("publish retries exhausted")
)

// PublishFailure wraps the reason returned by a platform publisher so the
// dispatch loop can record it on the post and keep processing other posts.
type PublishFailure struct {
	Platform string
	Reason   string
}

func (e *PublishFailure) Error() string {
	if e.Platform == "" {
		return fmt.Sprintf("publish failed: %s", e.Reason)
	}
	return fmt.Sprintf("publish failed on %s: %s", e.Platform, e.Reason)
}

// Wrap adds context to an error (similar to fmt.Errorf("%w")).
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is allows checking whether an error is a specific sentinel error.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// MessageOrDefault returns err.Error() or a fallback message if err is nil.
func MessageOrDefault(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}

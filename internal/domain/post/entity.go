// internal/domain/post/entity.go
package post

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusQueued    Status = "queued"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions other
// than the explicit failed -> queued retry edge.
func (s Status) IsTerminal() bool {
	return s == StatusPublished || s == StatusFailed
}

// ContentAssignment is the caption/media/hashtag bundle attached to a post
// slot. It comes from the content-source collaborator, keyed by position.
type ContentAssignment struct {
	Caption  string   `json:"caption"`
	MediaURL string   `json:"media_url,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
}

type ScheduledPost struct {
	ID         string `json:"id" db:"id"`
	CampaignID int64  `json:"campaign_id" db:"campaign_id"`

	// Immutable once the post leaves draft; always in the campaign timezone.
	ScheduledTime time.Time `json:"scheduled_time" db:"scheduled_time"`

	// 1-based index among the campaign's posts, ascending by ScheduledTime.
	CampaignPosition int `json:"campaign_position" db:"campaign_position"`

	IsManuallyScheduled bool `json:"is_manually_scheduled" db:"is_manually_scheduled"`

	Content ContentAssignment `json:"content"`

	Status       Status `json:"status" db:"status"`
	RetryCount   int    `json:"retry_count" db:"retry_count"`
	ErrorMessage string `json:"error_message,omitempty" db:"error_message"`

	// Per-platform external post IDs, populated only on success.
	PlatformPostIDs map[string]string `json:"platform_post_ids,omitempty" db:"platform_post_ids"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// internal/domain/campaign/entity.go
package campaign

import (
	"database/sql"
	"time"
)

type Status string

const (
	StatusDraft  Status = "draft"
	StatusActive Status = "active"
	StatusPaused Status = "paused"
)

// Rules is the declarative posting schedule of a campaign. It is immutable
// for the duration of a single generation run; editing rules requires a
// regeneration pass.
type Rules struct {
	StartDate              time.Time `json:"start_date" db:"start_date"`
	EndDate                time.Time `json:"end_date" db:"end_date"`
	Timezone               string    `json:"timezone" db:"timezone"`
	PostsPerDay            int       `json:"posts_per_day" db:"posts_per_day"`
	PostingTimes           []string  `json:"posting_times" db:"posting_times"` // "HH:MM", len <= PostsPerDay
	SkipWeekends           bool      `json:"skip_weekends" db:"skip_weekends"`
	SkipHolidays           bool      `json:"skip_holidays" db:"skip_holidays"`
	MinimumIntervalMinutes int       `json:"minimum_interval_minutes" db:"minimum_interval_minutes"`
	RandomizeTimes         bool      `json:"randomize_times" db:"randomize_times"`
	RandomizeOrder         bool      `json:"randomize_order" db:"randomize_order"`
}

// ContentItem is one caption/media/hashtag bundle assignable to a post slot.
type ContentItem struct {
	Caption  string   `json:"caption"`
	MediaURL string   `json:"media_url,omitempty"`
	Hashtags []string `json:"hashtags,omitempty"`
}

type Campaign struct {
	ID        int64  `json:"id" db:"id"`
	Reference string `json:"reference" db:"reference"`
	Name      string `json:"name" db:"name"`

	Description sql.NullString `json:"description,omitempty" db:"description"`

	// Target platforms (instagram, facebook, ...). Publishing adapters are
	// external; this subsystem only records their post IDs on success.
	Platforms []string `json:"platforms" db:"platforms"`

	Rules Rules `json:"rules"`

	// Content pool cycled over generated slots by position.
	ContentItems []ContentItem `json:"content_items,omitempty" db:"content_items"`

	Status Status `json:"status" db:"status"`

	TotalPostsPlanned   int `json:"total_posts_planned" db:"total_posts_planned"`
	TotalPostsPublished int `json:"total_posts_published" db:"total_posts_published"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsPaused reports whether the campaign's posts should be withheld from
// dispatch. Draft campaigns are treated as paused.
func (c *Campaign) IsPaused() bool {
	return c.Status != StatusActive
}

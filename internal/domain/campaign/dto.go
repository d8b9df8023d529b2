// internal/domain/campaign/dto.go
package campaign

import "time"

type CreateCampaignRequest struct {
	Name         string        `json:"name" binding:"required"`
	Description  string        `json:"description"`
	Platforms    []string      `json:"platforms"`
	Rules        Rules         `json:"rules" binding:"required"`
	ContentItems []ContentItem `json:"content_items"`

	// Region-resolved holiday dates ("2006-01-02"), supplied by the caller.
	// The holiday calendar itself is an external collaborator.
	Holidays []string `json:"holidays"`

	// Seed for the jitter random source. Zero means a time-derived seed.
	RandomSeed int64 `json:"random_seed"`
}

type CreateCampaignResponse struct {
	Campaign          *Campaign `json:"campaign"`
	TotalPostsPlanned int       `json:"total_posts_planned"`
}

type BulkScheduleEntry struct {
	ScheduledTime time.Time   `json:"scheduled_time" binding:"required"`
	Content       ContentItem `json:"content"`
}

type BulkScheduleRequest struct {
	Entries []BulkScheduleEntry `json:"entries" binding:"required"`
}

type ToggleResponse struct {
	CampaignID int64  `json:"campaign_id"`
	Status     Status `json:"status"`
}

type ListFilters struct {
	Status   *Status `form:"status"`
	Page     int     `form:"page"`
	PageSize int     `form:"page_size"`
}

type ListResponse struct {
	Campaigns  []Campaign `json:"campaigns"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

type CalendarQuery struct {
	Start       string  `form:"start" binding:"required"`
	End         string  `form:"end" binding:"required"`
	CampaignIDs []int64 `form:"campaign_ids" collection_format:"csv"`
}

// internal/domain/post/dto.go
package post

type QueueEntry struct {
	Post            ScheduledPost `json:"post"`
	PositionInQueue int           `json:"position_in_queue"`
}

type QueueResponse struct {
	CampaignID int64        `json:"campaign_id"`
	Entries    []QueueEntry `json:"entries"`
	Pending    int          `json:"pending"`
}

// CalendarDay is one bucket of the calendar projection. Date is the bucket
// day formatted "2006-01-02" in the requested range's timezone.
type CalendarDay struct {
	Date       string          `json:"date"`
	Posts      []ScheduledPost `json:"posts"`
	TotalPosts int             `json:"total_posts"`
}

type CalendarResponse struct {
	Days       []CalendarDay `json:"days"`
	TotalPosts int           `json:"total_posts"`
}

// internal/scheduler/calendar.go
package scheduler

import (
	"fmt"
	"time"

	"postflow-service/internal/domain/post"
	xerrors "postflow-service/internal/pkg/errors"
)

// AggregateCalendar projects posts onto day buckets for every date in the
// inclusive [start, end] range. campaignIDs narrows the projection; nil or
// empty means all campaigns. It is a pure read-only projection: the input
// slice is not mutated and buckets come back in ascending date order.
func AggregateCalendar(posts []post.ScheduledPost, campaignIDs []int64, start, end time.Time) (post.CalendarResponse, error) {
	if end.Before(start) {
		return post.CalendarResponse{}, fmt.Errorf("%w: calendar end is before start", xerrors.ErrInvalidInput)
	}

	var filter map[int64]struct{}
	if len(campaignIDs) > 0 {
		filter = make(map[int64]struct{}, len(campaignIDs))
		for _, id := range campaignIDs {
			filter[id] = struct{}{}
		}
	}

	loc := start.Location()
	buckets := make(map[string][]post.ScheduledPost)
	for _, p := range posts {
		if filter != nil {
			if _, ok := filter[p.CampaignID]; !ok {
				continue
			}
		}
		key := p.ScheduledTime.In(loc).Format(dateLayout)
		buckets[key] = append(buckets[key], p)
	}

	resp := post.CalendarResponse{}
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	last := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		dayPosts := buckets[key]
		sortPending(dayPosts)
		resp.Days = append(resp.Days, post.CalendarDay{
			Date:       key,
			Posts:      dayPosts,
			TotalPosts: len(dayPosts),
		})
		resp.TotalPosts += len(dayPosts)
	}

	return resp, nil
}

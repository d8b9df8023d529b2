// internal/scheduler/materializer.go
package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"postflow-service/internal/domain/post"
)

// ContentSource is the external collaborator that owns caption/media/hashtag
// bundles, keyed by campaign and 0-based slot position.
type ContentSource interface {
	AssignmentFor(campaignID int64, position int) (post.ContentAssignment, error)
}

// Materialize turns generated timestamps into ScheduledPost entities with
// contiguous 1-based campaign positions. When randomizeOrder is set, the
// content-to-position assignment is permuted by the random source; the
// timestamps themselves stay chronological.
func Materialize(campaignID int64, timestamps []time.Time, content ContentSource, randomizeOrder bool, rng RandomSource) ([]post.ScheduledPost, error) {
	assignment := make([]int, len(timestamps))
	for i := range assignment {
		assignment[i] = i
	}
	if randomizeOrder && rng != nil {
		for i := len(assignment) - 1; i > 0; i-- {
			j := rng.Intn(i + 1)
			assignment[i], assignment[j] = assignment[j], assignment[i]
		}
	}

	now := time.Now()
	posts := make([]post.ScheduledPost, 0, len(timestamps))
	for i, ts := range timestamps {
		var ca post.ContentAssignment
		if content != nil {
			var err error
			ca, err = content.AssignmentFor(campaignID, assignment[i])
			if err != nil {
				return nil, fmt.Errorf("failed to resolve content for position %d: %w", i+1, err)
			}
		}

		posts = append(posts, post.ScheduledPost{
			ID:                  ulid.Make().String(),
			CampaignID:          campaignID,
			ScheduledTime:       ts,
			CampaignPosition:    i + 1,
			IsManuallyScheduled: false,
			Content:             ca,
			Status:              post.StatusScheduled,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}

	return posts, nil
}

// NewManualPost creates a post for an explicit caller-supplied time,
// bypassing the generator. The campaign position is left at zero; callers
// must Renumber the campaign's full post set afterwards.
func NewManualPost(campaignID int64, scheduledTime time.Time, content post.ContentAssignment) post.ScheduledPost {
	now := time.Now()
	return post.ScheduledPost{
		ID:                  ulid.Make().String(),
		CampaignID:          campaignID,
		ScheduledTime:       scheduledTime,
		IsManuallyScheduled: true,
		Content:             content,
		Status:              post.StatusScheduled,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Renumber re-derives contiguous 1..N campaign positions over the combined
// manual and generated posts, ordered by scheduled time. It is idempotent
// and never alters a post's ID or status; ties keep their existing relative
// order.
func Renumber(posts []post.ScheduledPost) []post.ScheduledPost {
	sort.SliceStable(posts, func(a, b int) bool {
		return posts[a].ScheduledTime.Before(posts[b].ScheduledTime)
	})
	for i := range posts {
		posts[i].CampaignPosition = i + 1
	}
	return posts
}

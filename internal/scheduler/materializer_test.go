package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postflow-service/internal/domain/post"
)

type stubContent struct{}

func (stubContent) AssignmentFor(_ int64, position int) (post.ContentAssignment, error) {
	return post.ContentAssignment{Caption: fmt.Sprintf("caption-%d", position)}, nil
}

func tsRange(n int) []time.Time {
	out := make([]time.Time, n)
	base := time.Date(2024, time.June, 3, 9, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * 2 * time.Hour)
	}
	return out
}

func TestMaterializeAssignsContiguousPositions(t *testing.T) {
	posts, err := Materialize(7, tsRange(5), stubContent{}, false, nil)
	require.NoError(t, err)
	require.Len(t, posts, 5)

	for i, p := range posts {
		assert.Equal(t, i+1, p.CampaignPosition)
		assert.Equal(t, int64(7), p.CampaignID)
		assert.Equal(t, post.StatusScheduled, p.Status)
		assert.False(t, p.IsManuallyScheduled)
		assert.NotEmpty(t, p.ID)
		assert.Equal(t, fmt.Sprintf("caption-%d", i), p.Content.Caption)
	}
}

func TestMaterializeRandomizeOrderPermutesContentOnly(t *testing.T) {
	timestamps := tsRange(6)
	posts, err := Materialize(7, timestamps, stubContent{}, true, NewSeededSource(11))
	require.NoError(t, err)
	require.Len(t, posts, 6)

	captions := make(map[string]bool)
	for i, p := range posts {
		// Timestamps stay chronological and bound to their position.
		assert.Equal(t, timestamps[i], p.ScheduledTime)
		captions[p.Content.Caption] = true
	}

	// Every assignment is used exactly once, just in a shuffled order.
	require.Len(t, captions, 6)
	for i := 0; i < 6; i++ {
		assert.True(t, captions[fmt.Sprintf("caption-%d", i)])
	}

	// Same seed, same permutation.
	again, err := Materialize(7, timestamps, stubContent{}, true, NewSeededSource(11))
	require.NoError(t, err)
	for i := range posts {
		assert.Equal(t, posts[i].Content.Caption, again[i].Content.Caption)
	}
}

func TestRenumberAfterManualInsert(t *testing.T) {
	posts, err := Materialize(7, tsRange(3), stubContent{}, false, nil)
	require.NoError(t, err)

	// Manual post lands between the first and second generated slots.
	manual := NewManualPost(7, posts[0].ScheduledTime.Add(time.Hour), post.ContentAssignment{Caption: "manual"})
	require.True(t, manual.IsManuallyScheduled)

	combined := Renumber(append(posts, manual))
	require.Len(t, combined, 4)

	for i, p := range combined {
		assert.Equal(t, i+1, p.CampaignPosition)
		if i > 0 {
			assert.False(t, combined[i].ScheduledTime.Before(combined[i-1].ScheduledTime))
		}
	}
	assert.Equal(t, "manual", combined[1].Content.Caption)
}

func TestRenumberIsIdempotentAndPreservesIdentity(t *testing.T) {
	posts, err := Materialize(7, tsRange(4), stubContent{}, false, nil)
	require.NoError(t, err)
	posts[2].Status = post.StatusQueued

	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	once := Renumber(posts)
	twice := Renumber(once)
	assert.Equal(t, once, twice)

	for i, p := range twice {
		assert.Equal(t, ids[i], p.ID)
	}
	assert.Equal(t, post.StatusQueued, twice[2].Status)
}

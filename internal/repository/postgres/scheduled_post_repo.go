// internal/repository/postgres/scheduled_post_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"postflow-service/internal/domain/post"
	xerrors "postflow-service/internal/pkg/errors"
)

type ScheduledPostRepository struct {
	db *pgxpool.Pool
}

func NewScheduledPostRepository(db *pgxpool.Pool) *ScheduledPostRepository {
	return &ScheduledPostRepository{db: db}
}

const postColumns = `
	id, campaign_id, scheduled_time, campaign_position, is_manually_scheduled,
	caption, media_url, hashtags, status, retry_count, error_message,
	platform_post_ids, created_at, updated_at
`

// CreateBatch inserts a set of posts atomically; a campaign's generation run
// either lands completely or not at all.
func (r *ScheduledPostRepository) CreateBatch(ctx context.Context, posts []post.ScheduledPost) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range posts {
		if err := r.createWithTx(ctx, tx, &posts[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit posts: %w", err)
	}

	return nil
}

func (r *ScheduledPostRepository) createWithTx(ctx context.Context, tx pgx.Tx, p *post.ScheduledPost) error {
	query := `
		INSERT INTO scheduled_posts (
			id, campaign_id, scheduled_time, campaign_position, is_manually_scheduled,
			caption, media_url, hashtags, status, retry_count, error_message, platform_post_ids
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`

	platformJSON, err := marshalPlatformIDs(p.PlatformPostIDs)
	if err != nil {
		return err
	}

	err = tx.QueryRow(
		ctx, query,
		p.ID, p.CampaignID, p.ScheduledTime, p.CampaignPosition, p.IsManuallyScheduled,
		p.Content.Caption, p.Content.MediaURL, pq.StringArray(p.Content.Hashtags),
		p.Status, p.RetryCount, p.ErrorMessage, platformJSON,
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create scheduled post: %w", err)
	}

	return nil
}

// FindByID retrieves a post by ID.
func (r *ScheduledPostRepository) FindByID(ctx context.Context, id string) (*post.ScheduledPost, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduled_posts WHERE id = $1`, postColumns)

	p, err := scanPost(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find scheduled post: %w", err)
	}

	return p, nil
}

// FindByCampaign retrieves all of a campaign's posts in position order.
func (r *ScheduledPostRepository) FindByCampaign(ctx context.Context, campaignID int64) ([]post.ScheduledPost, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM scheduled_posts
		WHERE campaign_id = $1
		ORDER BY scheduled_time ASC, campaign_position ASC
	`, postColumns)

	return r.queryPosts(ctx, query, campaignID)
}

// FindPending retrieves every non-terminal post, used to rebuild the publish
// queue index on boot.
func (r *ScheduledPostRepository) FindPending(ctx context.Context) ([]post.ScheduledPost, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM scheduled_posts
		WHERE status IN ('scheduled', 'queued')
		ORDER BY scheduled_time ASC, campaign_position ASC
	`, postColumns)

	return r.queryPosts(ctx, query)
}

// FindByRange retrieves posts whose scheduled time falls within [start, end),
// optionally narrowed to specific campaigns. Backs the calendar projection.
func (r *ScheduledPostRepository) FindByRange(ctx context.Context, start, end time.Time, campaignIDs []int64) ([]post.ScheduledPost, error) {
	if len(campaignIDs) > 0 {
		query := fmt.Sprintf(`
			SELECT %s FROM scheduled_posts
			WHERE scheduled_time >= $1 AND scheduled_time < $2 AND campaign_id = ANY($3)
			ORDER BY scheduled_time ASC
		`, postColumns)
		return r.queryPosts(ctx, query, start, end, pq.Int64Array(campaignIDs))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM scheduled_posts
		WHERE scheduled_time >= $1 AND scheduled_time < $2
		ORDER BY scheduled_time ASC
	`, postColumns)
	return r.queryPosts(ctx, query, start, end)
}

// UpdateState persists a lifecycle transition.
func (r *ScheduledPostRepository) UpdateState(ctx context.Context, p *post.ScheduledPost) error {
	query := `
		UPDATE scheduled_posts
		SET status = $1, retry_count = $2, error_message = $3, platform_post_ids = $4, updated_at = $5
		WHERE id = $6
	`

	platformJSON, err := marshalPlatformIDs(p.PlatformPostIDs)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(ctx, query, p.Status, p.RetryCount, p.ErrorMessage, platformJSON, time.Now(), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update post state: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdatePositions rewrites campaign positions after a renumber pass. Only
// the position column is touched; IDs and statuses stay as they are.
func (r *ScheduledPostRepository) UpdatePositions(ctx context.Context, posts []post.ScheduledPost) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `UPDATE scheduled_posts SET campaign_position = $1, updated_at = $2 WHERE id = $3`
	now := time.Now()
	for _, p := range posts {
		if _, err := tx.Exec(ctx, query, p.CampaignPosition, now, p.ID); err != nil {
			return fmt.Errorf("failed to update position of post %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit positions: %w", err)
	}

	return nil
}

// DeleteGenerated removes a campaign's non-manual, non-terminal posts ahead
// of a regeneration run. Manual and already-published posts survive.
func (r *ScheduledPostRepository) DeleteGenerated(ctx context.Context, campaignID int64) error {
	query := `
		DELETE FROM scheduled_posts
		WHERE campaign_id = $1 AND is_manually_scheduled = FALSE AND status IN ('scheduled', 'queued')
	`

	if _, err := r.db.Exec(ctx, query, campaignID); err != nil {
		return fmt.Errorf("failed to delete generated posts: %w", err)
	}

	return nil
}

// DeleteByCampaign removes every post of a campaign.
func (r *ScheduledPostRepository) DeleteByCampaign(ctx context.Context, campaignID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM scheduled_posts WHERE campaign_id = $1`, campaignID); err != nil {
		return fmt.Errorf("failed to delete campaign posts: %w", err)
	}

	return nil
}

func (r *ScheduledPostRepository) queryPosts(ctx context.Context, query string, args ...interface{}) ([]post.ScheduledPost, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled posts: %w", err)
	}
	defer rows.Close()

	posts := []post.ScheduledPost{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled post: %w", err)
		}
		posts = append(posts, *p)
	}

	return posts, nil
}

func marshalPlatformIDs(ids map[string]string) ([]byte, error) {
	if ids == nil {
		return nil, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal platform post ids: %w", err)
	}
	return data, nil
}

func unmarshalPlatformIDs(data []byte) (map[string]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var ids map[string]string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode platform post ids: %w", err)
	}
	return ids, nil
}

func scanPost(row pgx.Row) (*post.ScheduledPost, error) {
	var p post.ScheduledPost
	var platformJSON []byte

	err := row.Scan(
		&p.ID, &p.CampaignID, &p.ScheduledTime, &p.CampaignPosition, &p.IsManuallyScheduled,
		&p.Content.Caption, &p.Content.MediaURL, (*pq.StringArray)(&p.Content.Hashtags),
		&p.Status, &p.RetryCount, &p.ErrorMessage,
		&platformJSON, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.PlatformPostIDs, err = unmarshalPlatformIDs(platformJSON)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

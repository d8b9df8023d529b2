// internal/repository/postgres/campaign_repo.go
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	"postflow-service/internal/domain/campaign"
	xerrors "postflow-service/internal/pkg/errors"
)

type CampaignRepository struct {
	db *pgxpool.Pool
}

func NewCampaignRepository(db *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{db: db}
}

const campaignColumns = `
	id, reference, name, description, platforms,
	start_date, end_date, timezone, posts_per_day, posting_times,
	skip_weekends, skip_holidays, minimum_interval_minutes,
	randomize_times, randomize_order, content_items,
	status, total_posts_planned, total_posts_published,
	created_at, updated_at
`

// Create inserts a campaign and backfills ID and timestamps.
func (r *CampaignRepository) Create(ctx context.Context, c *campaign.Campaign) error {
	query := `
		INSERT INTO campaigns (
			reference, name, description, platforms,
			start_date, end_date, timezone, posts_per_day, posting_times,
			skip_weekends, skip_holidays, minimum_interval_minutes,
			randomize_times, randomize_order, content_items,
			status, total_posts_planned, total_posts_published
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING id, created_at, updated_at
	`

	contentJSON, err := marshalContentItems(c.ContentItems)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(
		ctx, query,
		c.Reference, c.Name, c.Description, pq.StringArray(c.Platforms),
		c.Rules.StartDate, c.Rules.EndDate, c.Rules.Timezone, c.Rules.PostsPerDay, pq.StringArray(c.Rules.PostingTimes),
		c.Rules.SkipWeekends, c.Rules.SkipHolidays, c.Rules.MinimumIntervalMinutes,
		c.Rules.RandomizeTimes, c.Rules.RandomizeOrder, contentJSON,
		c.Status, c.TotalPostsPlanned, c.TotalPostsPublished,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

// FindByID retrieves a campaign by ID.
func (r *CampaignRepository) FindByID(ctx context.Context, id int64) (*campaign.Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE id = $1`, campaignColumns)

	c, err := scanCampaign(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find campaign: %w", err)
	}

	return c, nil
}

// List retrieves campaigns with filters and pagination.
func (r *CampaignRepository) List(ctx context.Context, filters *campaign.ListFilters) ([]campaign.Campaign, int64, error) {
	conditions := []string{"TRUE"}
	args := []interface{}{}
	argPos := 1

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *filters.Status)
		argPos++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM campaigns WHERE %s", whereClause)
	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}

	offset := (filters.Page - 1) * filters.PageSize

	query := fmt.Sprintf(`
		SELECT %s FROM campaigns
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, campaignColumns, whereClause, argPos, argPos+1)

	args = append(args, filters.PageSize, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []campaign.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, *c)
	}

	return campaigns, total, nil
}

// FindAll retrieves every campaign, used to rebuild the publish queue's
// pause state on boot.
func (r *CampaignRepository) FindAll(ctx context.Context) ([]campaign.Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns ORDER BY id`, campaignColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []campaign.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, *c)
	}

	return campaigns, nil
}

// UpdateStatus flips the campaign status.
func (r *CampaignRepository) UpdateStatus(ctx context.Context, id int64, status campaign.Status) error {
	query := `UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// UpdatePlannedCount records the size of the last generation run.
func (r *CampaignRepository) UpdatePlannedCount(ctx context.Context, id int64, planned int) error {
	query := `UPDATE campaigns SET total_posts_planned = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.Exec(ctx, query, planned, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update planned count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// IncrementPublished bumps the published counter after a successful publish.
func (r *CampaignRepository) IncrementPublished(ctx context.Context, id int64) error {
	query := `UPDATE campaigns SET total_posts_published = total_posts_published + 1, updated_at = $1 WHERE id = $2`

	result, err := r.db.Exec(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to increment published count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// Delete removes a campaign; its posts are deleted by the caller first.
func (r *CampaignRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	if result.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	return nil
}

// ExistsByReference checks if a campaign reference is taken.
func (r *CampaignRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM campaigns WHERE reference = $1)`, reference).Scan(&exists)
	return exists, err
}

func marshalContentItems(items []campaign.ContentItem) ([]byte, error) {
	if items == nil {
		return nil, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content items: %w", err)
	}
	return data, nil
}

func unmarshalContentItems(data []byte) ([]campaign.ContentItem, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []campaign.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode content items: %w", err)
	}
	return items, nil
}

func scanCampaign(row pgx.Row) (*campaign.Campaign, error) {
	var c campaign.Campaign
	var contentJSON []byte

	err := row.Scan(
		&c.ID, &c.Reference, &c.Name, &c.Description, (*pq.StringArray)(&c.Platforms),
		&c.Rules.StartDate, &c.Rules.EndDate, &c.Rules.Timezone, &c.Rules.PostsPerDay, (*pq.StringArray)(&c.Rules.PostingTimes),
		&c.Rules.SkipWeekends, &c.Rules.SkipHolidays, &c.Rules.MinimumIntervalMinutes,
		&c.Rules.RandomizeTimes, &c.Rules.RandomizeOrder, &contentJSON,
		&c.Status, &c.TotalPostsPlanned, &c.TotalPostsPublished,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ContentItems, err = unmarshalContentItems(contentJSON)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

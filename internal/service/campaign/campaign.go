// internal/service/campaign/campaign.go
package campaign

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"postflow-service/internal/domain/campaign"
	"postflow-service/internal/domain/post"
	xerrors "postflow-service/internal/pkg/errors"
	"postflow-service/internal/scheduler"
)

// CampaignStore is the persistence surface the service needs for campaigns.
// Implemented by postgres.CampaignRepository.
type CampaignStore interface {
	Create(ctx context.Context, c *campaign.Campaign) error
	FindByID(ctx context.Context, id int64) (*campaign.Campaign, error)
	List(ctx context.Context, filters *campaign.ListFilters) ([]campaign.Campaign, int64, error)
	UpdateStatus(ctx context.Context, id int64, status campaign.Status) error
	UpdatePlannedCount(ctx context.Context, id int64, planned int) error
	Delete(ctx context.Context, id int64) error
}

// PostStore is the persistence surface for scheduled posts. Implemented by
// postgres.ScheduledPostRepository.
type PostStore interface {
	CreateBatch(ctx context.Context, posts []post.ScheduledPost) error
	FindByCampaign(ctx context.Context, campaignID int64) ([]post.ScheduledPost, error)
	FindByRange(ctx context.Context, start, end time.Time, campaignIDs []int64) ([]post.ScheduledPost, error)
	UpdatePositions(ctx context.Context, posts []post.ScheduledPost) error
	DeleteGenerated(ctx context.Context, campaignID int64) error
	DeleteByCampaign(ctx context.Context, campaignID int64) error
}

// Lease is a held regeneration lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker grants campaign-level regeneration exclusion. Acquire fails with
// ErrRegenerationConflict while another holder (or a dispatch-visible lease)
// is active.
type Locker interface {
	Acquire(ctx context.Context, campaignID int64) (Lease, error)
}

type CampaignService struct {
	campaignStore CampaignStore
	postStore     PostStore
	queue         *scheduler.PublishQueue
	locks         Locker
	logger        *zap.Logger
}

func NewCampaignService(
	campaignStore CampaignStore,
	postStore PostStore,
	queue *scheduler.PublishQueue,
	locks Locker,
	logger *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaignStore: campaignStore,
		postStore:     postStore,
		queue:         queue,
		locks:         locks,
		logger:        logger,
	}
}

// contentList adapts a campaign's inline content pool to the content-source
// collaborator interface, cycling items over positions.
type contentList []campaign.ContentItem

func (c contentList) AssignmentFor(_ int64, position int) (post.ContentAssignment, error) {
	if len(c) == 0 {
		return post.ContentAssignment{}, nil
	}
	item := c[position%len(c)]
	return post.ContentAssignment{
		Caption:  item.Caption,
		MediaURL: item.MediaURL,
		Hashtags: item.Hashtags,
	}, nil
}

// CreateCampaign validates the rules, generates the schedule, materializes
// posts, and indexes them for dispatch. Rule validation errors surface
// before anything is persisted.
func (s *CampaignService) CreateCampaign(ctx context.Context, req *campaign.CreateCampaignRequest) (*campaign.CreateCampaignResponse, error) {
	rng := scheduler.NewSeededSource(req.RandomSeed)
	holidays := scheduler.NewHolidaySet(req.Holidays...)

	timestamps, err := scheduler.Generate(req.Rules, holidays, rng)
	if err != nil {
		return nil, err
	}

	c := &campaign.Campaign{
		Reference:         s.generateReference(),
		Name:              req.Name,
		Description:       sql.NullString{String: req.Description, Valid: req.Description != ""},
		Platforms:         req.Platforms,
		Rules:             req.Rules,
		ContentItems:      req.ContentItems,
		Status:            campaign.StatusActive,
		TotalPostsPlanned: len(timestamps),
	}

	if err := s.campaignStore.Create(ctx, c); err != nil {
		s.logger.Error("failed to create campaign", zap.Error(err))
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	posts, err := scheduler.Materialize(c.ID, timestamps, contentList(req.ContentItems), req.Rules.RandomizeOrder, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize posts: %w", err)
	}

	if err := s.postStore.CreateBatch(ctx, posts); err != nil {
		s.logger.Error("failed to persist generated posts", zap.Error(err), zap.Int64("campaign_id", c.ID))
		return nil, fmt.Errorf("failed to persist generated posts: %w", err)
	}

	s.queue.Index(posts...)

	s.logger.Info("campaign created",
		zap.Int64("campaign_id", c.ID),
		zap.String("reference", c.Reference),
		zap.Int("total_posts_planned", c.TotalPostsPlanned),
	)

	return &campaign.CreateCampaignResponse{Campaign: c, TotalPostsPlanned: c.TotalPostsPlanned}, nil
}

// RegenerateCampaign re-runs generation under the campaign's exclusion lock.
// Manual and already-terminal posts survive; generated pending posts are
// replaced and the whole set renumbered.
func (s *CampaignService) RegenerateCampaign(ctx context.Context, campaignID int64, req *campaign.CreateCampaignRequest) (*campaign.Campaign, error) {
	lease, err := s.locks.Acquire(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	defer lease.Release(ctx)

	c, err := s.campaignStore.FindByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	rules := c.Rules
	if req != nil {
		rules = req.Rules
	}

	rng := scheduler.NewSeededSource(seedFrom(req))
	holidays := scheduler.NewHolidaySet(holidaysFrom(req)...)

	timestamps, err := scheduler.Generate(rules, holidays, rng)
	if err != nil {
		return nil, err
	}

	if err := s.postStore.DeleteGenerated(ctx, campaignID); err != nil {
		return nil, err
	}
	s.queue.RemoveCampaign(campaignID)

	generated, err := scheduler.Materialize(campaignID, timestamps, contentList(c.ContentItems), rules.RandomizeOrder, rng)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize posts: %w", err)
	}

	if err := s.postStore.CreateBatch(ctx, generated); err != nil {
		return nil, fmt.Errorf("failed to persist regenerated posts: %w", err)
	}

	if err := s.renumberCampaign(ctx, c); err != nil {
		return nil, err
	}

	if err := s.campaignStore.UpdatePlannedCount(ctx, campaignID, len(generated)); err != nil {
		return nil, err
	}
	c.TotalPostsPlanned = len(generated)
	c.Rules = rules

	s.logger.Info("campaign regenerated",
		zap.Int64("campaign_id", campaignID),
		zap.Int("generated_posts", len(generated)),
	)

	return c, nil
}

// BulkSchedule inserts manually timed posts, bypassing the generator, then
// re-derives campaign positions over the combined post set.
func (s *CampaignService) BulkSchedule(ctx context.Context, campaignID int64, req *campaign.BulkScheduleRequest) ([]post.ScheduledPost, error) {
	if len(req.Entries) == 0 {
		return nil, fmt.Errorf("%w: no entries to schedule", xerrors.ErrInvalidInput)
	}

	c, err := s.campaignStore.FindByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	manual := make([]post.ScheduledPost, 0, len(req.Entries))
	for _, entry := range req.Entries {
		manual = append(manual, scheduler.NewManualPost(campaignID, entry.ScheduledTime, post.ContentAssignment{
			Caption:  entry.Content.Caption,
			MediaURL: entry.Content.MediaURL,
			Hashtags: entry.Content.Hashtags,
		}))
	}

	if err := s.postStore.CreateBatch(ctx, manual); err != nil {
		return nil, fmt.Errorf("failed to persist manual posts: %w", err)
	}

	if err := s.renumberCampaign(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("manual posts scheduled",
		zap.Int64("campaign_id", campaignID),
		zap.Int("count", len(manual)),
	)

	return manual, nil
}

// ToggleCampaign flips a campaign between active and paused. Paused
// campaigns keep their posts scheduled but are excluded from dispatch.
func (s *CampaignService) ToggleCampaign(ctx context.Context, campaignID int64) (*campaign.ToggleResponse, error) {
	c, err := s.campaignStore.FindByID(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	next := campaign.StatusPaused
	if c.Status != campaign.StatusActive {
		next = campaign.StatusActive
	}

	if err := s.campaignStore.UpdateStatus(ctx, campaignID, next); err != nil {
		return nil, err
	}
	s.queue.SetCampaignPaused(campaignID, next != campaign.StatusActive)

	s.logger.Info("campaign toggled",
		zap.Int64("campaign_id", campaignID),
		zap.String("status", string(next)),
	)

	return &campaign.ToggleResponse{CampaignID: campaignID, Status: next}, nil
}

// GetQueue returns up to limit pending posts of a campaign in dispatch
// order, each with its 1-based queue position.
func (s *CampaignService) GetQueue(ctx context.Context, campaignID int64, limit int) (*post.QueueResponse, error) {
	if _, err := s.campaignStore.FindByID(ctx, campaignID); err != nil {
		return nil, err
	}

	pending := s.queue.Pending(campaignID, 0)
	entries := make([]post.QueueEntry, 0, len(pending))
	for i, p := range pending {
		if limit > 0 && i >= limit {
			break
		}
		entries = append(entries, post.QueueEntry{Post: p, PositionInQueue: i + 1})
	}

	return &post.QueueResponse{CampaignID: campaignID, Entries: entries, Pending: len(pending)}, nil
}

// Calendar projects posts onto day buckets for the requested range.
func (s *CampaignService) Calendar(ctx context.Context, q *campaign.CalendarQuery) (*post.CalendarResponse, error) {
	start, err := time.Parse("2006-01-02", q.Start)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid start date %q", xerrors.ErrInvalidInput, q.Start)
	}
	end, err := time.Parse("2006-01-02", q.End)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid end date %q", xerrors.ErrInvalidInput, q.End)
	}

	posts, err := s.postStore.FindByRange(ctx, start, end.AddDate(0, 0, 1), q.CampaignIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts for calendar: %w", err)
	}

	resp, err := scheduler.AggregateCalendar(posts, q.CampaignIDs, start, end)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetCampaign retrieves a campaign by ID.
func (s *CampaignService) GetCampaign(ctx context.Context, campaignID int64) (*campaign.Campaign, error) {
	return s.campaignStore.FindByID(ctx, campaignID)
}

// ListCampaigns retrieves campaigns with filters.
func (s *CampaignService) ListCampaigns(ctx context.Context, filters *campaign.ListFilters) (*campaign.ListResponse, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.PageSize < 1 {
		filters.PageSize = 20
	}
	if filters.PageSize > 100 {
		filters.PageSize = 100
	}

	campaigns, total, err := s.campaignStore.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	totalPages := int(total) / filters.PageSize
	if int(total)%filters.PageSize > 0 {
		totalPages++
	}

	return &campaign.ListResponse{
		Campaigns:  campaigns,
		Total:      total,
		Page:       filters.Page,
		PageSize:   filters.PageSize,
		TotalPages: totalPages,
	}, nil
}

// DeleteCampaign removes a campaign and all of its posts.
func (s *CampaignService) DeleteCampaign(ctx context.Context, campaignID int64) error {
	if _, err := s.campaignStore.FindByID(ctx, campaignID); err != nil {
		return err
	}

	if err := s.postStore.DeleteByCampaign(ctx, campaignID); err != nil {
		return err
	}
	if err := s.campaignStore.Delete(ctx, campaignID); err != nil {
		return err
	}
	s.queue.RemoveCampaign(campaignID)

	s.logger.Info("campaign deleted", zap.Int64("campaign_id", campaignID))
	return nil
}

// renumberCampaign reloads the campaign's full post set, re-derives
// contiguous positions, persists them, and rebuilds the queue index. The
// pass is idempotent and leaves IDs and statuses untouched.
func (s *CampaignService) renumberCampaign(ctx context.Context, c *campaign.Campaign) error {
	all, err := s.postStore.FindByCampaign(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("failed to load campaign posts: %w", err)
	}

	all = scheduler.Renumber(all)
	if err := s.postStore.UpdatePositions(ctx, all); err != nil {
		return err
	}

	s.queue.RemoveCampaign(c.ID)
	s.queue.Index(all...)
	s.queue.SetCampaignPaused(c.ID, c.IsPaused())

	return nil
}

func (s *CampaignService) generateReference() string {
	return fmt.Sprintf("CMP-%s", ulid.Make().String())
}

func seedFrom(req *campaign.CreateCampaignRequest) int64 {
	if req == nil {
		return 0
	}
	return req.RandomSeed
}

func holidaysFrom(req *campaign.CreateCampaignRequest) []string {
	if req == nil {
		return nil
	}
	return req.Holidays
}

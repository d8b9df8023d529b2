// internal/service/dispatch/dispatcher.go
package dispatch

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"postflow-service/internal/domain/post"
	xerrors "postflow-service/internal/pkg/errors"
	"postflow-service/internal/platform"
	"postflow-service/internal/scheduler"
	ws "postflow-service/internal/websocket"
)

// PostStore persists lifecycle transitions after the in-memory queue has
// applied them.
type PostStore interface {
	UpdateState(ctx context.Context, p *post.ScheduledPost) error
}

// CampaignCounter bumps a campaign's published tally.
type CampaignCounter interface {
	IncrementPublished(ctx context.Context, campaignID int64) error
}

// RegenGuard reports whether a campaign's schedule is being regenerated;
// dispatch skips such campaigns for the tick.
type RegenGuard interface {
	Held(ctx context.Context, campaignID int64) (bool, error)
}

// EventSink receives lifecycle events for connected dashboards.
type EventSink interface {
	Broadcast(evt ws.Event)
}

type Config struct {
	Interval       time.Duration
	Workers        int
	MaxRetries     int
	PublishTimeout time.Duration
}

// Dispatcher drains due posts from the publish queue on a fixed tick. Each
// tick claims due posts, publishes them through a bounded worker pool, and
// persists every transition.
type Dispatcher struct {
	queue     *scheduler.PublishQueue
	store     PostStore
	campaigns CampaignCounter
	publisher platform.Publisher
	guard     RegenGuard
	events    EventSink
	cfg       Config
	logger    *zap.Logger

	cron *cron.Cron
}

func NewDispatcher(
	queue *scheduler.PublishQueue,
	store PostStore,
	campaigns CampaignCounter,
	publisher platform.Publisher,
	guard RegenGuard,
	events EventSink,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 30 * time.Second
	}

	return &Dispatcher{
		queue:     queue,
		store:     store,
		campaigns: campaigns,
		publisher: publisher,
		guard:     guard,
		events:    events,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start begins the dispatch tick. A tick that overruns the interval is
// skipped rather than stacked.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	_, err := d.cron.AddFunc(cronSpec(d.cfg.Interval), func() {
		d.Tick(ctx, time.Now())
	})
	if err != nil {
		return xerrors.Wrap(err, "failed to schedule dispatch tick")
	}

	d.cron.Start()
	d.logger.Info("dispatcher started",
		zap.Duration("interval", d.cfg.Interval),
		zap.Int("workers", d.cfg.Workers),
		zap.Int("max_retries", d.cfg.MaxRetries),
	)
	return nil
}

// Stop halts the tick and waits for in-flight publishes to finish.
func (d *Dispatcher) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
	d.logger.Info("dispatcher stopped")
}

func cronSpec(interval time.Duration) string {
	secs := int(interval.Seconds())
	if secs < 1 {
		secs = 1
	}
	return "@every " + time.Duration(secs*int(time.Second)).String()
}

// Tick claims every due post and publishes through the worker pool. It is
// exported so tests and the regenerate flow can force a pass.
func (d *Dispatcher) Tick(ctx context.Context, now time.Time) {
	due := d.queue.DueBefore(now)
	if len(due) == 0 {
		return
	}

	d.logger.Info("dispatch tick", zap.Int("due", len(due)))

	skipCampaigns := d.regeneratingCampaigns(ctx, due)

	sem := make(chan struct{}, d.cfg.Workers)
	for _, p := range due {
		if skipCampaigns[p.CampaignID] {
			continue
		}

		claimed, err := d.queue.Claim(p.ID)
		if err != nil {
			// Lost the race or campaign was paused mid-tick; both are fine.
			if !xerrors.Is(err, xerrors.ErrPostAlreadyClaimed) &&
				!xerrors.Is(err, xerrors.ErrCampaignPaused) &&
				!xerrors.Is(err, xerrors.ErrNotFound) {
				d.logger.Error("failed to claim post", zap.String("post_id", p.ID), zap.Error(err))
			}
			continue
		}

		d.persist(ctx, &claimed)
		d.emit("post.queued", claimed, "")

		sem <- struct{}{}
		go func(p post.ScheduledPost) {
			defer func() { <-sem }()
			d.publish(ctx, p)
		}(claimed)
	}

	// Drain so Tick returns only after the whole batch settles.
	for i := 0; i < d.cfg.Workers; i++ {
		sem <- struct{}{}
	}
}

func (d *Dispatcher) regeneratingCampaigns(ctx context.Context, due []post.ScheduledPost) map[int64]bool {
	skip := make(map[int64]bool)
	if d.guard == nil {
		return skip
	}

	seen := make(map[int64]bool)
	for _, p := range due {
		if seen[p.CampaignID] {
			continue
		}
		seen[p.CampaignID] = true

		held, err := d.guard.Held(ctx, p.CampaignID)
		if err != nil {
			d.logger.Warn("regeneration check failed, skipping campaign this tick",
				zap.Int64("campaign_id", p.CampaignID), zap.Error(err))
			skip[p.CampaignID] = true
			continue
		}
		if held {
			skip[p.CampaignID] = true
		}
	}
	return skip
}

// publish drives one claimed post to a terminal outcome: published, or failed
// with its retry budget spent. Retries happen inline within the same worker.
func (d *Dispatcher) publish(ctx context.Context, p post.ScheduledPost) {
	for {
		platformIDs, err := d.attempt(ctx, p)
		if err == nil {
			published, markErr := d.queue.MarkPublished(p.ID, platformIDs)
			if markErr != nil {
				d.logger.Error("failed to mark post published", zap.String("post_id", p.ID), zap.Error(markErr))
				return
			}
			d.persist(ctx, &published)
			if cntErr := d.campaigns.IncrementPublished(ctx, published.CampaignID); cntErr != nil {
				d.logger.Error("failed to increment published count",
					zap.Int64("campaign_id", published.CampaignID), zap.Error(cntErr))
			}
			d.emit("post.published", published, "")
			d.logger.Info("post published",
				zap.String("post_id", published.ID),
				zap.Int64("campaign_id", published.CampaignID),
			)
			return
		}

		failed, markErr := d.queue.MarkFailed(p.ID, xerrors.MessageOrDefault(err, "publish failed"))
		if markErr != nil {
			d.logger.Error("failed to mark post failed", zap.String("post_id", p.ID), zap.Error(markErr))
			return
		}
		d.persist(ctx, &failed)

		requeued, reErr := d.queue.Requeue(p.ID, d.cfg.MaxRetries)
		if reErr != nil {
			if xerrors.Is(reErr, xerrors.ErrRetriesExhausted) {
				d.emit("post.failed", failed, failed.ErrorMessage)
				d.logger.Warn("post retries exhausted",
					zap.String("post_id", failed.ID),
					zap.Int("retry_count", failed.RetryCount),
					zap.String("error", failed.ErrorMessage),
				)
			} else {
				d.logger.Error("failed to requeue post", zap.String("post_id", p.ID), zap.Error(reErr))
			}
			return
		}

		d.persist(ctx, &requeued)
		d.emit("post.retrying", requeued, requeued.ErrorMessage)
		d.logger.Info("post retrying",
			zap.String("post_id", requeued.ID),
			zap.Int("retry_count", requeued.RetryCount),
			zap.Error(err),
		)
		p = requeued
	}
}

func (d *Dispatcher) attempt(ctx context.Context, p post.ScheduledPost) (map[string]string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()
	return d.publisher.Publish(attemptCtx, p)
}

func (d *Dispatcher) persist(ctx context.Context, p *post.ScheduledPost) {
	if err := d.store.UpdateState(ctx, p); err != nil {
		d.logger.Error("failed to persist post state",
			zap.String("post_id", p.ID),
			zap.String("status", string(p.Status)),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) emit(eventType string, p post.ScheduledPost, message string) {
	if d.events == nil {
		return
	}
	d.events.Broadcast(ws.Event{
		Type:       eventType,
		CampaignID: p.CampaignID,
		PostID:     p.ID,
		Status:     p.Status,
		Message:    message,
		At:         time.Now(),
	})
}

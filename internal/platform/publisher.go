// internal/platform/publisher.go
package platform

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"postflow-service/internal/domain/post"
)

// Publisher is the external platform-adapter collaborator. Implementations
// must honor context cancellation; the dispatcher treats a deadline the same
// as any other failure.
type Publisher interface {
	Publish(ctx context.Context, p post.ScheduledPost) (map[string]string, error)
}

// LogPublisher acknowledges posts with synthetic platform IDs instead of
// calling real platform APIs.
// TODO: replace with real Instagram/Facebook adapters behind this interface.
type LogPublisher struct {
	platforms []string
	logger    *zap.Logger
}

func NewLogPublisher(platforms []string, logger *zap.Logger) *LogPublisher {
	if len(platforms) == 0 {
		platforms = []string{"instagram"}
	}
	return &LogPublisher{platforms: platforms, logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, sp post.ScheduledPost) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids := make(map[string]string, len(p.platforms))
	for _, platform := range p.platforms {
		ids[platform] = fmt.Sprintf("%s-%s", platform, ulid.Make().String())
	}

	p.logger.Info("post published",
		zap.String("post_id", sp.ID),
		zap.Int64("campaign_id", sp.CampaignID),
		zap.Time("scheduled_time", sp.ScheduledTime),
	)

	return ids, nil
}

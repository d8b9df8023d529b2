// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"postflow-service/internal/config"
	"postflow-service/internal/db"
	campaignHandler "postflow-service/internal/handlers/campaign"
	eventsHandler "postflow-service/internal/handlers/events"
	"postflow-service/internal/middleware"
	"postflow-service/internal/pkg/lock"
	"postflow-service/internal/platform"
	"postflow-service/internal/repository/postgres"
	"postflow-service/internal/scheduler"
	campaignUsecase "postflow-service/internal/service/campaign"
	"postflow-service/internal/service/dispatch"
	"postflow-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	pool        *pgxpool.Pool
	redisClient *redis.Client
	dispatcher  *dispatch.Dispatcher
	cancelHub   context.CancelFunc
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.New()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.redisClient = redisClient

	// ----- Repositories -----
	campaignRepo := postgres.NewCampaignRepository(pool)
	postRepo := postgres.NewScheduledPostRepository(pool)

	// ----- Publish queue (rebuilt from persisted state) -----
	queue := scheduler.NewPublishQueue()
	if err := s.rebuildQueue(ctx, queue, campaignRepo, postRepo); err != nil {
		return fmt.Errorf("failed to rebuild publish queue: %w", err)
	}

	// ----- Regeneration locks -----
	lockManager := lock.NewManager(redisClient, 0)

	// ----- WebSocket hub -----
	hub := websocket.NewHub(logger)
	hubCtx, cancelHub := context.WithCancel(ctx)
	s.cancelHub = cancelHub
	go hub.Run(hubCtx)

	// ----- Services -----
	campaignService := campaignUsecase.NewCampaignService(
		campaignRepo,
		postRepo,
		queue,
		&regenLocker{manager: lockManager},
		logger,
	)

	// ----- Dispatcher -----
	publisher := platform.NewLogPublisher(s.cfg.DefaultPlatforms, logger)
	s.dispatcher = dispatch.NewDispatcher(
		queue,
		postRepo,
		campaignRepo,
		publisher,
		lockManager,
		hub,
		dispatch.Config{
			Interval:       s.cfg.DispatchInterval,
			Workers:        s.cfg.DispatchWorkers,
			MaxRetries:     s.cfg.MaxPublishRetries,
			PublishTimeout: s.cfg.PublishTimeout,
		},
		logger,
	)
	if err := s.dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	// ----- Handlers -----
	campaignHandlerInst := campaignHandler.NewCampaignHandler(campaignService)
	eventsHandlerInst := eventsHandler.NewEventsHandler(hub, logger)

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		CampaignHandler: campaignHandlerInst,
		EventsHandler:   eventsHandlerInst,
	})

	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown stops the dispatcher and releases connections. In-flight publish
// attempts are allowed to finish.
func (s *Server) Shutdown() {
	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}
	if s.cancelHub != nil {
		s.cancelHub()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.logger != nil {
		s.logger.Info("server stopped")
	}
}

// rebuildQueue reloads every non-terminal post and each campaign's pause
// state, so dispatch resumes where the previous process left off. Posts left
// queued by a crash mid-claim are reset to scheduled before indexing; a
// queued post without an owning worker would never be claimable again.
func (s *Server) rebuildQueue(
	ctx context.Context,
	queue *scheduler.PublishQueue,
	campaignRepo *postgres.CampaignRepository,
	postRepo *postgres.ScheduledPostRepository,
) error {
	pending, err := postRepo.FindPending(ctx)
	if err != nil {
		return err
	}
	for i := range pending {
		if scheduler.Recover(&pending[i]) {
			if err := postRepo.UpdateState(ctx, &pending[i]); err != nil {
				return err
			}
			s.logger.Warn("recovered post from stale claim", zap.String("post_id", pending[i].ID))
		}
	}
	queue.Index(pending...)

	campaigns, err := campaignRepo.FindAll(ctx)
	if err != nil {
		return err
	}
	for _, c := range campaigns {
		queue.SetCampaignPaused(c.ID, c.IsPaused())
	}

	s.logger.Info("publish queue rebuilt",
		zap.Int("pending_posts", len(pending)),
		zap.Int("campaigns", len(campaigns)),
	)
	return nil
}

// regenLocker adapts the redis lock manager to the campaign service's
// locker interface.
type regenLocker struct {
	manager *lock.Manager
}

func (l *regenLocker) Acquire(ctx context.Context, campaignID int64) (campaignUsecase.Lease, error) {
	lease, err := l.manager.Acquire(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return lease, nil
}

package router

import (
	"fmt"

	"ledgersync-backend/internal/application/activity"
	healthsvc "ledgersync-backend/internal/application/health"
	"ledgersync-backend/internal/application/importer"
	reconsvc "ledgersync-backend/internal/application/reconciliation"
	"ledgersync-backend/internal/application/syncjob"
	"ledgersync-backend/internal/config"
	"ledgersync-backend/internal/infrastructure/database"
	"ledgersync-backend/internal/infrastructure/synclock"
	synchandler "ledgersync-backend/internal/interfaces/handlers/accountsync"
	activityhandler "ledgersync-backend/internal/interfaces/handlers/activity"
	healthhandler "ledgersync-backend/internal/interfaces/handlers/health"
	reconhandler "ledgersync-backend/internal/interfaces/handlers/reconciliation"
	"ledgersync-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const rateLimitBurst = 10

// Services builds the application services from cfg over an open store and optional Redis client.
func Services(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*syncjob.Runner, error) {
	policy, err := importer.ParseConflictPolicy(cfg.HoldingConflictPolicy)
	if err != nil {
		return nil, err
	}
	var locker *synclock.Locker
	if rdb != nil {
		locker = &synclock.Locker{Rdb: rdb, TTL: cfg.SyncLockTTL}
	}
	return &syncjob.Runner{
		DB:         db,
		Locker:     locker,
		Importer:   &importer.Service{DB: db, ConflictPolicy: policy},
		Reconciler: &reconsvc.Service{DB: db},
		Detector:   &activity.Detector{DB: db},
		Options: syncjob.Options{
			StaleDays:       cfg.StalePendingDays,
			DateWindowDays:  cfg.ReconcileDateWindowDays,
			AmountTolerance: cfg.ReconcileAmountTolerance,
			LookbackDays:    cfg.ActivityLookbackDays,
			BatchTimeout:    cfg.SyncBatchTimeout,
		},
	}, nil
}

// CreateApp opens the store and Redis named by cfg and mounts every route.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = synclock.Open(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	app, err := NewApp(cfg, db, rdb)
	if err != nil {
		return nil, nil, nil, err
	}
	return app, db, rdb, nil
}

// NewApp mounts the operator API over already-open dependencies. rdb may be nil.
func NewApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*fiber.App, error) {
	runner, err := Services(cfg, db, rdb)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.NewRateLimiter(cfg.RateLimitRPS, rateLimitBurst).Handler())

	hh := &healthhandler.Handlers{Rdb: rdb, DB: &healthsvc.GormPinger{DB: db}}
	app.Get("/health/json", hh.JSON)

	api := app.Group("/api/v1", middleware.RequireOperator(cfg.OperatorKeyHash))
	api.Post("/health/reset", hh.Reset)

	rh := &reconhandler.Handlers{
		Service: runner.Reconciler,
		Defaults: reconsvc.Options{
			DateWindowDays:  cfg.ReconcileDateWindowDays,
			AmountTolerance: cfg.ReconcileAmountTolerance,
		},
		StaleDays: cfg.StalePendingDays,
	}
	api.Post("/reconciliation/exclude-stale", rh.ExcludeStale)
	api.Post("/reconciliation/run", rh.Reconcile)
	api.Get("/accounts/:account_id/suggestions", rh.ListSuggestions)
	api.Post("/entries/:entry_id/merge", rh.Merge)
	api.Post("/entries/:entry_id/dismiss", rh.Dismiss)
	api.Delete("/entries/:entry_id/suggestion", rh.Clear)

	ah := &activityhandler.Handlers{Detector: runner.Detector, LookbackDays: cfg.ActivityLookbackDays}
	api.Post("/activity/infer-label", ah.InferLabel)
	api.Get("/accounts/:account_id/activity/recent", ah.Recent)

	sh := &synchandler.Handlers{Runner: runner}
	api.Post("/accounts/:account_id/sync", sh.Sync)

	return app, nil
}

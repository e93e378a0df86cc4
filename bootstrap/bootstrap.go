package bootstrap

import (
	"context"

	"ledgersync-backend/internal/config"
	"ledgersync-backend/internal/interfaces/router"
	"ledgersync-backend/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Init loads configuration and configures the global logger from it.
func Init() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Env, cfg.LogLevel)
	return cfg, nil
}

// New builds the API app and verifies the store and Redis answer. The returned func
// closes both connections.
func New(ctx context.Context) (*fiber.App, *config.Config, func(), error) {
	cfg, err := Init()
	if err != nil {
		return nil, nil, nil, err
	}
	app, db, rdb, err := router.CreateApp(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, nil, nil, err
	}
	log.Info().Str("driver", cfg.DatabaseDriver).Msg("database connected")
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, nil, err
		}
		log.Info().Msg("redis connected")
	} else {
		log.Warn().Msg("REDIS_URL not set: sync runs are not serialized per account")
	}

	closeFn := func() {
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = sqlDB.Close()
	}
	return app, cfg, closeFn, nil
}

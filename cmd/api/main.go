package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledgersync-backend/bootstrap"

	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cfg, closeFn, err := bootstrap.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer closeFn()

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Msgf("server running, health check at http://localhost:%s/health/json", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("listen")
	}
}

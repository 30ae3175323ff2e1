package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/attorney-scheduling/internal/appointment"
	"github.com/hackgods/attorney-scheduling/internal/config"
	"github.com/hackgods/attorney-scheduling/internal/db"
	"github.com/hackgods/attorney-scheduling/internal/logging"
	"github.com/hackgods/attorney-scheduling/internal/outbox"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("completion-worker", true, "info")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("completion-worker", cfg.IsDev(), cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Dur("interval", cfg.WorkerInterval).
		Dur("grace", cfg.CompletionGrace).
		Int("batch", cfg.CompletionBatch).
		Msg("completion-worker starting up")

	if cfg.StoreDriver != config.DriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("completion-worker requires the postgres store driver")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	schedules := schedule.NewService(schedule.NewPgRepository(pgPool), schedule.ServiceConfig{Location: cfg.Location}, logger)
	// Completion never books, so no slot locker is needed.
	svc := appointment.NewService(
		appointment.NewPgRepository(pgPool, outbox.NewPgRepository(pgPool)),
		schedules,
		nil,
		appointment.ServiceConfig{Location: cfg.Location},
		logger,
	)

	// Run once at startup
	runOnce(rootCtx, svc, cfg, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping completion worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, cfg, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *appointment.Service, cfg config.Config, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := svc.CompleteElapsed(runCtx, cfg.CompletionGrace, cfg.CompletionBatch)
	if err != nil {
		logger.Error().Err(err).Int("completed", n).Msg("completion run error")
		return
	}
	logger.Info().Int("completed", n).Dur("took", time.Since(start)).Msg("completion run complete")
}

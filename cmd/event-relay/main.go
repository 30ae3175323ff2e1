package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/attorney-scheduling/internal/config"
	"github.com/hackgods/attorney-scheduling/internal/db"
	"github.com/hackgods/attorney-scheduling/internal/logging"
	"github.com/hackgods/attorney-scheduling/internal/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("event-relay", true, "info")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("event-relay", cfg.IsDev(), cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("brokers", cfg.KafkaBrokers).
		Dur("poll", cfg.OutboxPoll).
		Msg("event-relay starting up")

	if cfg.StoreDriver != config.DriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("event-relay requires the postgres store driver")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	if err := db.EnsureSchema(rootCtx, pgPool); err != nil {
		logger.Fatal().Err(err).Msg("schema setup error")
	}

	pub := outbox.NewPublisher(pgPool, outbox.NewPgRepository(pgPool), logger, publisherConfig(cfg))
	pub.Run(rootCtx)
	logger.Info().Msg("event-relay stopped")
}

func publisherConfig(cfg config.Config) outbox.PublisherConfig {
	return outbox.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPoll,
		BatchSize: cfg.OutboxBatch,
	}
}

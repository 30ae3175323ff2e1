package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/attorney-scheduling/internal/api"
	"github.com/hackgods/attorney-scheduling/internal/appointment"
	"github.com/hackgods/attorney-scheduling/internal/availability"
	"github.com/hackgods/attorney-scheduling/internal/config"
	"github.com/hackgods/attorney-scheduling/internal/db"
	"github.com/hackgods/attorney-scheduling/internal/logging"
	"github.com/hackgods/attorney-scheduling/internal/outbox"
	redisclient "github.com/hackgods/attorney-scheduling/internal/redis"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

type backend struct {
	schedules schedule.Repository
	store     appointment.Store
	locker    redisclient.Locker
	checks    []api.ReadyCheck
	closers   []func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("api-server", true, "info")
		boot.Fatal().Err(err).Msg("config load error")
	}

	logger := logging.New("api-server", cfg.IsDev(), cfg.LogLevel).With().Str("version", cfg.Version).Logger()
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("store", cfg.StoreDriver).
		Str("timezone", cfg.Location.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := connect(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("backend setup error")
	}
	defer func() {
		for i := len(b.closers) - 1; i >= 0; i-- {
			b.closers[i]()
		}
	}()

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.HTTPPort),
		Handler:           newHandler(cfg, b, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-rootCtx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}

	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("api-server stopped")
}

// newHandler builds the services over b and mounts them on the router.
func newHandler(cfg config.Config, b *backend, logger zerolog.Logger) http.Handler {
	schedules := schedule.NewService(b.schedules, schedule.ServiceConfig{
		Location:  cfg.Location,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	}, logger)
	booking := appointment.NewService(b.store, schedules, b.locker, appointment.ServiceConfig{Location: cfg.Location}, logger)
	avail := availability.NewService(availability.NewResolver(cfg.Location, cfg.MaxRangeDays), schedules, b.store)

	return api.NewRouter(api.RouterConfig{
		Appointments: booking,
		Availability: avail,
		Schedules:    schedules,
		Checks:       b.checks,
		Logger:       logger,
		Location:     cfg.Location,
		Env:          cfg.Env,
		Version:      cfg.Version,
	})
}

func connect(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*backend, error) {
	if cfg.StoreDriver == config.DriverMemory {
		logger.Warn().Msg("memory store driver: data is lost on restart and only one instance may run")
		return &backend{
			schedules: schedule.NewMemoryRepository(),
			store:     appointment.NewMemoryStore(outbox.NewLogRecorder(logger)),
			locker:    redisclient.NewLocalLocker(),
		}, nil
	}

	b := &backend{}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, pgPool.Close)
	logger.Info().Msg("connected to Postgres")

	if err := db.EnsureSchema(ctx, pgPool); err != nil {
		pgPool.Close()
		return nil, err
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		URL:      cfg.RedisURL,
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		pgPool.Close()
		return nil, err
	}
	b.closers = append(b.closers, func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	})
	logger.Info().Msg("connected to Redis")

	b.schedules = schedule.NewPgRepository(pgPool)
	b.store = appointment.NewPgRepository(pgPool, outbox.NewPgRepository(pgPool))
	b.locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	b.checks = []api.ReadyCheck{api.PostgresCheck(pgPool), api.RedisCheck(rdb)}
	return b, nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/attorney-scheduling/internal/config"
	"github.com/hackgods/attorney-scheduling/internal/db"
	"github.com/hackgods/attorney-scheduling/internal/logging"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

// Office hours a seeded attorney may pick from, on the hour and half hour.
var officeHours = []string{
	"08:00", "08:30", "09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
	"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
}

var exceptionReasons = []string{
	"court appearance",
	"deposition",
	"bar association meeting",
	"client site visit",
	"continuing legal education",
	"public holiday",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("seed", true, "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New("seed", cfg.IsDev(), cfg.LogLevel)
	logger.Info().Msg("seed starting")

	if cfg.StoreDriver != config.DriverPostgres {
		logger.Fatal().Str("store", cfg.StoreDriver).Msg("seed requires the postgres store driver")
	}

	count := 25
	if v := os.Getenv("SEED_ATTORNEYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			logger.Fatal().Str("SEED_ATTORNEYS", v).Msg("SEED_ATTORNEYS must be a positive integer")
		}
		count = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("ensure schema")
	}

	svc := schedule.NewService(schedule.NewPgRepository(pool), schedule.ServiceConfig{Location: cfg.Location}, logger)

	if err := seedAttorneys(context.Background(), svc, count, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed attorneys")
	}

	logger.Info().Msg("seed complete")
}

func seedAttorneys(ctx context.Context, svc *schedule.Service, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding attorney schedules")

	for i := 0; i < count; i++ {
		attorneyID := uuid.New()
		if err := seedWeek(ctx, svc, attorneyID); err != nil {
			return fmt.Errorf("attorney %s: %w", attorneyID, err)
		}
		if err := seedExceptions(ctx, svc, attorneyID); err != nil {
			return fmt.Errorf("attorney %s: %w", attorneyID, err)
		}

		// Attorneys have no table of their own; print the id so callers can use it.
		fmt.Printf("%s\t%s\n", attorneyID, gofakeit.Name())
	}

	logger.Info().Int("count", count).Msg("attorney schedules seeded")
	return nil
}

// seedWeek gives every weekday a random subset of office hours and leaves
// the weekend closed.
func seedWeek(ctx context.Context, svc *schedule.Service, attorneyID uuid.UUID) error {
	for day := schedule.Monday; day <= schedule.Friday; day++ {
		times, err := schedule.ParseTimes(shuffledHours()[:gofakeit.Number(3, 8)])
		if err != nil {
			return err
		}
		if _, err := svc.SetWeekdaySlots(ctx, attorneyID, day, times); err != nil {
			return err
		}
	}
	return nil
}

func seedExceptions(ctx context.Context, svc *schedule.Service, attorneyID uuid.UUID) error {
	today := svc.Today()
	for n := gofakeit.Number(0, 3); n > 0; n-- {
		date := today.AddDays(gofakeit.Number(1, 30))

		// Removed and added times come from disjoint parts of one shuffle.
		hours := shuffledHours()
		k := gofakeit.Number(1, 3)
		removed, err := schedule.ParseTimes(hours[:k])
		if err != nil {
			return err
		}
		var added []schedule.TimeOfDay
		if gofakeit.Bool() {
			if added, err = schedule.ParseTimes(hours[k : k+1]); err != nil {
				return err
			}
		}

		reason := exceptionReasons[gofakeit.Number(0, len(exceptionReasons)-1)]
		if _, err := svc.PutException(ctx, attorneyID, date, removed, added, reason); err != nil {
			return err
		}
	}
	return nil
}

func shuffledHours() []string {
	hours := slices.Clone(officeHours)
	gofakeit.ShuffleStrings(hours)
	return hours
}

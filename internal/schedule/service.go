package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

type ServiceConfig struct {
	Location  *time.Location
	CacheSize int // <= 0 disables the cache
	CacheTTL  time.Duration
}

// Service is the write path for schedules and the cached read path used by
// availability queries.
type Service struct {
	repo   Repository
	cache  *expirable.LRU[uuid.UUID, *WeeklySchedule]
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time

	// gen counts writes so a load that raced one does not refill the cache.
	mu  sync.Mutex
	gen uint64
}

func NewService(repo Repository, cfg ServiceConfig, logger zerolog.Logger) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Service{
		repo:   repo,
		loc:    loc,
		logger: logger.With().Str("component", "schedule").Logger(),
		now:    time.Now,
	}
	if cfg.CacheSize > 0 {
		s.cache = expirable.NewLRU[uuid.UUID, *WeeklySchedule](cfg.CacheSize, nil, cfg.CacheTTL)
	}
	return s
}

// Today is the current calendar date in the deployment timezone.
func (s *Service) Today() Date {
	return DateOf(s.now(), s.loc)
}

// Get returns a private copy of the schedule, served from cache when possible.
func (s *Service) Get(ctx context.Context, attorneyID uuid.UUID) (*WeeklySchedule, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(attorneyID); ok {
			return cached.Clone(), nil
		}
	}
	return s.Load(ctx, attorneyID)
}

// Load always reads the repository and refreshes the cache, unless a write
// landed while the read was in flight.
func (s *Service) Load(ctx context.Context, attorneyID uuid.UUID) (*WeeklySchedule, error) {
	gen := s.generation()

	sched, err := s.repo.Load(ctx, attorneyID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	if s.cache != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.cache.Add(attorneyID, sched.Clone())
		}
		s.mu.Unlock()
	}
	return sched, nil
}

func (s *Service) SetWeekdaySlots(ctx context.Context, attorneyID uuid.UUID, day Weekday, times []TimeOfDay) ([]TimeOfDay, error) {
	norm, err := NewWeeklySchedule(attorneyID).SetWeekdaySlots(day, times)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceWeekday(ctx, attorneyID, day, norm); err != nil {
		return nil, fmt.Errorf("save weekday slots: %w", err)
	}
	s.invalidate(attorneyID)

	s.logger.Info().
		Str("attorney_id", attorneyID.String()).
		Str("weekday", day.String()).
		Int("slots", len(norm)).
		Msg("weekday slots replaced")
	return norm, nil
}

func (s *Service) PutException(ctx context.Context, attorneyID uuid.UUID, date Date, removed, added []TimeOfDay, reason string) (DateException, error) {
	exc, err := NewWeeklySchedule(attorneyID).AddException(date, removed, added, reason, s.Today())
	if err != nil {
		return DateException{}, err
	}

	if err := s.repo.UpsertException(ctx, attorneyID, exc); err != nil {
		return DateException{}, fmt.Errorf("save schedule exception: %w", err)
	}
	s.invalidate(attorneyID)

	s.logger.Info().
		Str("attorney_id", attorneyID.String()).
		Str("date", date.String()).
		Int("removed", len(exc.RemovedTimes)).
		Int("added", len(exc.AddedTimes)).
		Msg("schedule exception saved")
	return exc, nil
}

func (s *Service) DeleteException(ctx context.Context, attorneyID uuid.UUID, date Date) error {
	if err := s.repo.DeleteException(ctx, attorneyID, date); err != nil {
		return fmt.Errorf("delete schedule exception: %w", err)
	}
	s.invalidate(attorneyID)
	return nil
}

func (s *Service) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Service) invalidate(attorneyID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cache != nil {
		s.cache.Remove(attorneyID)
	}
}

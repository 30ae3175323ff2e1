package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
)

type countingRepo struct {
	*MemoryRepository
	loads int
	// afterRead runs once, between the repository read and the return.
	afterRead func()
}

func (r *countingRepo) Load(ctx context.Context, attorneyID uuid.UUID) (*WeeklySchedule, error) {
	r.loads++
	sched, err := r.MemoryRepository.Load(ctx, attorneyID)
	if hook := r.afterRead; hook != nil {
		r.afterRead = nil
		hook()
	}
	return sched, err
}

func newTestService(t *testing.T) (*Service, *countingRepo) {
	t.Helper()
	repo := &countingRepo{MemoryRepository: NewMemoryRepository()}
	svc := NewService(repo, ServiceConfig{Location: time.UTC, CacheSize: 16, CacheTTL: time.Minute}, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, time.October, 18, 12, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestService_SetWeekdaySlotsPersists(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := uuid.New()

	got, err := svc.SetWeekdaySlots(ctx, id, Wednesday, times("10:00", "09:00", "09:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, got, "09:00", "10:00")

	sched, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	assertTimes(t, sched.WeekdaySlots(Wednesday), "09:00", "10:00")
}

func TestService_GetUsesCacheAndWritesInvalidate(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	id := uuid.New()

	svc.Get(ctx, id)
	svc.Get(ctx, id)
	if repo.loads != 1 {
		t.Fatalf("expected 1 repository load, got %d", repo.loads)
	}

	if _, err := svc.PutException(ctx, id, nextWednesday, nil, times("14:00"), "extra"); err != nil {
		t.Fatalf("put exception: %v", err)
	}
	sched, _ := svc.Get(ctx, id)
	if repo.loads != 2 {
		t.Fatalf("expected reload after write, got %d loads", repo.loads)
	}
	assertTimes(t, sched.SlotsForDate(nextWednesday), "14:00")

	svc.Load(ctx, id)
	if repo.loads != 3 {
		t.Fatalf("Load must bypass the cache, got %d loads", repo.loads)
	}
}

func TestService_GetReturnsPrivateCopies(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := uuid.New()
	svc.SetWeekdaySlots(ctx, id, Monday, times("09:00"))

	first, _ := svc.Get(ctx, id)
	first.SetWeekdaySlots(Monday, nil)

	second, _ := svc.Get(ctx, id)
	assertTimes(t, second.WeekdaySlots(Monday), "09:00")
}

func TestService_PutExceptionRejectsPastDate(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.PutException(context.Background(), uuid.New(), today.AddDays(-1), nil, times("09:00"), "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_DeleteExceptionIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id := uuid.New()
	svc.SetWeekdaySlots(ctx, id, Wednesday, times("09:00"))
	svc.PutException(ctx, id, nextWednesday, times("09:00"), nil, "holiday")

	for i := 0; i < 2; i++ {
		if err := svc.DeleteException(ctx, id, nextWednesday); err != nil {
			t.Fatalf("delete #%d: %v", i, err)
		}
	}
	sched, _ := svc.Get(ctx, id)
	assertTimes(t, sched.SlotsForDate(nextWednesday), "09:00")
}

func TestService_WithoutCache(t *testing.T) {
	repo := &countingRepo{MemoryRepository: NewMemoryRepository()}
	svc := NewService(repo, ServiceConfig{}, zerolog.Nop())
	id := uuid.New()

	svc.Get(context.Background(), id)
	svc.Get(context.Background(), id)
	if repo.loads != 2 {
		t.Fatalf("expected every Get to hit the repository, got %d", repo.loads)
	}
}

func TestService_LoadRacingWriteDoesNotCacheStaleSchedule(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	id := uuid.New()
	svc.SetWeekdaySlots(ctx, id, Wednesday, times("09:00"))

	// The write lands after the read but before the cache is refilled.
	repo.afterRead = func() {
		if _, err := svc.SetWeekdaySlots(ctx, id, Wednesday, times("11:00")); err != nil {
			t.Errorf("concurrent write: %v", err)
		}
	}
	stale, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	assertTimes(t, stale.WeekdaySlots(Wednesday), "09:00")

	fresh, err := svc.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	assertTimes(t, fresh.WeekdaySlots(Wednesday), "11:00")
	if repo.loads != 2 {
		t.Fatalf("expected the second Get to reload, got %d loads", repo.loads)
	}
}

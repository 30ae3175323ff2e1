package schedule

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Repository persists schedules. Load returns an empty schedule for attorneys
// that never saved one.
type Repository interface {
	Load(ctx context.Context, attorneyID uuid.UUID) (*WeeklySchedule, error)

	ReplaceWeekday(ctx context.Context, attorneyID uuid.UUID, day Weekday, times []TimeOfDay) error
	UpsertException(ctx context.Context, attorneyID uuid.UUID, exc DateException) error
	DeleteException(ctx context.Context, attorneyID uuid.UUID, date Date) error
}

// MemoryRepository keeps schedules in process. It backs the memory store
// driver and the tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	schedules map[uuid.UUID]*WeeklySchedule
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{schedules: make(map[uuid.UUID]*WeeklySchedule)}
}

func (r *MemoryRepository) Load(_ context.Context, attorneyID uuid.UUID) (*WeeklySchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.schedules[attorneyID]; ok {
		return s.Clone(), nil
	}
	return NewWeeklySchedule(attorneyID), nil
}

func (r *MemoryRepository) ReplaceWeekday(_ context.Context, attorneyID uuid.UUID, day Weekday, times []TimeOfDay) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.get(attorneyID).SetWeekdaySlots(day, times)
	return err
}

func (r *MemoryRepository) UpsertException(_ context.Context, attorneyID uuid.UUID, exc DateException) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.get(attorneyID).putException(exc.clone())
	return nil
}

func (r *MemoryRepository) DeleteException(_ context.Context, attorneyID uuid.UUID, date Date) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.get(attorneyID).RemoveException(date)
	return nil
}

func (r *MemoryRepository) get(attorneyID uuid.UUID) *WeeklySchedule {
	s, ok := r.schedules[attorneyID]
	if !ok {
		s = NewWeeklySchedule(attorneyID)
		r.schedules[attorneyID] = s
	}
	return s
}

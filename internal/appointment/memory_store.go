package appointment

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
	"github.com/hackgods/attorney-scheduling/internal/outbox"
)

type slotKey struct {
	attorneyID uuid.UUID
	unixNano   int64
}

func keyOf(attorneyID uuid.UUID, at time.Time) slotKey {
	return slotKey{attorneyID: attorneyID, unixNano: at.UnixNano()}
}

// MemoryStore is an in-process Store. The active map plays the role of the
// partial unique index on (attorney_id, scheduled_at). Events go to the
// recorder under the write lock; a recorder error leaves the store untouched.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Appointment
	active map[slotKey]uuid.UUID
	events outbox.Recorder
	now    func() time.Time
}

// NewMemoryStore returns an empty store. events may be nil to drop events.
func NewMemoryStore(events outbox.Recorder) *MemoryStore {
	return &MemoryStore{
		byID:   make(map[uuid.UUID]*Appointment),
		active: make(map[slotKey]uuid.UUID),
		events: events,
		now:    time.Now,
	}
}

func (m *MemoryStore) record(ctx context.Context, evt *outbox.Event) error {
	if evt == nil || m.events == nil {
		return nil
	}
	if err := m.events.Record(ctx, *evt); err != nil {
		return fmt.Errorf("record %s event: %w", evt.EventType, err)
	}
	return nil
}

func (m *MemoryStore) FindConflicting(_ context.Context, attorneyID uuid.UUID, scheduledAt time.Time) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.active[keyOf(attorneyID, scheduledAt)]
	if !ok {
		return nil, nil
	}
	cp := *m.byID[id]
	return &cp, nil
}

func (m *MemoryStore) Insert(ctx context.Context, appt *Appointment, evt *outbox.Event) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[appt.ID]; exists {
		return nil, apperr.Conflict("id", appt.ID.String(), "appointment id already exists")
	}
	key := keyOf(appt.AttorneyID, appt.ScheduledAt)
	if appt.Occupies() {
		if _, taken := m.active[key]; taken {
			return nil, apperr.Conflict("scheduledAt", appt.ScheduledAt.Format(time.RFC3339), "slot already booked")
		}
	}
	if err := m.record(ctx, evt); err != nil {
		return nil, err
	}

	cp := *appt
	now := m.now()
	cp.CreatedAt, cp.UpdatedAt = now, now
	m.byID[cp.ID] = &cp
	if cp.Occupies() {
		m.active[key] = cp.ID
	}

	out := cp
	return &out, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next AppointmentStatus, evt *outbox.Event) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	appt, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("id", id.String(), "appointment not found")
	}
	if appt.Status != expected {
		return nil, apperr.StaleState("status", string(appt.Status), "appointment status changed")
	}

	key := keyOf(appt.AttorneyID, appt.ScheduledAt)
	if !appt.Occupies() && next != StatusCancelled {
		if _, taken := m.active[key]; taken {
			return nil, apperr.Conflict("scheduledAt", appt.ScheduledAt.Format(time.RFC3339), "slot already booked")
		}
	}
	if err := m.record(ctx, evt); err != nil {
		return nil, err
	}

	appt.Status = next
	appt.UpdatedAt = m.now()
	if appt.Occupies() {
		m.active[key] = appt.ID
	} else if m.active[key] == appt.ID {
		delete(m.active, key)
	}

	cp := *appt
	return &cp, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	appt, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("id", id.String(), "appointment not found")
	}
	cp := *appt
	return &cp, nil
}

func (m *MemoryStore) ListByAttorney(_ context.Context, attorneyID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.AttorneyID == attorneyID && inRange(a.ScheduledAt, from, to)
	}, 0), nil
}

func (m *MemoryStore) ListByClient(_ context.Context, clientID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.ClientID == clientID && inRange(a.ScheduledAt, from, to)
	}, 0), nil
}

func (m *MemoryStore) ListDue(_ context.Context, status AppointmentStatus, before time.Time, limit int) ([]Appointment, error) {
	return m.filter(func(a *Appointment) bool {
		return a.Status == status && !a.ScheduledAt.After(before)
	}, limit), nil
}

func (m *MemoryStore) filter(keep func(*Appointment) bool, limit int) []Appointment {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Appointment
	for _, a := range m.byID {
		if keep(a) {
			out = append(out, *a)
		}
	}
	slices.SortFunc(out, func(a, b Appointment) int {
		if c := a.ScheduledAt.Compare(b.ScheduledAt); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

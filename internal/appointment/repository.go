package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/attorney-scheduling/internal/outbox"
)

// Store is the persistence boundary for appointments. Implementations must
// enforce at most one non-cancelled appointment per (attorney, instant) at
// the storage layer; the service's FindConflicting call is only a fast path.
//
// A non-nil event passed to Insert or UpdateStatus is stored atomically with
// the change: both are written or neither is.
type Store interface {
	// FindConflicting returns the non-cancelled appointment at that instant, or nil.
	FindConflicting(ctx context.Context, attorneyID uuid.UUID, scheduledAt time.Time) (*Appointment, error)

	// Insert fails with apperr.ErrConflict when the slot is already held.
	Insert(ctx context.Context, appt *Appointment, evt *outbox.Event) (*Appointment, error)

	// UpdateStatus only applies when the stored status equals expected,
	// otherwise it fails with apperr.ErrStaleState.
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next AppointmentStatus, evt *outbox.Event) (*Appointment, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// List queries cover scheduledAt in [from, to), ordered by scheduledAt.
	ListByAttorney(ctx context.Context, attorneyID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// Completion worker
	ListDue(ctx context.Context, status AppointmentStatus, before time.Time, limit int) ([]Appointment, error)
}

package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

func ParseStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return st, nil
	}
	return "", apperr.Validation("newStatus", s, "status must be one of pending, confirmed, cancelled, completed")
}

// Terminal statuses accept no further transitions.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Appointment is one booked slot. ScheduledAt never changes after creation;
// rescheduling is a cancel followed by a new booking.
type Appointment struct {
	ID          uuid.UUID
	AttorneyID  uuid.UUID
	ClientID    uuid.UUID
	ScheduledAt time.Time
	Status      AppointmentStatus
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Occupies reports whether the appointment holds its slot.
func (a Appointment) Occupies() bool {
	return a.Status != StatusCancelled
}

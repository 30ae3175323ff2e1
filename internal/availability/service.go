package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/attorney-scheduling/internal/appointment"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

type ScheduleReader interface {
	Get(ctx context.Context, attorneyID uuid.UUID) (*schedule.WeeklySchedule, error)
}

type BookingLister interface {
	ListByAttorney(ctx context.Context, attorneyID uuid.UUID, from, to time.Time) ([]appointment.Appointment, error)
}

// Service feeds the Resolver from the schedule cache and the appointment store.
type Service struct {
	resolver  Resolver
	schedules ScheduleReader
	bookings  BookingLister
	now       func() time.Time
}

func NewService(resolver Resolver, schedules ScheduleReader, bookings BookingLister) *Service {
	return &Service{
		resolver:  resolver,
		schedules: schedules,
		bookings:  bookings,
		now:       time.Now,
	}
}

func (s *Service) ForAttorney(ctx context.Context, attorneyID uuid.UUID, from, to schedule.Date) (Report, error) {
	if err := s.resolver.ValidateRange(from, to); err != nil {
		return nil, err
	}

	sched, err := s.schedules.Get(ctx, attorneyID)
	if err != nil {
		return nil, err
	}

	loc := s.resolver.location()
	booked, err := s.bookings.ListByAttorney(ctx, attorneyID, from.Start(loc), to.AddDays(1).Start(loc))
	if err != nil {
		return nil, fmt.Errorf("list booked appointments: %w", err)
	}

	return s.resolver.Resolve(sched, booked, from, to, s.now())
}

package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
	"github.com/hackgods/attorney-scheduling/internal/outbox"
	redisclient "github.com/hackgods/attorney-scheduling/internal/redis"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

const (
	MaxNotesLength = 2000
	MaxListDays    = 366
)

// ScheduleSource returns the attorney's current schedule, bypassing any cache.
type ScheduleSource interface {
	Load(ctx context.Context, attorneyID uuid.UUID) (*schedule.WeeklySchedule, error)
}

type ServiceConfig struct {
	Location *time.Location
}

// Service is the only writer of appointment state.
type Service struct {
	store     Store
	schedules ScheduleSource
	locker    redisclient.Locker
	loc       *time.Location
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService wires the booking service. locker may be nil.
func NewService(store Store, schedules ScheduleSource, locker redisclient.Locker, cfg ServiceConfig, logger zerolog.Logger) *Service {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:     store,
		schedules: schedules,
		locker:    locker,
		loc:       loc,
		logger:    logger.With().Str("component", "booking").Logger(),
		now:       time.Now,
	}
}

type BookRequest struct {
	AttorneyID  uuid.UUID
	ClientID    uuid.UUID
	ScheduledAt time.Time
	Notes       string
}

// Book reserves a slot for a client. The new appointment starts pending.
// Conflicts are surfaced, never retried.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if err := s.validateBooking(req); err != nil {
		return nil, err
	}

	local := req.ScheduledAt.In(s.loc)
	date := schedule.DateOf(local, s.loc)
	tod, err := schedule.NewTimeOfDay(local.Hour(), local.Minute())
	if err != nil {
		return nil, err
	}

	sched, err := s.schedules.Load(ctx, req.AttorneyID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	// On a fall-back day one local slot maps to two instants; only the one
	// the slot resolves to is bookable.
	if !req.ScheduledAt.Equal(date.At(tod, s.loc)) || !sched.Offers(date, tod) {
		return nil, apperr.SlotUnavailable("scheduledAt", req.ScheduledAt.Format(time.RFC3339),
			"%s is not an available time on %s", tod, date)
	}

	appt := &Appointment{
		ID:          uuid.New(),
		AttorneyID:  req.AttorneyID,
		ClientID:    req.ClientID,
		ScheduledAt: req.ScheduledAt.UTC(),
		Status:      StatusPending,
		Notes:       req.Notes,
	}
	evt, err := outbox.NewEvent(outbox.AggregateAppointment, appt.ID.String(), outbox.EventAppointmentBooked, bookedPayload{
		AppointmentID: appt.ID,
		AttorneyID:    appt.AttorneyID,
		ClientID:      appt.ClientID,
		ScheduledAt:   appt.ScheduledAt,
		Status:        appt.Status,
	})
	if err != nil {
		return nil, err
	}

	var created *Appointment
	err = s.withSlotLock(ctx, appt.AttorneyID, appt.ScheduledAt, func(lockCtx context.Context) error {
		existing, err := s.store.FindConflicting(lockCtx, appt.AttorneyID, appt.ScheduledAt)
		if err != nil {
			return fmt.Errorf("check conflicting appointment: %w", err)
		}
		if existing != nil {
			return apperr.Conflict("scheduledAt", appt.ScheduledAt.Format(time.RFC3339), "slot already booked")
		}

		created, err = s.store.Insert(lockCtx, appt, &evt)
		return err
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, apperr.Conflict("scheduledAt", appt.ScheduledAt.Format(time.RFC3339), "slot is being booked by another request").Wrap(err)
		}
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("attorney_id", created.AttorneyID.String()).
		Time("scheduled_at", created.ScheduledAt).
		Msg("appointment booked")

	return created, nil
}

func (s *Service) validateBooking(req BookRequest) error {
	if req.AttorneyID == uuid.Nil {
		return apperr.Validation("attorneyId", "", "attorneyId is required")
	}
	if req.ClientID == uuid.Nil {
		return apperr.Validation("clientId", "", "clientId is required")
	}
	if req.ScheduledAt.IsZero() {
		return apperr.Validation("scheduledAt", "", "scheduledAt is required")
	}
	at := req.ScheduledAt.Format(time.RFC3339Nano)
	if !req.ScheduledAt.After(s.now()) {
		return apperr.Validation("scheduledAt", at, "scheduledAt must be in the future")
	}
	if !req.ScheduledAt.Truncate(time.Minute).Equal(req.ScheduledAt) {
		return apperr.Validation("scheduledAt", at, "scheduledAt must be a whole minute")
	}
	if n := utf8.RuneCountInString(req.Notes); n > MaxNotesLength {
		return apperr.Validation("notes", fmt.Sprintf("%d characters", n), "notes must be at most %d characters", MaxNotesLength)
	}
	return nil
}

func (s *Service) withSlotLock(ctx context.Context, attorneyID uuid.UUID, at time.Time, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithSlotLock(ctx, attorneyID, at, fn)
}

// Transition moves an appointment to next under optimistic concurrency. A
// stale write is retried once against a fresh read.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next AppointmentStatus) (*Appointment, error) {
	appt, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.applyTransition(ctx, appt, next)
	if errors.Is(err, apperr.ErrStaleState) {
		s.logger.Debug().Str("appointment_id", id.String()).Msg("stale status, retrying once")

		appt, err = s.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		updated, err = s.applyTransition(ctx, appt, next)
		if errors.Is(err, apperr.ErrStaleState) {
			return nil, apperr.Conflict("id", id.String(), "appointment was modified concurrently").Wrap(err)
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", updated.ID.String()).
		Str("from", string(appt.Status)).
		Str("to", string(updated.Status)).
		Msg("appointment status changed")

	return updated, nil
}

func (s *Service) applyTransition(ctx context.Context, appt *Appointment, next AppointmentStatus) (*Appointment, error) {
	if err := CheckTransition(appt, next, s.now()); err != nil {
		return nil, err
	}
	evt, err := outbox.NewEvent(outbox.AggregateAppointment, appt.ID.String(), outbox.EventAppointmentStatusChanged, statusChangedPayload{
		AppointmentID: appt.ID,
		AttorneyID:    appt.AttorneyID,
		ClientID:      appt.ClientID,
		ScheduledAt:   appt.ScheduledAt,
		From:          appt.Status,
		To:            next,
	})
	if err != nil {
		return nil, err
	}
	return s.store.UpdateStatus(ctx, appt.ID, appt.Status, next, &evt)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.store.GetByID(ctx, id)
}

// ListByAttorney returns appointments scheduled on dates [from, to].
func (s *Service) ListByAttorney(ctx context.Context, attorneyID uuid.UUID, from, to schedule.Date) ([]Appointment, error) {
	start, end, err := s.listWindow(from, to)
	if err != nil {
		return nil, err
	}
	appts, err := s.store.ListByAttorney(ctx, attorneyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list appointments by attorney: %w", err)
	}
	return appts, nil
}

// ListByClient returns appointments scheduled on dates [from, to].
func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, from, to schedule.Date) ([]Appointment, error) {
	start, end, err := s.listWindow(from, to)
	if err != nil {
		return nil, err
	}
	appts, err := s.store.ListByClient(ctx, clientID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list appointments by client: %w", err)
	}
	return appts, nil
}

func (s *Service) listWindow(from, to schedule.Date) (time.Time, time.Time, error) {
	switch {
	case from.IsZero():
		return time.Time{}, time.Time{}, apperr.Validation("from", "", "from is required")
	case to.IsZero():
		return time.Time{}, time.Time{}, apperr.Validation("to", "", "to is required")
	case to.Before(from):
		return time.Time{}, time.Time{}, apperr.Validation("to", to.String(), "to must not be before from (%s)", from)
	case from.DaysUntil(to)+1 > MaxListDays:
		return time.Time{}, time.Time{}, apperr.Validation("to", to.String(), "range may span at most %d days", MaxListDays)
	}
	return from.Start(s.loc), to.AddDays(1).Start(s.loc), nil
}

// CompleteElapsed marks confirmed appointments whose time passed more than
// grace ago as completed. Per-item failures are logged and skipped.
func (s *Service) CompleteElapsed(ctx context.Context, grace time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-grace)
	due, err := s.store.ListDue(ctx, StatusConfirmed, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("find elapsed appointments: %w", err)
	}

	completed := 0
	for _, appt := range due {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		if _, err := s.Transition(ctx, appt.ID, StatusCompleted); err != nil {
			s.logger.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to complete appointment")
			continue
		}
		completed++
	}
	return completed, nil
}

type bookedPayload struct {
	AppointmentID uuid.UUID         `json:"appointmentId"`
	AttorneyID    uuid.UUID         `json:"attorneyId"`
	ClientID      uuid.UUID         `json:"clientId"`
	ScheduledAt   time.Time         `json:"scheduledAt"`
	Status        AppointmentStatus `json:"status"`
}

type statusChangedPayload struct {
	AppointmentID uuid.UUID         `json:"appointmentId"`
	AttorneyID    uuid.UUID         `json:"attorneyId"`
	ClientID      uuid.UUID         `json:"clientId"`
	ScheduledAt   time.Time         `json:"scheduledAt"`
	From          AppointmentStatus `json:"from"`
	To            AppointmentStatus `json:"to"`
}

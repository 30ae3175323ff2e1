package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
	"github.com/hackgods/attorney-scheduling/internal/outbox"
)

const (
	uniqueViolation      = "23505"
	activeSlotConstraint = "appointments_active_slot_uniq"
	appointmentColumns   = "id, attorney_id, client_id, scheduled_at, status, notes, created_at, updated_at"
)

// pgxDB is the subset of *pgxpool.Pool the repository uses.
type pgxDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PgRepository writes appointment changes and their outbox events in one
// transaction.
type PgRepository struct {
	pool   pgxDB
	events *outbox.PgRepository
}

func NewPgRepository(pool *pgxpool.Pool, events *outbox.PgRepository) *PgRepository {
	return &PgRepository{pool: pool, events: events}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.AttorneyID,
		&a.ClientID,
		&a.ScheduledAt,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// isActiveSlotViolation reports whether err is the partial unique index
// rejecting a second non-cancelled appointment for the same slot.
func isActiveSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeSlotConstraint
}

// Store methods

func (r *PgRepository) FindConflicting(ctx context.Context, attorneyID uuid.UUID, scheduledAt time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE attorney_id = $1
		  AND scheduled_at = $2
		  AND status <> 'cancelled'
	`, attorneyID, scheduledAt)

	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

func (r *PgRepository) Insert(ctx context.Context, appt *Appointment, evt *outbox.Event) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, attorney_id, client_id, scheduled_at, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+appointmentColumns,
		appt.ID, appt.AttorneyID, appt.ClientID, appt.ScheduledAt, appt.Status, appt.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		if isActiveSlotViolation(err) {
			return nil, apperr.Conflict("scheduledAt", appt.ScheduledAt.Format(time.RFC3339), "slot already booked").Wrap(err)
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := r.recordEvent(ctx, tx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit appointment insert: %w", err)
	}
	return created, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, expected, next AppointmentStatus, evt *outbox.Event) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns, id, expected, next)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, classifyUpdateMiss(ctx, tx, id, err)
	}

	if err := r.recordEvent(ctx, tx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit appointment status: %w", err)
	}
	return updated, nil
}

// classifyUpdateMiss turns a failed conditional UPDATE into a typed error.
func classifyUpdateMiss(ctx context.Context, tx pgx.Tx, id uuid.UUID, err error) error {
	if isActiveSlotViolation(err) {
		return apperr.Conflict("id", id.String(), "slot already booked").Wrap(err)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("update appointment status: %w", err)
	}

	// Zero rows: either the id is unknown or the status moved underneath us.
	var current AppointmentStatus
	err = tx.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("id", id.String(), "appointment not found")
	}
	if err != nil {
		return fmt.Errorf("load appointment status: %w", err)
	}
	return apperr.StaleState("status", string(current), "appointment status changed")
}

func (r *PgRepository) recordEvent(ctx context.Context, tx pgx.Tx, evt *outbox.Event) error {
	if evt == nil || r.events == nil {
		return nil
	}
	return r.events.Insert(ctx, tx, *evt)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)

	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("id", id.String(), "appointment not found")
	}
	return a, err
}

func (r *PgRepository) ListByAttorney(ctx context.Context, attorneyID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE attorney_id = $1
		  AND scheduled_at >= $2
		  AND scheduled_at < $3
		ORDER BY scheduled_at, created_at
	`, attorneyID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments by attorney: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListByClient(ctx context.Context, clientID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE client_id = $1
		  AND scheduled_at >= $2
		  AND scheduled_at < $3
		ORDER BY scheduled_at, created_at
	`, clientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list appointments by client: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListDue(ctx context.Context, status AppointmentStatus, before time.Time, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = $1
		  AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3
	`, status, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list due appointments: %w", err)
	}
	return collectAppointments(rows)
}

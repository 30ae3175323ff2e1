package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Load(ctx context.Context, attorneyID uuid.UUID) (*WeeklySchedule, error) {
	s := NewWeeklySchedule(attorneyID)

	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute
		FROM weekday_slots
		WHERE attorney_id = $1
		ORDER BY weekday, start_minute
	`, attorneyID)
	if err != nil {
		return nil, fmt.Errorf("query weekday slots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var day, minute int16
		if err := rows.Scan(&day, &minute); err != nil {
			return nil, err
		}
		wd := Weekday(day)
		if !wd.Valid() {
			return nil, fmt.Errorf("stored weekday %d out of range", day)
		}
		s.slots[wd] = append(s.slots[wd], TimeOfDay(minute))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	excRows, err := r.pool.Query(ctx, `
		SELECT exception_date, removed_minutes, added_minutes, reason
		FROM schedule_exceptions
		WHERE attorney_id = $1
	`, attorneyID)
	if err != nil {
		return nil, fmt.Errorf("query schedule exceptions: %w", err)
	}
	defer excRows.Close()

	for excRows.Next() {
		var (
			date           time.Time
			removed, added []int16
			reason         string
		)
		if err := excRows.Scan(&date, &removed, &added, &reason); err != nil {
			return nil, err
		}
		exc, err := NewDateException(DateOf(date, time.UTC), fromMinutes(removed), fromMinutes(added), reason)
		if err != nil {
			return nil, fmt.Errorf("stored exception %s: %w", date.Format(dateLayout), err)
		}
		s.putException(exc)
	}
	if err := excRows.Err(); err != nil {
		return nil, err
	}

	return s, nil
}

// ReplaceWeekday swaps the full set for one weekday inside a single transaction.
func (r *PgRepository) ReplaceWeekday(ctx context.Context, attorneyID uuid.UUID, day Weekday, times []TimeOfDay) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM weekday_slots
		WHERE attorney_id = $1 AND weekday = $2
	`, attorneyID, int16(day)); err != nil {
		return fmt.Errorf("clear weekday slots: %w", err)
	}

	if len(times) > 0 {
		batch := &pgx.Batch{}
		for _, t := range times {
			batch.Queue(`
				INSERT INTO weekday_slots (attorney_id, weekday, start_minute)
				VALUES ($1, $2, $3)
			`, attorneyID, int16(day), int16(t))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert weekday slots: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) UpsertException(ctx context.Context, attorneyID uuid.UUID, exc DateException) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO schedule_exceptions (attorney_id, exception_date, removed_minutes, added_minutes, reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (attorney_id, exception_date) DO UPDATE
		SET removed_minutes = EXCLUDED.removed_minutes,
		    added_minutes = EXCLUDED.added_minutes,
		    reason = EXCLUDED.reason,
		    updated_at = now()
	`, attorneyID, exc.Date.Start(time.UTC), toMinutes(exc.RemovedTimes), toMinutes(exc.AddedTimes), exc.Reason)
	if err != nil {
		return fmt.Errorf("upsert schedule exception: %w", err)
	}
	return nil
}

func (r *PgRepository) DeleteException(ctx context.Context, attorneyID uuid.UUID, date Date) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM schedule_exceptions
		WHERE attorney_id = $1 AND exception_date = $2
	`, attorneyID, date.Start(time.UTC))
	if err != nil {
		return fmt.Errorf("delete schedule exception: %w", err)
	}
	return nil
}

func toMinutes(times []TimeOfDay) []int16 {
	out := make([]int16, len(times))
	for i, t := range times {
		out[i] = int16(t)
	}
	return out
}

func fromMinutes(m []int16) []TimeOfDay {
	out := make([]TimeOfDay, len(m))
	for i, v := range m {
		out[i] = TimeOfDay(v)
	}
	return out
}

// Package availability projects a schedule and its existing bookings onto
// a date range of bookable start times.
package availability

import (
	"time"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
	"github.com/hackgods/attorney-scheduling/internal/appointment"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

const DefaultMaxRangeDays = 62

// Report maps every date in the requested range to its open start times.
// Dates with nothing bookable carry an empty, non-nil slice so the JSON
// form lists every date.
type Report map[schedule.Date][]schedule.TimeOfDay

// Resolver is stateless and safe for concurrent use.
type Resolver struct {
	Location     *time.Location
	MaxRangeDays int
}

func NewResolver(loc *time.Location, maxRangeDays int) Resolver {
	if loc == nil {
		loc = time.UTC
	}
	if maxRangeDays <= 0 {
		maxRangeDays = DefaultMaxRangeDays
	}
	return Resolver{Location: loc, MaxRangeDays: maxRangeDays}
}

// ValidateRange checks an inclusive [from, to] date range.
func (r Resolver) ValidateRange(from, to schedule.Date) error {
	if from.IsZero() {
		return apperr.Validation("from", "", "from is required")
	}
	if to.IsZero() {
		return apperr.Validation("to", "", "to is required")
	}
	if to.Before(from) {
		return apperr.Validation("to", to.String(), "to must not be before from (%s)", from)
	}
	if days := from.DaysUntil(to) + 1; r.MaxRangeDays > 0 && days > r.MaxRangeDays {
		return apperr.Validation("to", to.String(), "range spans %d days, at most %d allowed", days, r.MaxRangeDays)
	}
	return nil
}

// Resolve computes, for each date in [from, to], the schedule's slots minus
// those held by non-cancelled bookings. Dates before today are empty, and so
// are times today that are not after now.
func (r Resolver) Resolve(sched *schedule.WeeklySchedule, booked []appointment.Appointment, from, to schedule.Date, now time.Time) (Report, error) {
	if err := r.ValidateRange(from, to); err != nil {
		return nil, err
	}
	loc := r.location()
	today := schedule.DateOf(now, loc)

	occupied := make(map[int64]struct{}, len(booked))
	for _, a := range booked {
		if a.Occupies() && a.AttorneyID == sched.AttorneyID {
			occupied[a.ScheduledAt.UnixNano()] = struct{}{}
		}
	}

	report := make(Report, from.DaysUntil(to)+1)
	for d := from; !d.After(to); d = d.AddDays(1) {
		open := make([]schedule.TimeOfDay, 0)
		if !d.Before(today) {
			for _, t := range sched.SlotsForDate(d) {
				at := d.At(t, loc)
				if _, taken := occupied[at.UnixNano()]; taken {
					continue
				}
				if d == today && !at.After(now) {
					continue
				}
				open = append(open, t)
			}
		}
		report[d] = open
	}
	return report, nil
}

func (r Resolver) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

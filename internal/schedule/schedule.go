package schedule

import (
	"slices"

	"github.com/google/uuid"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
)

// DateException overrides the weekday-derived slots for one calendar date.
type DateException struct {
	Date         Date
	RemovedTimes []TimeOfDay
	AddedTimes   []TimeOfDay
	Reason       string
}

// WeeklySchedule is one attorney's recurring availability plus date overrides.
// It is not safe for concurrent mutation; Service hands out clones.
type WeeklySchedule struct {
	AttorneyID uuid.UUID

	slots      [7][]TimeOfDay
	exceptions map[Date]DateException
}

func NewWeeklySchedule(attorneyID uuid.UUID) *WeeklySchedule {
	return &WeeklySchedule{
		AttorneyID: attorneyID,
		exceptions: make(map[Date]DateException),
	}
}

// SetWeekdaySlots replaces the recurring start times for day and returns the
// normalized list that was stored.
func (s *WeeklySchedule) SetWeekdaySlots(day Weekday, times []TimeOfDay) ([]TimeOfDay, error) {
	if !day.Valid() {
		return nil, apperr.Validation("weekday", day.String(), "unknown weekday")
	}
	norm, err := Normalize(times)
	if err != nil {
		return nil, err
	}
	s.slots[day] = norm
	return slices.Clone(norm), nil
}

// WeekdaySlots returns the sorted recurring times for day.
func (s *WeeklySchedule) WeekdaySlots(day Weekday) []TimeOfDay {
	if !day.Valid() {
		return nil
	}
	return slices.Clone(s.slots[day])
}

// AddException upserts the override for date. Exceptions are prospective:
// dates before today are rejected, as is any time listed as both removed and added.
func (s *WeeklySchedule) AddException(date Date, removed, added []TimeOfDay, reason string, today Date) (DateException, error) {
	exc, err := NewDateException(date, removed, added, reason)
	if err != nil {
		return DateException{}, err
	}
	if date.Before(today) {
		return DateException{}, apperr.Validation("date", date.String(), "exceptions cannot be created for past dates")
	}
	s.putException(exc)
	return exc, nil
}

// NewDateException validates and normalizes an override.
func NewDateException(date Date, removed, added []TimeOfDay, reason string) (DateException, error) {
	if date.IsZero() {
		return DateException{}, apperr.Validation("date", "", "date is required")
	}
	rem, err := Normalize(removed)
	if err != nil {
		return DateException{}, err
	}
	add, err := Normalize(added)
	if err != nil {
		return DateException{}, err
	}
	for _, t := range add {
		if _, found := slices.BinarySearch(rem, t); found {
			return DateException{}, apperr.Validation("addedTimes", t.String(), "time cannot be both removed and added on the same date")
		}
	}
	return DateException{Date: date, RemovedTimes: rem, AddedTimes: add, Reason: reason}, nil
}

// putException stores an already validated override. Repositories use it when
// rehydrating, where the prospective rule no longer applies.
func (s *WeeklySchedule) putException(exc DateException) {
	if s.exceptions == nil {
		s.exceptions = make(map[Date]DateException)
	}
	s.exceptions[exc.Date] = exc
}

// RemoveException drops the override for date. Missing overrides are ignored.
func (s *WeeklySchedule) RemoveException(date Date) {
	delete(s.exceptions, date)
}

func (s *WeeklySchedule) Exception(date Date) (DateException, bool) {
	exc, ok := s.exceptions[date]
	if !ok {
		return DateException{}, false
	}
	return exc.clone(), true
}

// Exceptions returns all overrides ordered by date.
func (s *WeeklySchedule) Exceptions() []DateException {
	out := make([]DateException, 0, len(s.exceptions))
	for _, exc := range s.exceptions {
		out = append(out, exc.clone())
	}
	slices.SortFunc(out, func(a, b DateException) int { return a.Date.Compare(b.Date) })
	return out
}

// SlotsForDate returns (weekday set - removed) + added for date, sorted and deduplicated.
func (s *WeeklySchedule) SlotsForDate(date Date) []TimeOfDay {
	base := s.slots[date.Weekday()]
	exc, ok := s.exceptions[date]
	if !ok {
		return slices.Clone(base)
	}

	out := make([]TimeOfDay, 0, len(base)+len(exc.AddedTimes))
	for _, t := range base {
		if _, removed := slices.BinarySearch(exc.RemovedTimes, t); !removed {
			out = append(out, t)
		}
	}
	out = append(out, exc.AddedTimes...)
	slices.Sort(out)
	return slices.Compact(out)
}

// Offers reports whether t is a bookable start time on date.
func (s *WeeklySchedule) Offers(date Date, t TimeOfDay) bool {
	_, found := slices.BinarySearch(s.SlotsForDate(date), t)
	return found
}

func (s *WeeklySchedule) Clone() *WeeklySchedule {
	cp := NewWeeklySchedule(s.AttorneyID)
	for i := range s.slots {
		cp.slots[i] = slices.Clone(s.slots[i])
	}
	for d, exc := range s.exceptions {
		cp.exceptions[d] = exc.clone()
	}
	return cp
}

func (e DateException) clone() DateException {
	e.RemovedTimes = slices.Clone(e.RemovedTimes)
	e.AddedTimes = slices.Clone(e.AddedTimes)
	return e
}

package schedule

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
)

// TimeOfDay is a wall-clock start time stored as minutes since midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

func NewTimeOfDay(hour, minute int) (TimeOfDay, error) {
	if hour < 0 || hour > 23 {
		return 0, apperr.Validation("time", fmt.Sprintf("%d:%d", hour, minute), "hour must be between 0 and 23")
	}
	if minute < 0 || minute > 59 {
		return 0, apperr.Validation("time", fmt.Sprintf("%d:%d", hour, minute), "minute must be between 0 and 59")
	}
	return TimeOfDay(hour*60 + minute), nil
}

// MustTime is for literals in tests and seed data.
func MustTime(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseTimeOfDay accepts 24-hour "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, apperr.Validation("time", s, "time must be formatted as HH:MM")
	}
	h, okH := twoDigits(hh)
	m, okM := twoDigits(mm)
	if !okH || !okM {
		return 0, apperr.Validation("time", s, "time must be formatted as HH:MM")
	}
	t, err := NewTimeOfDay(h, m)
	if err != nil {
		return 0, apperr.Validation("time", s, "time is outside the 24-hour clock")
	}
	return t, nil
}

// twoDigits parses exactly two ASCII digits. Signs are not digits.
func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

func ParseTimes(values []string) ([]TimeOfDay, error) {
	out := make([]TimeOfDay, 0, len(values))
	for _, v := range values {
		t, err := ParseTimeOfDay(v)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (t TimeOfDay) Valid() bool { return t >= 0 && t < minutesPerDay }

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("time of day out of range: %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Normalize validates, deduplicates and sorts ascending. The input is not modified.
func Normalize(times []TimeOfDay) ([]TimeOfDay, error) {
	out := make([]TimeOfDay, 0, len(times))
	for _, t := range times {
		if !t.Valid() {
			return nil, apperr.Validation("time", strconv.Itoa(int(t)), "time is outside the 24-hour clock")
		}
		out = append(out, t)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func FormatTimes(times []TimeOfDay) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.String()
	}
	return out
}

package schedule

import (
	"strings"
	"time"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
)

// Weekday is the canonical Monday-first day enumeration. Its ordinal is what
// gets persisted, so the order below must never change.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Weekdays lists every weekday in canonical order.
var Weekdays = [7]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayNames = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

func (d Weekday) String() string {
	if !d.Valid() {
		return "invalid"
	}
	return weekdayNames[d]
}

func ParseWeekday(s string) (Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, name := range weekdayNames {
		if name == key {
			return Weekday(i), nil
		}
	}
	return 0, apperr.Validation("weekday", s, "weekday must be one of mon, tue, wed, thu, fri, sat, sun")
}

// WeekdayOf converts the standard library's Sunday-first weekday.
func WeekdayOf(d time.Weekday) Weekday {
	return Weekday((int(d) + 6) % 7)
}

func (d Weekday) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	w, err := ParseWeekday(string(b))
	if err != nil {
		return err
	}
	*d = w
	return nil
}

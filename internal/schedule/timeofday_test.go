package schedule

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "00:00", want: "00:00"},
		{in: "09:05", want: "09:05"},
		{in: "23:59", want: "23:59"},
		{in: " 14:30 ", want: "14:30"},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "9:00", wantErr: true},
		{in: "09:00:00", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "+1:00", wantErr: true},
		{in: "+9:+5", wantErr: true},
		{in: "09:-1", wantErr: true},
		{in: "１2:00", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.in)
		if tt.wantErr {
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("%q: expected validation error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.in, tt.want, got)
		}
	}
}

func TestTimeOfDay_JSONMapAndSlice(t *testing.T) {
	body, err := json.Marshal(map[string][]TimeOfDay{"2026-10-21": {MustTime("09:00"), MustTime("14:30")}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `{"2026-10-21":["09:00","14:30"]}` {
		t.Fatalf("unexpected encoding %s", body)
	}

	var in struct {
		Times []TimeOfDay `json:"times"`
	}
	if err := json.Unmarshal([]byte(`{"times":["08:15"]}`), &in); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if in.Times[0] != MustTime("08:15") {
		t.Fatalf("unexpected value %s", in.Times[0])
	}
	if err := json.Unmarshal([]byte(`{"times":["25:00"]}`), &in); err == nil {
		t.Fatal("expected error for invalid time")
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(times("10:00", "08:00", "10:00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertTimes(t, got, "08:00", "10:00")

	if _, err := Normalize([]TimeOfDay{-1}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWeekday(t *testing.T) {
	if d, err := ParseWeekday("WED"); err != nil || d != Wednesday {
		t.Fatalf("expected wed, got %v %v", d, err)
	}
	if _, err := ParseWeekday("mer"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if WeekdayOf(time.Sunday) != Sunday || WeekdayOf(time.Monday) != Monday {
		t.Fatal("standard library weekday conversion is off by one")
	}
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2026-10-21")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Weekday() != Wednesday {
		t.Fatalf("expected wednesday, got %s", d.Weekday())
	}
	if d.AddDays(11).String() != "2026-11-01" {
		t.Fatalf("unexpected month rollover %s", d.AddDays(11))
	}
	if d.DaysUntil(d.AddDays(-3)) != -3 {
		t.Fatal("unexpected day difference")
	}
	if _, err := ParseDate("2026-02-30"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	loc := time.FixedZone("UTC-5", -5*3600)
	late := time.Date(2026, time.October, 22, 2, 0, 0, 0, time.UTC)
	if DateOf(late, loc) != d {
		t.Fatalf("expected local date %s, got %s", d, DateOf(late, loc))
	}
	if got := d.At(MustTime("10:00"), loc); !got.Equal(time.Date(2026, time.October, 21, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected instant %s", got)
	}
}

package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/attorney-scheduling/internal/appointment"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

type BookAppointmentRequest struct {
	AttorneyID  string `json:"attorneyId"`
	ClientID    string `json:"clientId"`
	ScheduledAt string `json:"scheduledAt"`
	Notes       string `json:"notes"`
}

type UpdateStatusRequest struct {
	NewStatus string `json:"newStatus"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	AttorneyID  uuid.UUID `json:"attorneyId"`
	ClientID    uuid.UUID `json:"clientId"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toAppointmentResponse(a *appointment.Appointment, loc *time.Location) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		AttorneyID:  a.AttorneyID,
		ClientID:    a.ClientID,
		ScheduledAt: a.ScheduledAt.In(loc),
		Status:      string(a.Status),
		Notes:       a.Notes,
		CreatedAt:   a.CreatedAt.In(loc),
		UpdatedAt:   a.UpdatedAt.In(loc),
	}
}

type WeekdaySlotsRequest struct {
	Times []string `json:"times"`
}

type WeekdaySlotsResponse struct {
	AttorneyID uuid.UUID            `json:"attorneyId"`
	Weekday    schedule.Weekday     `json:"weekday"`
	Times      []schedule.TimeOfDay `json:"times"`
}

type ExceptionRequest struct {
	RemovedTimes []string `json:"removedTimes"`
	AddedTimes   []string `json:"addedTimes"`
	Reason       string   `json:"reason"`
}

type ExceptionResponse struct {
	Date         schedule.Date        `json:"date"`
	RemovedTimes []schedule.TimeOfDay `json:"removedTimes"`
	AddedTimes   []schedule.TimeOfDay `json:"addedTimes"`
	Reason       string               `json:"reason"`
}

func toExceptionResponse(e schedule.DateException) ExceptionResponse {
	return ExceptionResponse{
		Date:         e.Date,
		RemovedTimes: nonNil(e.RemovedTimes),
		AddedTimes:   nonNil(e.AddedTimes),
		Reason:       e.Reason,
	}
}

type ScheduleResponse struct {
	AttorneyID uuid.UUID                                 `json:"attorneyId"`
	Weekdays   map[schedule.Weekday][]schedule.TimeOfDay `json:"weekdays"`
	Exceptions []ExceptionResponse                       `json:"exceptions"`
}

func toScheduleResponse(s *schedule.WeeklySchedule) ScheduleResponse {
	resp := ScheduleResponse{
		AttorneyID: s.AttorneyID,
		Weekdays:   make(map[schedule.Weekday][]schedule.TimeOfDay, len(schedule.Weekdays)),
		Exceptions: []ExceptionResponse{},
	}
	for _, d := range schedule.Weekdays {
		resp.Weekdays[d] = nonNil(s.WeekdaySlots(d))
	}
	for _, e := range s.Exceptions() {
		resp.Exceptions = append(resp.Exceptions, toExceptionResponse(e))
	}
	return resp
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
}

func nonNil(times []schedule.TimeOfDay) []schedule.TimeOfDay {
	if times == nil {
		return []schedule.TimeOfDay{}
	}
	return times
}

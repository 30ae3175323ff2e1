package appointment

import (
	"slices"
	"time"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
)

var allowedTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

// CheckTransition validates moving appt to next at instant now. Completion is
// only allowed once the appointment time has been reached.
func CheckTransition(appt *Appointment, next AppointmentStatus, now time.Time) error {
	if !slices.Contains(allowedTransitions[appt.Status], next) {
		return apperr.InvalidTransition(string(appt.Status), string(next))
	}
	if next == StatusCompleted && appt.ScheduledAt.After(now) {
		err := apperr.InvalidTransition(string(appt.Status), string(next))
		err.Msg = "cannot complete an appointment scheduled in the future"
		return err
	}
	return nil
}

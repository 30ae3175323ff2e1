package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
	"github.com/hackgods/attorney-scheduling/internal/appointment"
	"github.com/hackgods/attorney-scheduling/internal/availability"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

func availabilityHandler(svc *availability.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		attorneyID, err := parseUUID("attorneyId", q.Get("attorneyId"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		from, err := parseOptionalDate("from", q.Get("from"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		to, err := parseOptionalDate("to", q.Get("to"))
		if err != nil {
			handleError(w, r, err)
			return
		}

		report, err := svc.ForAttorney(r.Context(), attorneyID, from, to)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, report)
	}
}

func bookAppointmentHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}

		attorneyID, err := parseUUID("attorneyId", req.AttorneyID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		clientID, err := parseUUID("clientId", req.ClientID)
		if err != nil {
			handleError(w, r, err)
			return
		}
		if req.ScheduledAt == "" {
			handleError(w, r, apperr.Validation("scheduledAt", "", "scheduledAt is required"))
			return
		}
		scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			handleError(w, r, apperr.Validation("scheduledAt", req.ScheduledAt, "scheduledAt must be an ISO-8601 instant with offset"))
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			AttorneyID:  attorneyID,
			ClientID:    clientID,
			ScheduledAt: scheduledAt,
			Notes:       req.Notes,
		})
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, loc))
	}
}

func listAppointmentsHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		rawAttorney, rawClient := q.Get("attorneyId"), q.Get("clientId")
		if (rawAttorney == "") == (rawClient == "") {
			handleError(w, r, apperr.Validation("attorneyId", rawAttorney, "exactly one of attorneyId or clientId is required"))
			return
		}

		from, err := parseOptionalDate("from", q.Get("from"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		to, err := parseOptionalDate("to", q.Get("to"))
		if err != nil {
			handleError(w, r, err)
			return
		}

		var appts []appointment.Appointment
		if rawAttorney != "" {
			id, perr := parseUUID("attorneyId", rawAttorney)
			if perr != nil {
				handleError(w, r, perr)
				return
			}
			appts, err = svc.ListByAttorney(r.Context(), id, from, to)
		} else {
			id, perr := parseUUID("clientId", rawClient)
			if perr != nil {
				handleError(w, r, perr)
				return
			}
			appts, err = svc.ListByClient(r.Context(), id, from, to)
		}
		if err != nil {
			handleError(w, r, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i], loc))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, loc))
	}
}

func updateStatusHandler(svc *appointment.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseUUID("id", chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err)
			return
		}

		var req UpdateStatusRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		next, err := appointment.ParseStatus(req.NewStatus)
		if err != nil {
			handleError(w, r, err)
			return
		}

		appt, err := svc.Transition(r.Context(), id, next)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, loc))
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("body", "", "could not parse JSON body").Wrap(err)
	}
	return nil
}

func parseUUID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, apperr.Validation(field, "", "%s is required", field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation(field, raw, "%s must be a valid UUID", field)
	}
	return id, nil
}

// parseOptionalDate leaves a missing value as the zero Date so the service
// reports it as required.
func parseOptionalDate(field, raw string) (schedule.Date, error) {
	if raw == "" {
		return schedule.Date{}, nil
	}
	d, err := schedule.ParseDate(raw)
	if err != nil {
		return schedule.Date{}, apperr.Validation(field, raw, "%s must be formatted as YYYY-MM-DD", field)
	}
	return d, nil
}

// parseTimes relabels a bad entry with the request field it came from.
func parseTimes(field string, values []string) ([]schedule.TimeOfDay, error) {
	times, err := schedule.ParseTimes(values)
	if err != nil {
		if d, ok := apperr.Detail(err); ok {
			return nil, apperr.Validation(field, d.Value, "%s", d.Msg)
		}
		return nil, err
	}
	return times, nil
}

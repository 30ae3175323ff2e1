package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

func getScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attorneyID, err := parseUUID("attorneyId", chi.URLParam(r, "attorneyId"))
		if err != nil {
			handleError(w, r, err)
			return
		}

		sched, err := svc.Get(r.Context(), attorneyID)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toScheduleResponse(sched))
	}
}

func putWeekdaySlotsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attorneyID, err := parseUUID("attorneyId", chi.URLParam(r, "attorneyId"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		day, err := schedule.ParseWeekday(chi.URLParam(r, "day"))
		if err != nil {
			handleError(w, r, err)
			return
		}

		var req WeekdaySlotsRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		if req.Times == nil {
			handleError(w, r, apperr.Validation("times", "", "times is required (use [] to clear the day)"))
			return
		}
		times, err := parseTimes("times", req.Times)
		if err != nil {
			handleError(w, r, err)
			return
		}

		norm, err := svc.SetWeekdaySlots(r.Context(), attorneyID, day, times)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, WeekdaySlotsResponse{
			AttorneyID: attorneyID,
			Weekday:    day,
			Times:      nonNil(norm),
		})
	}
}

func putExceptionHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attorneyID, err := parseUUID("attorneyId", chi.URLParam(r, "attorneyId"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		date, err := schedule.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			handleError(w, r, err)
			return
		}

		var req ExceptionRequest
		if err := decodeJSON(r, &req); err != nil {
			handleError(w, r, err)
			return
		}
		removed, err := parseTimes("removedTimes", req.RemovedTimes)
		if err != nil {
			handleError(w, r, err)
			return
		}
		added, err := parseTimes("addedTimes", req.AddedTimes)
		if err != nil {
			handleError(w, r, err)
			return
		}

		exc, err := svc.PutException(r.Context(), attorneyID, date, removed, added, req.Reason)
		if err != nil {
			handleError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toExceptionResponse(exc))
	}
}

func deleteExceptionHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		attorneyID, err := parseUUID("attorneyId", chi.URLParam(r, "attorneyId"))
		if err != nil {
			handleError(w, r, err)
			return
		}
		date, err := schedule.ParseDate(chi.URLParam(r, "date"))
		if err != nil {
			handleError(w, r, err)
			return
		}

		if err := svc.DeleteException(r.Context(), attorneyID, date); err != nil {
			handleError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

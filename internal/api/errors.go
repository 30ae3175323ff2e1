package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/attorney-scheduling/internal/apperr"
)

var statusByKind = map[apperr.Kind]int{
	apperr.KindValidation:        http.StatusBadRequest,
	apperr.KindSlotUnavailable:   http.StatusConflict,
	apperr.KindConflict:          http.StatusConflict,
	apperr.KindInvalidTransition: http.StatusConflict,
	apperr.KindStaleState:        http.StatusConflict,
	apperr.KindNotFound:          http.StatusNotFound,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	writeJSON(w, status, resp)
}

// handleError maps domain errors onto HTTP. Anything outside the taxonomy is
// logged and reported as a bare internal_error.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	if d, ok := apperr.Detail(err); ok {
		if status, known := statusByKind[d.Kind]; known {
			kind := d.Kind
			if kind == apperr.KindStaleState {
				kind = apperr.KindConflict
			}
			msg := d.Msg
			if msg == "" {
				msg = string(kind)
			}
			writeError(w, status, ErrorResponse{
				Error:   string(kind),
				Message: msg,
				Field:   d.Field,
				Value:   d.Value,
			})
			return
		}
	}

	zerolog.Ctx(r.Context()).Error().Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "internal server error",
	})
}

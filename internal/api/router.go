package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hackgods/attorney-scheduling/internal/appointment"
	"github.com/hackgods/attorney-scheduling/internal/availability"
	"github.com/hackgods/attorney-scheduling/internal/schedule"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Availability *availability.Service
	Schedules    *schedule.Service
	Checks       []ReadyCheck
	Logger       zerolog.Logger
	Location     *time.Location
	Env          string
	Version      string
}

func NewRouter(cfg RouterConfig) http.Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/availability", availabilityHandler(cfg.Availability))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", bookAppointmentHandler(cfg.Appointments, loc))
		r.Get("/", listAppointmentsHandler(cfg.Appointments, loc))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments, loc))
		r.Put("/{id}/status", updateStatusHandler(cfg.Appointments, loc))
	})

	r.Route("/schedule/{attorneyId}", func(r chi.Router) {
		r.Get("/", getScheduleHandler(cfg.Schedules))
		r.Put("/weekday/{day}", putWeekdaySlotsHandler(cfg.Schedules))
		r.Put("/exception/{date}", putExceptionHandler(cfg.Schedules))
		r.Delete("/exception/{date}", deleteExceptionHandler(cfg.Schedules))
	})

	return r
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Deps carries everything the HTTP router wires together.
type Deps struct {
	Slots        SlotService
	Appointments AppointmentService
	Visits       VisitService
	Health       *HealthHandler
	Logger       zerolog.Logger

	// JWTSecret enables bearer auth on mutating routes when non-empty.
	JWTSecret string

	DefaultPageSize int
	MaxPageSize     int
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(d.Logger))

	r.Get("/healthz", d.Health.Live)
	r.Get("/readyz", d.Health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	guard := func(h http.HandlerFunc) http.HandlerFunc {
		if d.JWTSecret == "" {
			return h
		}
		return RequireIdentity(d.JWTSecret)(h).ServeHTTP
	}

	r.Route("/slots", func(r chi.Router) {
		r.Get("/", listSlotsHandler(d.Slots, d.DefaultPageSize, d.MaxPageSize))
		r.Post("/", guard(createSlotHandler(d.Slots)))
		r.Delete("/{id}", guard(deleteSlotHandler(d.Slots)))
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Get("/", listAppointmentsHandler(d.Appointments))
		r.Post("/", bookAppointmentHandler(d.Appointments))
		r.Get("/{id}", getAppointmentHandler(d.Appointments))
		r.Patch("/{id}/status", guard(updateStatusHandler(d.Appointments)))
	})

	r.Route("/reports", func(r chi.Router) {
		r.Post("/", guard(createRecordHandler(d.Visits)))
		r.Put("/", guard(updateRecordHandler(d.Visits)))
		r.Get("/{appointmentID}", getRecordHandler(d.Visits))
	})

	return r
}

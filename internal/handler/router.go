package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/event-waitlist/internal/auth"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/export"
	"github.com/Shivanand-hulikatti/event-waitlist/internal/service"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Events        *service.EventService
	Registrations *service.RegistrationService
	Analytics     *service.AnalyticsService
	Exporter      *export.Exporter
	Policy        auth.Policy
	JWTSecret     string
	CORSOrigins   []string
	Log           *slog.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	errs := errorMapper{log: log}
	events := NewEventHandler(d.Events, errs)
	regs := NewRegistrationHandler(d.Registrations, d.Policy, errs)
	reports := NewReportHandler(d.Analytics, d.Events, d.Exporter, errs)
	require := d.Policy.Require

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(log))
	r.Use(CORS(d.CORSOrigins))

	r.Get("/health", HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", events.ListEvents)
		r.Get("/{eventId}", events.GetEvent)
		r.With(auth.Authenticate(d.JWTSecret)).Post("/{eventId}/register", regs.Register)
	})

	r.Route("/registrations", func(r chi.Router) {
		r.Use(auth.Authenticate(d.JWTSecret))
		r.Post("/{id}/cancel", regs.Cancel)
		r.Get("/my/{eventId}", regs.MyRegistration)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(auth.Authenticate(d.JWTSecret))

		r.With(require(auth.ManageEvents)).Post("/events", events.CreateEvent)
		r.With(require(auth.ManageRegistrations)).Get("/events/{eventId}/registrations", events.ListRegistrations)
		r.With(require(auth.ViewAnalytics)).Get("/events/{eventId}/analytics", reports.Analytics)
		r.With(require(auth.ExportRegistrations)).Get("/events/{eventId}/export", reports.Export)

		r.Route("/registrations", func(r chi.Router) {
			r.Use(require(auth.ManageRegistrations))
			r.Post("/bulk-attendance", regs.BulkAttendance)
			r.Post("/{id}/promote", regs.Promote)
			r.Post("/{id}/demote", regs.Demote)
			r.Post("/{id}/mark-attended", regs.MarkAttended)
		})
	})

	return r
}

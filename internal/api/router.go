package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge/hospital-scheduling/internal/notify"
	"github.com/carebridge/hospital-scheduling/internal/scheduling"
	"github.com/carebridge/hospital-scheduling/internal/triage"
)

type RouterConfig struct {
	Service   *scheduling.Service
	Suggester *triage.Suggester
	Notifier  *notify.Service
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)

	// Health and metrics endpoints, outside actor authentication
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(ActorMiddleware)

		// Appointment lifecycle
		r.Post("/appointments", requestAppointmentHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/assign", assignAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/cancel", cancelAppointmentHandler(cfg.Service))
		r.Post("/appointments/{id}/complete", completeAppointmentHandler(cfg.Service))
		r.Get("/appointments/{id}/suggestions", suggestDoctorsHandler(cfg.Service, cfg.Suggester))

		// Doctors, slots and availability
		r.Get("/doctors", listDoctorsHandler(cfg.Service))
		r.Get("/doctors/{id}/slots", openSlotsHandler(cfg.Service))
		r.Get("/doctors/{id}/availability", getAvailabilityHandler(cfg.Service))
		r.Put("/doctors/{id}/availability", putAvailabilityHandler(cfg.Service))
		r.Get("/doctors/{id}/appointments", listDoctorAppointmentsHandler(cfg.Service))

		// Patient views
		r.Get("/patients/{id}/appointments", listPatientAppointmentsHandler(cfg.Service))

		// Rooms
		r.Post("/rooms", createRoomHandler(cfg.Service))
		r.Get("/rooms", listRoomsHandler(cfg.Service))

		// Notifications
		r.Get("/users/{id}/notifications", listNotificationsHandler(cfg.Notifier))
		r.Post("/notifications/{id}/read", markNotificationReadHandler(cfg.Notifier))
	})

	return r
}

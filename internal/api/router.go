package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/catalog"
)

// BookingService is the scheduling engine as seen by the HTTP layer.
type BookingService interface {
	CreateAppointment(ctx context.Context, req appointment.CreateRequest) (*appointment.Appointment, error)
	AvailableStartTimes(ctx context.Context, doctorID, treatmentID uuid.UUID, date time.Time) ([]string, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, f appointment.Filter) ([]appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, target appointment.AppointmentStatus) (*appointment.Appointment, error)
	CancelByPatient(ctx context.Context, id, patientID uuid.UUID) (*appointment.Appointment, error)
	AuthenticatePatient(ctx context.Context, phone, name string) (*appointment.Patient, error)
	Stats(ctx context.Context, from, to time.Time) (*appointment.Stats, error)
	Policy() appointment.Policy
}

// CatalogService manages doctors, treatments, and capacity slots.
type CatalogService interface {
	CreateDoctor(ctx context.Context, d catalog.Doctor) (*catalog.Doctor, error)
	UpdateDoctor(ctx context.Context, id uuid.UUID, p catalog.DoctorPatch) (*catalog.Doctor, error)
	GetDoctor(ctx context.Context, id uuid.UUID) (*catalog.Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
	ListDoctors(ctx context.Context) ([]catalog.Doctor, error)
	CreateTreatment(ctx context.Context, t catalog.Treatment) (*catalog.Treatment, error)
	UpdateTreatment(ctx context.Context, id uuid.UUID, p catalog.TreatmentPatch) (*catalog.Treatment, error)
	GetTreatment(ctx context.Context, id uuid.UUID) (*catalog.Treatment, error)
	DeleteTreatment(ctx context.Context, id uuid.UUID) error
	ListTreatments(ctx context.Context) ([]catalog.Treatment, error)
	CreateCapacitySlot(ctx context.Context, slot catalog.CapacitySlot) (*catalog.CapacitySlot, error)
	UpdateCapacitySlot(ctx context.Context, id uuid.UUID, p catalog.CapacitySlotPatch) (*catalog.CapacitySlot, error)
	DeleteCapacitySlot(ctx context.Context, id uuid.UUID) error
	ListCapacitySlots(ctx context.Context) ([]catalog.CapacitySlot, error)
}

type SessionStore interface {
	Issue(ctx context.Context, patientID uuid.UUID) (string, error)
	Verify(ctx context.Context, token string) (uuid.UUID, error)
	Revoke(ctx context.Context, token string) error
}

type AdminAuthenticator interface {
	Login(username, password string) (string, time.Time, error)
	Verify(token string) (jwt.RegisteredClaims, error)
}

type RouterConfig struct {
	Bookings BookingService
	Catalog  CatalogService
	Sessions SessionStore
	Admins   AdminAuthenticator

	PgPool  Pinger
	Redis   *redis.Client
	Metrics prometheus.Gatherer // nil serves the default registry
	Env     string
	Version string
}

func newBaseRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	gatherer := cfg.Metrics
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}

// NewPatientRouter serves booking, availability, and the patient's own appointments.
func NewPatientRouter(cfg RouterConfig) http.Handler {
	r := newBaseRouter(cfg)

	// Catalog endpoints
	r.Get("/doctors", listDoctorsHandler(cfg.Catalog))
	r.Get("/treatments", listTreatmentsHandler(cfg.Catalog))
	r.Get("/availability", availabilityHandler(cfg.Bookings))

	// Booking endpoints
	r.Post("/appointments", createAppointmentHandler(cfg.Bookings, cfg.Sessions))
	r.Post("/auth/login", patientLoginHandler(cfg.Bookings, cfg.Sessions))

	r.Group(func(r chi.Router) {
		r.Use(PatientAuth(cfg.Sessions))
		r.Post("/auth/logout", patientLogoutHandler(cfg.Sessions))
		r.Get("/me/appointments", myAppointmentsHandler(cfg.Bookings))
		r.Post("/me/appointments/{id}/cancel", cancelMyAppointmentHandler(cfg.Bookings))
	})

	return r
}

// NewAdminRouter serves master data management and appointment administration.
func NewAdminRouter(cfg RouterConfig) http.Handler {
	r := newBaseRouter(cfg)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/auth/token", adminLoginHandler(cfg.Admins))

		r.Group(func(r chi.Router) {
			r.Use(AdminAuth(cfg.Admins))

			r.Get("/doctors", listDoctorsHandler(cfg.Catalog))
			r.Post("/doctors", createDoctorHandler(cfg.Catalog))
			r.Get("/doctors/{id}", getDoctorHandler(cfg.Catalog))
			r.Patch("/doctors/{id}", updateDoctorHandler(cfg.Catalog))
			r.Delete("/doctors/{id}", deleteDoctorHandler(cfg.Catalog))

			r.Get("/treatments", listTreatmentsHandler(cfg.Catalog))
			r.Post("/treatments", createTreatmentHandler(cfg.Catalog))
			r.Get("/treatments/{id}", getTreatmentHandler(cfg.Catalog))
			r.Patch("/treatments/{id}", updateTreatmentHandler(cfg.Catalog))
			r.Delete("/treatments/{id}", deleteTreatmentHandler(cfg.Catalog))

			r.Get("/capacity-slots", listCapacitySlotsHandler(cfg.Catalog))
			r.Post("/capacity-slots", createCapacitySlotHandler(cfg.Catalog))
			r.Patch("/capacity-slots/{id}", updateCapacitySlotHandler(cfg.Catalog))
			r.Delete("/capacity-slots/{id}", deleteCapacitySlotHandler(cfg.Catalog))

			r.Get("/appointments", listAppointmentsHandler(cfg.Bookings))
			r.Get("/appointments/{id}", getAppointmentHandler(cfg.Bookings))
			r.Patch("/appointments/{id}/status", updateStatusHandler(cfg.Bookings))

			r.Get("/availability", availabilityHandler(cfg.Bookings))
			r.Get("/stats", statsHandler(cfg.Bookings))
		})
	})

	return r
}

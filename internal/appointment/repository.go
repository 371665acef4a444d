package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/catalog"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrDoctorNotFound      = catalog.ErrDoctorNotFound
	ErrTreatmentNotFound   = catalog.ErrTreatmentNotFound
)

// Repository contains all appointment and patient DB interactions needed by the service.
type Repository interface {
	// InTx runs fn against a repository bound to one transaction.
	InTx(ctx context.Context, fn func(tx Repository) error) error
	// LockKeys takes transaction-scoped locks; only valid inside InTx.
	LockKeys(ctx context.Context, keys []string) error

	// For conflict and capacity checks
	ListActiveAppointments(ctx context.Context, from, to time.Time) ([]Appointment, error)
	CountActivePatientAppointments(ctx context.Context, patientID uuid.UUID) (int, error)

	GetPatientByPhone(ctx context.Context, phone string) (*Patient, error)
	FindOrCreatePatient(ctx context.Context, name, phone string) (*Patient, error)

	// Creation and updates
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	ListAppointments(ctx context.Context, f Filter) ([]Appointment, error)
	// ListAppointmentsBetween returns every appointment starting in [from, to). Zero bounds are open.
	ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Catalog is the master data the scheduling engine reads.
type Catalog interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*catalog.Doctor, error)
	GetTreatmentByID(ctx context.Context, id uuid.UUID) (*catalog.Treatment, error)
	ListCapacitySlots(ctx context.Context) ([]catalog.CapacitySlot, error)
}

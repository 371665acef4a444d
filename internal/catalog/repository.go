package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound    = errors.New("doctor not found")
	ErrTreatmentNotFound = errors.New("treatment not found")
	ErrSlotNotFound      = errors.New("capacity slot not found")
	ErrDuplicateSlot     = errors.New("capacity slot with the same start and end already exists")
	ErrDoctorInUse       = errors.New("doctor has appointments and cannot be deleted")
	ErrTreatmentInUse    = errors.New("treatment has appointments and cannot be deleted")
	ErrInvalidDoctor     = errors.New("invalid doctor")
	ErrInvalidTreatment  = errors.New("invalid treatment")
	ErrInvalidSlot       = errors.New("invalid capacity slot")
)

// Repository contains all DB interactions for clinic master data.
type Repository interface {
	CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	UpdateDoctor(ctx context.Context, id uuid.UUID, p DoctorPatch) (*Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error

	CreateTreatment(ctx context.Context, t Treatment) (*Treatment, error)
	GetTreatmentByID(ctx context.Context, id uuid.UUID) (*Treatment, error)
	ListTreatments(ctx context.Context) ([]Treatment, error)
	UpdateTreatment(ctx context.Context, id uuid.UUID, p TreatmentPatch) (*Treatment, error)
	DeleteTreatment(ctx context.Context, id uuid.UUID) error

	CreateCapacitySlot(ctx context.Context, s CapacitySlot) (*CapacitySlot, error)
	GetCapacitySlotByID(ctx context.Context, id uuid.UUID) (*CapacitySlot, error)
	UpdateCapacitySlot(ctx context.Context, id uuid.UUID, p CapacitySlotPatch) (*CapacitySlot, error)
	DeleteCapacitySlot(ctx context.Context, id uuid.UUID) error
	ListCapacitySlots(ctx context.Context) ([]CapacitySlot, error)
}

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Service validates and stores clinic master data.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	d.Name = strings.TrimSpace(d.Name)
	d.Department = strings.TrimSpace(d.Department)
	if err := validateDoctor(d); err != nil {
		return nil, err
	}
	created, err := s.repo.CreateDoctor(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	return created, nil
}

// UpdateDoctor validates the patch against the stored doctor before writing the changed fields.
func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, p DoctorPatch) (*Doctor, error) {
	current, err := s.repo.GetDoctorByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return current, nil
	}
	if err := p.Apply(current); err != nil {
		return nil, err
	}
	if p.Name != nil {
		p.Name = &current.Name
	}
	if p.Department != nil {
		p.Department = &current.Department
	}
	return s.repo.UpdateDoctor(ctx, id, p)
}

// DeleteDoctor refuses doctors that appointments still reference.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteDoctor(ctx, id)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctorByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	doctors, err := s.repo.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) CreateTreatment(ctx context.Context, t Treatment) (*Treatment, error) {
	t.Name = strings.TrimSpace(t.Name)
	if err := validateTreatment(t); err != nil {
		return nil, err
	}
	created, err := s.repo.CreateTreatment(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create treatment: %w", err)
	}
	return created, nil
}

// UpdateTreatment only writes the fields present in the patch.
func (s *Service) UpdateTreatment(ctx context.Context, id uuid.UUID, p TreatmentPatch) (*Treatment, error) {
	current, err := s.repo.GetTreatmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return current, nil
	}
	if err := p.Apply(current); err != nil {
		return nil, err
	}
	if p.Name != nil {
		p.Name = &current.Name
	}
	return s.repo.UpdateTreatment(ctx, id, p)
}

func (s *Service) DeleteTreatment(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteTreatment(ctx, id)
}

func (s *Service) GetTreatment(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return s.repo.GetTreatmentByID(ctx, id)
}

func (s *Service) ListTreatments(ctx context.Context) ([]Treatment, error) {
	treatments, err := s.repo.ListTreatments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list treatments: %w", err)
	}
	return treatments, nil
}

func (s *Service) CreateCapacitySlot(ctx context.Context, slot CapacitySlot) (*CapacitySlot, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}
	return s.repo.CreateCapacitySlot(ctx, slot)
}

// UpdateCapacitySlot changes a slot in place. Bounds are revalidated together, and moving
// onto another slot's start and end is ErrDuplicateSlot.
func (s *Service) UpdateCapacitySlot(ctx context.Context, id uuid.UUID, p CapacitySlotPatch) (*CapacitySlot, error) {
	current, err := s.repo.GetCapacitySlotByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return current, nil
	}
	if err := p.Apply(current); err != nil {
		return nil, err
	}
	return s.repo.UpdateCapacitySlot(ctx, id, p)
}

func (s *Service) DeleteCapacitySlot(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCapacitySlot(ctx, id)
}

func (s *Service) ListCapacitySlots(ctx context.Context) ([]CapacitySlot, error) {
	slots, err := s.repo.ListCapacitySlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("list capacity slots: %w", err)
	}
	return slots, nil
}

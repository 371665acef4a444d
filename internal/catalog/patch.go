package catalog

import (
	"fmt"
	"strings"
)

// SlotGranularity is the alignment of treatment durations and capacity slot bounds.
const SlotGranularity = 30

// DoctorPatch carries the doctor fields an update changes. Nil means unchanged.
type DoctorPatch struct {
	Name       *string `json:"name,omitempty"`
	Department *string `json:"department,omitempty"`
}

func (p DoctorPatch) Empty() bool {
	return p.Name == nil && p.Department == nil
}

// Apply merges the patch into d.
func (p DoctorPatch) Apply(d *Doctor) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidDoctor)
		}
		d.Name = name
	}
	if p.Department != nil {
		d.Department = strings.TrimSpace(*p.Department)
	}
	return nil
}

// TreatmentPatch carries the treatment fields an update changes. Nil means unchanged.
type TreatmentPatch struct {
	Name            *string `json:"name,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Price           *int64  `json:"price,omitempty"`
	Description     *string `json:"description,omitempty"`
}

func (p TreatmentPatch) Empty() bool {
	return p.Name == nil && p.DurationMinutes == nil && p.Price == nil && p.Description == nil
}

// Apply merges the patch into t, validating only the fields being changed.
func (p TreatmentPatch) Apply(t *Treatment) error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidTreatment)
		}
		t.Name = name
	}
	if p.DurationMinutes != nil {
		if err := validateDuration(*p.DurationMinutes); err != nil {
			return err
		}
		t.DurationMinutes = *p.DurationMinutes
	}
	if p.Price != nil {
		if *p.Price < 0 {
			return fmt.Errorf("%w: price must not be negative", ErrInvalidTreatment)
		}
		t.Price = *p.Price
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	return nil
}

// CapacitySlotPatch carries the slot fields an update changes. Nil means unchanged.
type CapacitySlotPatch struct {
	Start       *TimeOfDay `json:"start_time,omitempty"`
	End         *TimeOfDay `json:"end_time,omitempty"`
	MaxCapacity *int       `json:"max_capacity,omitempty"`
}

func (p CapacitySlotPatch) Empty() bool {
	return p.Start == nil && p.End == nil && p.MaxCapacity == nil
}

// Apply merges the patch into s and validates the resulting slot as a whole.
func (p CapacitySlotPatch) Apply(s *CapacitySlot) error {
	next := *s
	if p.Start != nil {
		next.Start = *p.Start
	}
	if p.End != nil {
		next.End = *p.End
	}
	if p.MaxCapacity != nil {
		next.MaxCapacity = *p.MaxCapacity
	}
	if err := validateSlot(next); err != nil {
		return err
	}
	*s = next
	return nil
}

func validateDuration(minutes int) error {
	if minutes <= 0 || minutes%SlotGranularity != 0 {
		return fmt.Errorf("%w: duration must be a positive multiple of %d minutes", ErrInvalidTreatment, SlotGranularity)
	}
	return nil
}

func validateDoctor(d Doctor) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDoctor)
	}
	return nil
}

func validateTreatment(t Treatment) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTreatment)
	}
	if err := validateDuration(t.DurationMinutes); err != nil {
		return err
	}
	if t.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidTreatment)
	}
	return nil
}

func validateSlot(s CapacitySlot) error {
	switch {
	case !s.Start.Valid() || !s.End.Valid():
		return fmt.Errorf("%w: times must fall within a day", ErrInvalidSlot)
	case s.Start >= s.End:
		return fmt.Errorf("%w: start must be before end", ErrInvalidSlot)
	case int(s.Start)%SlotGranularity != 0 || int(s.End)%SlotGranularity != 0:
		return fmt.Errorf("%w: times must be aligned to %d minutes", ErrInvalidSlot, SlotGranularity)
	case s.MaxCapacity < 0:
		return fmt.Errorf("%w: max capacity must not be negative", ErrInvalidSlot)
	}
	return nil
}

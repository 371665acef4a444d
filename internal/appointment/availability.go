package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const timeLayout = "15:04"

// AvailableStartTimes lists the HH:MM start times on date at which CreateAppointment would
// accept the doctor and treatment. Unknown doctors or treatments yield an empty list.
func (s *Service) AvailableStartTimes(ctx context.Context, doctorID, treatmentID uuid.UUID, date time.Time) ([]string, error) {
	began := time.Now()
	defer func() {
		s.metrics.ObserveAvailability(time.Since(began).Seconds())
	}()

	times := []string{}

	if _, err := s.catalog.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return times, nil
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	treatment, err := s.catalog.GetTreatmentByID(ctx, treatmentID)
	if err != nil {
		if errors.Is(err, ErrTreatmentNotFound) {
			return times, nil
		}
		return nil, fmt.Errorf("load treatment: %w", err)
	}
	if !validDuration(treatment) {
		return times, nil
	}

	slots, err := s.catalog.ListCapacitySlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load capacity slots: %w", err)
	}

	dayStart, dayEnd := s.policy.dayBounds(date)
	existing, err := s.repo.ListActiveAppointments(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}

	loc := s.policy.loc()
	day := s.policy.Day(date)
	duration := treatment.Duration()

	for start := day.Open; !start.Add(duration).After(day.Close); start = start.Add(GridStep) {
		end := start.Add(duration)
		if !s.policy.InOperatingHours(start, end) {
			continue
		}
		if doctorConflict(existing, doctorID, start, end) {
			continue
		}
		if !capacityAvailable(slots, existing, start, end, loc) {
			continue
		}
		times = append(times, start.In(loc).Format(timeLayout))
	}

	return times, nil
}

package appointment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/catalog"
)

const (
	ViolationDoctorOverlap = "doctor_overlap"
	ViolationCapacity      = "capacity"
)

// Violation is a booking invariant broken by stored appointments.
type Violation struct {
	Kind   string
	Detail string
}

// AuditDay checks the active appointments on date for double-booked doctors and
// over-full capacity slots.
func (s *Service) AuditDay(ctx context.Context, date time.Time) ([]Violation, error) {
	slots, err := s.catalog.ListCapacitySlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load capacity slots: %w", err)
	}
	from, to := s.policy.dayBounds(date)
	appts, err := s.repo.ListActiveAppointments(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	return audit(date, slots, appts, s.policy.loc()), nil
}

func audit(date time.Time, slots []catalog.CapacitySlot, appts []Appointment, loc *time.Location) []Violation {
	var out []Violation

	byDoctor := make(map[uuid.UUID][]Appointment)
	for _, a := range appts {
		if a.Status.Active() {
			byDoctor[a.DoctorID] = append(byDoctor[a.DoctorID], a)
		}
	}
	for doctorID, list := range byDoctor {
		sort.Slice(list, func(i, j int) bool { return list[i].StartAt.Before(list[j].StartAt) })
		// Compare each appointment with the earlier one that runs latest.
		for i, latest := 1, list[0]; i < len(list); i++ {
			cur := list[i]
			if IntervalsOverlap(latest.StartAt, latest.EndAt, cur.StartAt, cur.EndAt) {
				out = append(out, Violation{
					Kind:   ViolationDoctorOverlap,
					Detail: fmt.Sprintf("doctor %s: %s overlaps %s", doctorID, latest.ID, cur.ID),
				})
			}
			if cur.EndAt.After(latest.EndAt) {
				latest = cur
			}
		}
	}

	for _, slot := range slots {
		ws, we := slot.Window(date, loc)
		used := 0
		for _, a := range appts {
			if a.Status.Active() && IntervalsOverlap(a.StartAt, a.EndAt, ws, we) {
				used++
			}
		}
		if used > slot.MaxCapacity {
			out = append(out, Violation{
				Kind:   ViolationCapacity,
				Detail: fmt.Sprintf("slot %s-%s holds %d of %d", slot.Start, slot.End, used, slot.MaxCapacity),
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Detail < out[j].Detail
	})
	return out
}

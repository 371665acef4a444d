package appointment

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/catalog"
)

// IntervalsOverlap treats both intervals as half-open, so back-to-back intervals do not overlap.
func IntervalsOverlap(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

func doctorConflict(appts []Appointment, doctorID uuid.UUID, start, end time.Time) bool {
	for _, a := range appts {
		if a.DoctorID != doctorID || !a.Status.Active() {
			continue
		}
		if IntervalsOverlap(start, end, a.StartAt, a.EndAt) {
			return true
		}
	}
	return false
}

// overlappingSlots returns the capacity slots whose window on start's date overlaps [start, end).
func overlappingSlots(slots []catalog.CapacitySlot, start, end time.Time, loc *time.Location) []catalog.CapacitySlot {
	var out []catalog.CapacitySlot
	for _, s := range slots {
		ws, we := s.Window(start, loc)
		if IntervalsOverlap(start, end, ws, we) {
			out = append(out, s)
		}
	}
	return out
}

// capacityAvailable requires headroom in every slot the interval touches.
// A candidate on the 15 minute grid may straddle two 30 minute slots.
// With no slots configured capacity is unconstrained.
func capacityAvailable(slots []catalog.CapacitySlot, appts []Appointment, start, end time.Time, loc *time.Location) bool {
	for _, s := range overlappingSlots(slots, start, end, loc) {
		ws, we := s.Window(start, loc)
		used := 0
		for _, a := range appts {
			if a.Status.Active() && IntervalsOverlap(a.StartAt, a.EndAt, ws, we) {
				used++
			}
		}
		if used >= s.MaxCapacity {
			return false
		}
	}
	return true
}

// bookingLockKeys names the resources a booking of [start, end) must hold: the doctor's day
// and each capacity slot it overlaps on that date. Sorted, so every caller locks in the same order.
func bookingLockKeys(policy Policy, doctorID uuid.UUID, start, end time.Time, slots []catalog.CapacitySlot) []string {
	date := policy.DateKey(start)
	keys := []string{"doctor:" + doctorID.String() + ":" + date}
	for _, s := range overlappingSlots(slots, start, end, policy.loc()) {
		keys = append(keys, "capacity:"+date+":"+s.Start.String()+"-"+s.End.String())
	}
	sort.Strings(keys)
	return keys
}

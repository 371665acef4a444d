package appointment

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hackgods/clinic-booking/internal/catalog"
)

type StatusCount struct {
	Status AppointmentStatus `json:"status"`
	Count  int               `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type TimeSlotCount struct {
	TimeSlot string `json:"time_slot"`
	Count    int    `json:"count"`
}

type VisitRatio struct {
	First    int `json:"first"`
	Followup int `json:"followup"`
}

// Stats summarises the appointments starting in a date range.
type Stats struct {
	StatusCounts   []StatusCount   `json:"status_counts"`
	DailyCounts    []DailyCount    `json:"daily_counts"`
	TimeSlotCounts []TimeSlotCount `json:"time_slot_counts"`
	VisitRatio     VisitRatio      `json:"visit_type_ratio"`
}

var statusOrder = []AppointmentStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCanceled}

// Stats reports appointments starting on the calendar dates from through to, inclusive.
// A zero bound leaves that side open. Time slot counts skip canceled appointments;
// the other counts include them.
func (s *Service) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	var start, end time.Time
	if !from.IsZero() {
		start, _ = s.policy.dayBounds(from)
	}
	if !to.IsZero() {
		_, end = s.policy.dayBounds(to)
	}

	appts, err := s.repo.ListAppointmentsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	slots, err := s.catalog.ListCapacitySlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load capacity slots: %w", err)
	}

	return summarize(appts, slots, s.policy), nil
}

func summarize(appts []Appointment, slots []catalog.CapacitySlot, policy Policy) *Stats {
	st := &Stats{
		StatusCounts:   []StatusCount{},
		DailyCounts:    []DailyCount{},
		TimeSlotCounts: []TimeSlotCount{},
	}

	byStatus := make(map[AppointmentStatus]int)
	byDate := make(map[string]int)
	for _, a := range appts {
		byStatus[a.Status]++
		byDate[policy.DateKey(a.StartAt)]++
		switch a.Visit {
		case VisitFirst:
			st.VisitRatio.First++
		case VisitFollowup:
			st.VisitRatio.Followup++
		}
	}

	for _, status := range statusOrder {
		if n := byStatus[status]; n > 0 {
			st.StatusCounts = append(st.StatusCounts, StatusCount{Status: status, Count: n})
		}
	}

	for date, n := range byDate {
		st.DailyCounts = append(st.DailyCounts, DailyCount{Date: date, Count: n})
	}
	sort.Slice(st.DailyCounts, func(i, j int) bool { return st.DailyCounts[i].Date < st.DailyCounts[j].Date })

	sorted := append([]catalog.CapacitySlot(nil), slots...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	loc := policy.loc()
	for _, slot := range sorted {
		used := 0
		for _, a := range appts {
			if !a.Status.Active() {
				continue
			}
			ws, we := slot.Window(a.StartAt, loc)
			if IntervalsOverlap(a.StartAt, a.EndAt, ws, we) {
				used++
			}
		}
		st.TimeSlotCounts = append(st.TimeSlotCounts, TimeSlotCount{
			TimeSlot: slot.Start.String() + "-" + slot.End.String(),
			Count:    used,
		})
	}

	return st
}

package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TimeOfDay is a wall-clock time expressed as minutes after midnight.
type TimeOfDay int

const minutesPerDay = 24 * 60

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// MustParseTimeOfDay is ParseTimeOfDay for constants and tests.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid reports whether t is inside a single day.
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t < minutesPerDay
}

// On materialises t on the calendar date of day, in loc.
func (t TimeOfDay) On(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), int(t)/60, int(t)%60, 0, 0, loc)
}

// TimeOfDayOf returns the wall-clock part of ts in loc, truncated to the minute.
func TimeOfDayOf(ts time.Time, loc *time.Location) TimeOfDay {
	l := ts.In(loc)
	return TimeOfDay(l.Hour()*60 + l.Minute())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	v, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type Doctor struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Treatment struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
	Price           int64     `json:"price"`
	Description     string    `json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Duration is the appointment length a treatment books.
func (t Treatment) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// CapacitySlot caps concurrent appointments inside [Start, End) on every date.
type CapacitySlot struct {
	ID          uuid.UUID `json:"id"`
	Start       TimeOfDay `json:"start_time"`
	End         TimeOfDay `json:"end_time"`
	MaxCapacity int       `json:"max_capacity"`
	CreatedAt   time.Time `json:"created_at"`
}

// Window materialises the slot on the calendar date of day.
func (s CapacitySlot) Window(day time.Time, loc *time.Location) (time.Time, time.Time) {
	return s.Start.On(day, loc), s.End.On(day, loc)
}

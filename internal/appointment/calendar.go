package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/hackgods/clinic-booking/internal/catalog"
)

// GridStep is the spacing of offered and accepted start times.
const GridStep = 15 * time.Minute

const dateLayout = "2006-01-02"

var ErrInvalidPolicy = errors.New("invalid operating policy")

// Policy is the clinic's daily operating hours, identical for every date.
type Policy struct {
	Open       catalog.TimeOfDay
	Close      catalog.TimeOfDay
	LunchStart catalog.TimeOfDay
	LunchEnd   catalog.TimeOfDay
	Location   *time.Location
}

// DayHours is a Policy materialised on one calendar date.
type DayHours struct {
	Open       time.Time
	Close      time.Time
	LunchStart time.Time
	LunchEnd   time.Time
}

// DefaultPolicy opens 09:00-18:00 with lunch 12:00-13:00, in UTC.
func DefaultPolicy() Policy {
	return Policy{
		Open:       catalog.MustParseTimeOfDay("09:00"),
		Close:      catalog.MustParseTimeOfDay("18:00"),
		LunchStart: catalog.MustParseTimeOfDay("12:00"),
		LunchEnd:   catalog.MustParseTimeOfDay("13:00"),
		Location:   time.UTC,
	}
}

// ParsePolicy builds a Policy from "HH:MM" strings and an IANA zone name.
// Empty lunch bounds mean no lunch break.
func ParsePolicy(open, close, lunchStart, lunchEnd, tz string) (Policy, error) {
	var p Policy
	var err error

	if p.Open, err = catalog.ParseTimeOfDay(open); err != nil {
		return Policy{}, fmt.Errorf("%w: open: %v", ErrInvalidPolicy, err)
	}
	if p.Close, err = catalog.ParseTimeOfDay(close); err != nil {
		return Policy{}, fmt.Errorf("%w: close: %v", ErrInvalidPolicy, err)
	}
	if lunchStart != "" || lunchEnd != "" {
		if p.LunchStart, err = catalog.ParseTimeOfDay(lunchStart); err != nil {
			return Policy{}, fmt.Errorf("%w: lunch start: %v", ErrInvalidPolicy, err)
		}
		if p.LunchEnd, err = catalog.ParseTimeOfDay(lunchEnd); err != nil {
			return Policy{}, fmt.Errorf("%w: lunch end: %v", ErrInvalidPolicy, err)
		}
	} else {
		p.LunchStart, p.LunchEnd = p.Open, p.Open
	}

	p.Location = time.UTC
	if tz != "" {
		if p.Location, err = time.LoadLocation(tz); err != nil {
			return Policy{}, fmt.Errorf("%w: timezone: %v", ErrInvalidPolicy, err)
		}
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	step := int(GridStep / time.Minute)
	for _, t := range []catalog.TimeOfDay{p.Open, p.Close, p.LunchStart, p.LunchEnd} {
		if !t.Valid() || int(t)%step != 0 {
			return fmt.Errorf("%w: %s is not on the %d minute grid", ErrInvalidPolicy, t, step)
		}
	}
	switch {
	case p.Open >= p.Close:
		return fmt.Errorf("%w: open must be before close", ErrInvalidPolicy)
	case p.LunchStart > p.LunchEnd:
		return fmt.Errorf("%w: lunch start must not be after lunch end", ErrInvalidPolicy)
	case p.LunchStart < p.Open || p.LunchEnd > p.Close:
		return fmt.Errorf("%w: lunch must fall within opening hours", ErrInvalidPolicy)
	}
	return nil
}

func (p Policy) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Day materialises the policy on the calendar date of date.
func (p Policy) Day(date time.Time) DayHours {
	loc := p.loc()
	return DayHours{
		Open:       p.Open.On(date, loc),
		Close:      p.Close.On(date, loc),
		LunchStart: p.LunchStart.On(date, loc),
		LunchEnd:   p.LunchEnd.On(date, loc),
	}
}

// dayBounds returns midnight to midnight around t's calendar date.
func (p Policy) dayBounds(t time.Time) (time.Time, time.Time) {
	start := catalog.TimeOfDay(0).On(t, p.loc())
	return start, start.AddDate(0, 0, 1)
}

// InOperatingHours reports whether [start, end) lies inside the day's opening hours
// without touching the lunch break.
func (p Policy) InOperatingHours(start, end time.Time) bool {
	if !end.After(start) {
		return false
	}
	day := p.Day(start)
	if start.Before(day.Open) || end.After(day.Close) {
		return false
	}
	if !day.LunchEnd.After(day.LunchStart) {
		return true
	}
	return !IntervalsOverlap(start, end, day.LunchStart, day.LunchEnd)
}

// OnGrid reports whether t starts on a quarter hour with no seconds.
func (p Policy) OnGrid(t time.Time) bool {
	l := t.In(p.loc())
	return l.Minute()%int(GridStep/time.Minute) == 0 && l.Second() == 0 && l.Nanosecond() == 0
}

// ParseDate reads a YYYY-MM-DD calendar date in the policy's location.
func (p Policy) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, p.loc())
}

// DateKey formats the calendar date of t in the policy's location.
func (p Policy) DateKey(t time.Time) string {
	return t.In(p.loc()).Format(dateLayout)
}

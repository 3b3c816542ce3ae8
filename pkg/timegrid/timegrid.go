// Package timegrid converts between "HH:MM" clock strings and minute offsets
// and enumerates the 30-minute booking grid of a clinic day.
package timegrid

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	// SlotMinutes is the fixed cadence of the booking grid.
	SlotMinutes = 30
	// DefaultDuration applies when a booking carries no duration.
	DefaultDuration = 30
	// MinutesPerDay bounds any minute offset.
	MinutesPerDay = 24 * 60
)

// ErrInvalidFormat is returned for clock strings that are not "HH:MM".
var ErrInvalidFormat = errors.New("invalid time format, expected HH:MM")

var clockPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// IsClock reports whether s looks like "HH:MM".
func IsClock(s string) bool {
	return clockPattern.MatchString(s)
}

// TimeToMinutes parses "HH:MM" into minutes since midnight.
func TimeToMinutes(s string) (int, error) {
	if !IsClock(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return h*60 + m, nil
}

// ValidClock reports whether s is "HH:MM" naming a real wall-clock time.
func ValidClock(s string) bool {
	if !IsClock(s) {
		return false
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	return h < 24 && m < 60
}

// MustMinutes is TimeToMinutes for literals known to be well formed.
func MustMinutes(s string) int {
	m, err := TimeToMinutes(s)
	if err != nil {
		panic(err)
	}
	return m
}

// MinutesToTime formats minutes since midnight as zero-padded "HH:MM".
func MinutesToTime(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// GenerateSlots lists the grid ticks from startHour (inclusive) to endHour
// (exclusive) at a fixed 30-minute cadence. A start that is off the grid is
// floored to the preceding tick.
func GenerateSlots(startHour, endHour string) ([]string, error) {
	start, err := TimeToMinutes(startHour)
	if err != nil {
		return nil, err
	}
	end, err := TimeToMinutes(endHour)
	if err != nil {
		return nil, err
	}
	return Window{Start: floorTick(start), End: end}.Slots(), nil
}

func floorTick(m int) int {
	return m / SlotMinutes * SlotMinutes
}

// TickCount is the number of grid ticks a duration touches, rounding partial
// ticks up. Non-positive durations fall back to DefaultDuration.
func TickCount(duration int) int {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return (duration + SlotMinutes - 1) / SlotMinutes
}

// ValidDuration reports whether d is a positive multiple of SlotMinutes.
func ValidDuration(d int) bool {
	return d > 0 && d%SlotMinutes == 0
}

// OnGrid reports whether a minute offset falls on a grid tick.
func OnGrid(m int) bool {
	return m >= 0 && m < MinutesPerDay && m%SlotMinutes == 0
}

// Window is the bookable span of a clinic day in minutes, half-open.
type Window struct {
	Start int
	End   int
}

// NewWindow builds the operating window from settings hours.
func NewWindow(startHour, endHour string) (Window, error) {
	start, err := TimeToMinutes(startHour)
	if err != nil {
		return Window{}, err
	}
	end, err := TimeToMinutes(endHour)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: floorTick(start), End: end}
	if w.End <= w.Start {
		return Window{}, fmt.Errorf("end hour %s must be after start hour %s", endHour, startHour)
	}
	return w, nil
}

// Contains reports whether [start, start+duration) lies inside the window.
func (w Window) Contains(start, duration int) bool {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return start >= w.Start && start+duration <= w.End
}

// Slots lists the window's ticks that can hold one full slot.
func (w Window) Slots() []string {
	if w.End-w.Start < SlotMinutes {
		return []string{}
	}
	slots := make([]string, 0, (w.End-w.Start)/SlotMinutes)
	for m := w.Start; m+SlotMinutes <= w.End; m += SlotMinutes {
		slots = append(slots, MinutesToTime(m))
	}
	return slots
}

// Day normalizes t to midnight in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SameDay compares calendar days in a's location.
func SameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// ParseDay parses "YYYY-MM-DD" as local midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// WeekStart returns the Sunday that starts the week containing day.
func WeekStart(day time.Time) time.Time {
	d := Day(day, day.Location())
	return d.AddDate(0, 0, -int(d.Weekday()))
}

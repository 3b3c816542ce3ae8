package schedule

import (
	"errors"

	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

var (
	ErrSlotOccupied = errors.New("slot is already booked for this doctor")
	ErrOutsideHours = errors.New("appointment falls outside clinic hours")
	ErrOffGrid      = errors.New("appointment time is not on the 30-minute grid")
)

// IsSlotValid reports whether [start, start+duration) touches no occupied
// tick. It does not know about clinic hours; see Check.
func IsSlotValid(start, duration int, occupied Occupancy) bool {
	if occupied.Has(start) {
		return false
	}
	if duration <= 0 {
		duration = timegrid.DefaultDuration
	}
	for m := start + timegrid.SlotMinutes; m < start+duration; m += timegrid.SlotMinutes {
		if occupied.Has(m) {
			return false
		}
	}
	return true
}

// Check applies the grid, the clinic window and occupancy in that order.
func Check(window timegrid.Window, start, duration int, occupied Occupancy) error {
	if !timegrid.OnGrid(start) {
		return ErrOffGrid
	}
	if !window.Contains(start, duration) {
		return ErrOutsideHours
	}
	if !IsSlotValid(start, duration, occupied) {
		return ErrSlotOccupied
	}
	return nil
}

const (
	ReasonOccupied     = "occupied"
	ReasonPastEndOfDay = "past_end_of_day"
)

// SlotStatus is one row of an availability picker.
type SlotStatus struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Availability labels every tick of the window for a booking of duration.
func Availability(window timegrid.Window, duration int, occupied Occupancy) []SlotStatus {
	slots := window.Slots()
	statuses := make([]SlotStatus, 0, len(slots))
	for _, t := range slots {
		start := timegrid.MustMinutes(t)
		status := SlotStatus{Time: t, Available: true}
		switch {
		case !IsSlotValid(start, duration, occupied):
			status.Available, status.Reason = false, ReasonOccupied
		case !window.Contains(start, duration):
			status.Available, status.Reason = false, ReasonPastEndOfDay
		}
		statuses = append(statuses, status)
	}
	return statuses
}

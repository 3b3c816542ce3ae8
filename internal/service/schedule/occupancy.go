// Package schedule derives per-doctor occupancy from the lead collection and
// decides whether a candidate appointment fits.
package schedule

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

// Occupancy is the set of grid ticks, in minutes since midnight, already
// consumed for one doctor on one day.
type Occupancy map[int]struct{}

func (o Occupancy) Has(minute int) bool {
	_, ok := o[minute]
	return ok
}

func (o Occupancy) Len() int { return len(o) }

// Minutes returns the ticks in ascending order.
func (o Occupancy) Minutes() []int {
	minutes := make([]int, 0, len(o))
	for m := range o {
		minutes = append(minutes, m)
	}
	sort.Ints(minutes)
	return minutes
}

// Times returns the ticks as sorted "HH:MM" strings.
func (o Occupancy) Times() []string {
	minutes := o.Minutes()
	times := make([]string, len(minutes))
	for i, m := range minutes {
		times[i] = timegrid.MinutesToTime(m)
	}
	return times
}

func (o Occupancy) clone() Occupancy {
	cp := make(Occupancy, len(o))
	for m := range o {
		cp[m] = struct{}{}
	}
	return cp
}

// OccupiedMinutes marks every tick of [start, start+duration) for each BOOKED
// lead of doctor on day. A lead whose id equals excludeID is skipped so that
// a booking never conflicts with itself; pass uuid.Nil to exclude nothing.
// Leads with a malformed appointment time are ignored.
func OccupiedMinutes(doctor string, day time.Time, leads []*model.Lead, excludeID uuid.UUID) Occupancy {
	occupied := make(Occupancy)
	for _, lead := range leads {
		if !occupies(lead, doctor, day, excludeID) {
			continue
		}
		start, err := timegrid.TimeToMinutes(lead.Time())
		if err != nil {
			continue
		}
		duration := lead.Duration
		if duration <= 0 {
			duration = timegrid.DefaultDuration
		}
		for m := start; m < start+duration; m += timegrid.SlotMinutes {
			occupied[m] = struct{}{}
		}
	}
	return occupied
}

func occupies(lead *model.Lead, doctor string, day time.Time, excludeID uuid.UUID) bool {
	if lead.Status != model.LeadStatusBooked {
		return false
	}
	if lead.Doctor() != doctor || lead.AppointmentDate == nil || lead.Time() == "" {
		return false
	}
	if excludeID != uuid.Nil && lead.ID == excludeID {
		return false
	}
	return timegrid.SameDay(day, *lead.AppointmentDate)
}

package calendar

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

type CellState string

const (
	CellBooked  CellState = "booked"
	CellCovered CellState = "covered"
	CellEmpty   CellState = "empty"
)

// Card is the slice of a lead a schedule cell renders.
type Card struct {
	LeadID      uuid.UUID         `json:"lead_id"`
	Name        string            `json:"name"`
	Phone       string            `json:"phone"`
	Treatment   string            `json:"treatment,omitempty"`
	NationalID  string            `json:"national_id,omitempty"`
	BirthYear   string            `json:"birth_year,omitempty"`
	Doctor      string            `json:"doctor"`
	Time        string            `json:"time"`
	Duration    int               `json:"duration"`
	VisitStatus model.VisitStatus `json:"visit_status"`
	IsVIP       bool              `json:"is_vip"`
}

// Prefill seeds the booking form when an empty cell is clicked.
type Prefill struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Doctor string `json:"doctor,omitempty"`
}

type DoctorColumn struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type BoardCell struct {
	Doctor  string    `json:"doctor"`
	State   CellState `json:"state"`
	Lead    *Card     `json:"lead,omitempty"`
	Span    int       `json:"span,omitempty"`
	Prefill *Prefill  `json:"prefill,omitempty"`
}

type BoardRow struct {
	Time    string      `json:"time"`
	Current bool        `json:"current"`
	Cells   []BoardCell `json:"cells"`
}

// Collection is the money taken on a day, split by the two drawers the
// front desk reconciles.
type Collection struct {
	Cash     float64 `json:"cash"`
	Transfer float64 `json:"transfer"`
	Other    float64 `json:"other"`
	Total    float64 `json:"total"`
}

type DayBoard struct {
	Date       string         `json:"date"`
	Doctors    []DoctorColumn `json:"doctors"`
	Rows       []BoardRow     `json:"rows"`
	Collection Collection     `json:"collection"`
}

// ListRow is one line of the flat day list. Ticks without bookings still get
// a single empty row so they can be clicked.
type ListRow struct {
	Time      string   `json:"time"`
	ShowTime  bool     `json:"show_time"`
	Current   bool     `json:"current"`
	Lead      *Card    `json:"lead,omitempty"`
	Paid      float64  `json:"paid,omitempty"`
	Remaining float64  `json:"remaining,omitempty"`
	Prefill   *Prefill `json:"prefill,omitempty"`
}

type DayList struct {
	Date       string     `json:"date"`
	Rows       []ListRow  `json:"rows"`
	Collection Collection `json:"collection"`
}

type WeekEntry struct {
	Card
	HeightTicks int `json:"height_ticks"`
}

type WeekCell struct {
	Date    string      `json:"date"`
	Entries []WeekEntry `json:"entries"`
	Prefill *Prefill    `json:"prefill,omitempty"`
}

type WeekRow struct {
	Time  string     `json:"time"`
	Cells []WeekCell `json:"cells"`
}

type WeekDay struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Today   bool   `json:"today"`
}

type WeekGrid struct {
	Start string    `json:"start"`
	Days  []WeekDay `json:"days"`
	Rows  []WeekRow `json:"rows"`
}

type StatKind string

const (
	StatRevenue  StatKind = "revenue"
	StatBookings StatKind = "bookings"
)

type TimelineDay struct {
	Date     string   `json:"date"`
	Weekday  string   `json:"weekday"`
	Selected bool     `json:"selected"`
	Kind     StatKind `json:"kind"`
	Revenue  float64  `json:"revenue,omitempty"`
	Bookings int      `json:"bookings,omitempty"`
	Currency string   `json:"currency,omitempty"`
}

type Queue struct {
	Date         string `json:"date"`
	Waiting      []Card `json:"waiting"`
	Next         *Card  `json:"next,omitempty"`
	MinutesUntil int    `json:"minutes_until"`
}

func newCard(lead *model.Lead) *Card {
	c := &Card{
		LeadID:      lead.ID,
		Name:        lead.Name,
		Phone:       lead.Phone,
		Treatment:   lead.TreatmentInterest,
		Doctor:      lead.Doctor(),
		Time:        lead.Time(),
		Duration:    duration(lead),
		VisitStatus: lead.Visit(),
		IsVIP:       lead.IsVIP,
	}
	if lead.NationalID != nil {
		c.NationalID = *lead.NationalID
	}
	if lead.BirthYear != nil {
		c.BirthYear = *lead.BirthYear
	}
	return c
}

func duration(lead *model.Lead) int {
	if lead.Duration <= 0 {
		return timegrid.DefaultDuration
	}
	return lead.Duration
}

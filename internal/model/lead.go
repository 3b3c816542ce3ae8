package model

import (
	"time"

	"github.com/google/uuid"
)

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "NEW"
	LeadStatusContacted LeadStatus = "CONTACTED"
	LeadStatusBooked    LeadStatus = "BOOKED"
	LeadStatusLost      LeadStatus = "LOST"
)

type LeadSource string

const (
	LeadSourceWebsite   LeadSource = "WEBSITE"
	LeadSourceGoogleAds LeadSource = "GOOGLE_ADS"
	LeadSourceManual    LeadSource = "MANUAL"
)

// VisitStatus tracks where a booked patient physically is.
type VisitStatus string

const (
	VisitStatusScheduled VisitStatus = "SCHEDULED"
	VisitStatusArrived   VisitStatus = "ARRIVED"
	VisitStatusInChair   VisitStatus = "IN_CHAIR"
	VisitStatusCompleted VisitStatus = "COMPLETED"
	VisitStatusNoShow    VisitStatus = "NO_SHOW"
	VisitStatusCancelled VisitStatus = "CANCELLED"
)

func (s VisitStatus) Valid() bool {
	switch s {
	case VisitStatusScheduled, VisitStatusArrived, VisitStatusInChair,
		VisitStatusCompleted, VisitStatusNoShow, VisitStatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodCheque   PaymentMethod = "CHEQUE"
)

type Payment struct {
	ID     uuid.UUID     `json:"id" db:"id"`
	LeadID uuid.UUID     `json:"lead_id" db:"lead_id"`
	Amount float64       `json:"amount" db:"amount"`
	Method PaymentMethod `json:"method" db:"method"`
	Date   time.Time     `json:"date" db:"paid_at"`
	Note   string        `json:"note,omitempty" db:"note"`
}

type Note struct {
	ID        uuid.UUID `json:"id" db:"id"`
	LeadID    uuid.UUID `json:"lead_id" db:"lead_id"`
	Text      string    `json:"text" db:"text"`
	Timestamp time.Time `json:"timestamp" db:"created_at"`
}

// Lead is a CRM contact; once BOOKED its appointment fields place it on the
// schedule.
type Lead struct {
	Base
	Name              string       `db:"name" json:"name"`
	Phone             string       `db:"phone" json:"phone"`
	TreatmentInterest string       `db:"treatment_interest" json:"treatment_interest"`
	Status            LeadStatus   `db:"status" json:"status"`
	Source            LeadSource   `db:"source" json:"source"`
	InitialMessage    *string      `db:"initial_message" json:"initial_message,omitempty"`
	PotentialValue    float64      `db:"potential_value" json:"potential_value"`
	PriceQuoted       float64      `db:"price_quoted" json:"price_quoted"`
	IsVIP             bool         `db:"is_vip" json:"is_vip"`
	NationalID        *string      `db:"national_id" json:"national_id,omitempty"`
	BirthYear         *string      `db:"birth_year" json:"birth_year,omitempty"`
	LastContacted     *time.Time   `db:"last_contacted" json:"last_contacted,omitempty"`
	AssignedDoctor    *string      `db:"assigned_doctor" json:"assigned_doctor,omitempty"`
	AppointmentDate   *time.Time   `db:"appointment_date" json:"appointment_date,omitempty"`
	AppointmentTime   *string      `db:"appointment_time" json:"appointment_time,omitempty"`
	Duration          int          `db:"duration" json:"duration"`
	VisitStatus       *VisitStatus `db:"visit_status" json:"visit_status,omitempty"`
	Notes             []Note       `db:"-" json:"notes"`
	Payments          []Payment    `db:"-" json:"payments"`
}

// IsScheduled reports whether the lead sits on the calendar.
func (l *Lead) IsScheduled() bool {
	return l.Status == LeadStatusBooked && l.AppointmentDate != nil &&
		l.AppointmentTime != nil && *l.AppointmentTime != "" &&
		l.AssignedDoctor != nil
}

func (l *Lead) Doctor() string {
	if l.AssignedDoctor == nil {
		return ""
	}
	return *l.AssignedDoctor
}

func (l *Lead) Time() string {
	if l.AppointmentTime == nil {
		return ""
	}
	return *l.AppointmentTime
}

func (l *Lead) Visit() VisitStatus {
	if l.VisitStatus == nil {
		return ""
	}
	return *l.VisitStatus
}

func (l *Lead) TotalPaid() float64 {
	var total float64
	for _, p := range l.Payments {
		total += p.Amount
	}
	return total
}

// Clone returns a deep copy safe to hand out of a store.
func (l *Lead) Clone() *Lead {
	c := *l
	c.Notes = append([]Note(nil), l.Notes...)
	c.Payments = append([]Payment(nil), l.Payments...)
	if l.AssignedDoctor != nil {
		v := *l.AssignedDoctor
		c.AssignedDoctor = &v
	}
	if l.AppointmentDate != nil {
		v := *l.AppointmentDate
		c.AppointmentDate = &v
	}
	if l.AppointmentTime != nil {
		v := *l.AppointmentTime
		c.AppointmentTime = &v
	}
	if l.VisitStatus != nil {
		v := *l.VisitStatus
		c.VisitStatus = &v
	}
	if l.LastContacted != nil {
		v := *l.LastContacted
		c.LastContacted = &v
	}
	return &c
}

type LeadFilters struct {
	Status    LeadStatus
	Doctor    string
	DateRange *DateRange
}

// CreateBookingRequest books a walk-in patient straight onto the schedule.
type CreateBookingRequest struct {
	Name              string        `json:"name" binding:"required"`
	Phone             string        `json:"phone" binding:"required"`
	NationalID        string        `json:"national_id"`
	BirthYear         string        `json:"birth_year"`
	TreatmentInterest string        `json:"treatment_interest"`
	Doctor            string        `json:"doctor" binding:"required"`
	Date              string        `json:"date" binding:"required,isodate"`
	Time              string        `json:"time" binding:"required,clock"`
	Duration          int           `json:"duration" binding:"omitempty,slotduration"`
	Price             float64       `json:"price" binding:"gte=0"`
	Deposit           float64       `json:"deposit" binding:"gte=0"`
	PaymentMethod     PaymentMethod `json:"payment_method" binding:"omitempty,oneof=CASH TRANSFER CARD CHEQUE"`
}

// ConfirmBookingRequest promotes a pipeline lead to BOOKED.
type ConfirmBookingRequest struct {
	Doctor   string  `json:"doctor" binding:"required"`
	Date     string  `json:"date" binding:"required,isodate"`
	Time     string  `json:"time" binding:"required,clock"`
	Duration int     `json:"duration" binding:"omitempty,slotduration"`
	Deposit  float64 `json:"deposit" binding:"gte=0"`
}

type RescheduleRequest struct {
	Date string `json:"date" binding:"required,isodate"`
	Time string `json:"time" binding:"required,clock"`
}

// MoveRequest is a drag-and-drop drop target; Doctor is set when the card
// lands in another swim-lane.
type MoveRequest struct {
	Date   string `json:"date" binding:"required,isodate"`
	Time   string `json:"time" binding:"required,clock"`
	Doctor string `json:"doctor"`
}

type CancelRequest struct {
	VisitStatus VisitStatus `json:"visit_status" binding:"required,oneof=CANCELLED NO_SHOW"`
}

type VisitStatusRequest struct {
	VisitStatus VisitStatus `json:"visit_status" binding:"required,oneof=SCHEDULED ARRIVED IN_CHAIR COMPLETED"`
}

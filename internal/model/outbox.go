package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusRetry     OutboxStatus = "RETRY"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

// Booking event types written to the outbox.
const (
	EventBookingCreated     = "booking.created"
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingRescheduled = "booking.rescheduled"
	EventBookingMoved       = "booking.moved"
	EventBookingCancelled   = "booking.cancelled"
	EventBookingNoShow      = "booking.no_show"
	EventBookingVisitStatus = "booking.visit_status"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	RetryAt      *time.Time      `db:"retry_at" json:"retry_at,omitempty"`
}

// BookingEvent is the payload of every booking.* event.
type BookingEvent struct {
	LeadID         uuid.UUID   `json:"lead_id"`
	Name           string      `json:"name"`
	Phone          string      `json:"phone"`
	Doctor         string      `json:"doctor"`
	Date           string      `json:"date,omitempty"`
	Time           string      `json:"time,omitempty"`
	Duration       int         `json:"duration"`
	VisitStatus    VisitStatus `json:"visit_status,omitempty"`
	PreviousDoctor string      `json:"previous_doctor,omitempty"`
	PreviousDate   string      `json:"previous_date,omitempty"`
	PreviousTime   string      `json:"previous_time,omitempty"`
	OccurredAt     time.Time   `json:"occurred_at"`
}

package model

import "time"

// ClinicSettings bounds the booking grid. The scheduling engine only reads it.
type ClinicSettings struct {
	ClinicName     string    `db:"clinic_name" json:"clinic_name"`
	Currency       string    `db:"currency" json:"currency"`
	StartHour      string    `db:"start_hour" json:"start_hour"`
	EndHour        string    `db:"end_hour" json:"end_hour"`
	CommissionRate float64   `db:"commission_rate" json:"commission_rate"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type UpdateSettingsRequest struct {
	ClinicName     *string  `json:"clinic_name" binding:"omitempty,max=200"`
	Currency       *string  `json:"currency" binding:"omitempty,len=3"`
	StartHour      *string  `json:"start_hour" binding:"omitempty,clock"`
	EndHour        *string  `json:"end_hour" binding:"omitempty,clock"`
	CommissionRate *float64 `json:"commission_rate" binding:"omitempty,gte=0,lte=100"`
}

// DefaultClinicSettings are used until settings are saved.
func DefaultClinicSettings() ClinicSettings {
	return ClinicSettings{
		ClinicName:     "Muscat Dental Clinic",
		Currency:       "OMR",
		StartHour:      "09:00",
		EndHour:        "21:00",
		CommissionRate: 40,
	}
}

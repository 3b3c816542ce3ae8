package booking

import (
	"errors"

	"github.com/jwalitptl/chairside-api/internal/service/schedule"
	apperrors "github.com/jwalitptl/chairside-api/pkg/errors"
	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

var (
	ErrSlotOccupied         = schedule.ErrSlotOccupied
	ErrOutsideHours         = schedule.ErrOutsideHours
	ErrOffGrid              = schedule.ErrOffGrid
	ErrInvalidTimeFormat    = timegrid.ErrInvalidFormat
	ErrInvalidDate          = errors.New("invalid appointment date, expected YYYY-MM-DD")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidDuration      = errors.New("duration must be a positive multiple of 30 minutes")
	ErrLeadNotFound         = errors.New("lead not found")
	ErrDoctorNotFound       = errors.New("doctor not found")
	ErrDoctorInactive       = errors.New("doctor is not active")
	ErrNotBooked            = errors.New("lead has no booking")
	ErrInvalidVisitStatus   = errors.New("invalid visit status")
)

// appError classifies a domain error for transport. ok is false for errors
// that are not part of the booking vocabulary.
func appError(err error) (appErr *apperrors.AppError, ok bool) {
	switch {
	case errors.Is(err, ErrSlotOccupied):
		return apperrors.NewConflict("slot unavailable", err), true
	case errors.Is(err, ErrOutsideHours), errors.Is(err, ErrOffGrid),
		errors.Is(err, ErrDoctorInactive), errors.Is(err, ErrNotBooked):
		return apperrors.NewUnprocessable("booking cannot be placed", err), true
	case errors.Is(err, ErrInvalidTimeFormat), errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrMissingRequiredField), errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrInvalidVisitStatus):
		return apperrors.NewBadRequest("invalid booking request", err), true
	case errors.Is(err, ErrLeadNotFound):
		return apperrors.NewNotFound("lead", err), true
	case errors.Is(err, ErrDoctorNotFound):
		return apperrors.NewNotFound("doctor", err), true
	}
	return nil, false
}

func classify(err error) error {
	if appErr, ok := appError(err); ok {
		return appErr
	}
	return err
}

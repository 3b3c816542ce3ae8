// Package validator holds the custom go-playground validation tags used by
// request DTOs.
package validator

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

const (
	TagClock        = "clock"
	TagSlotDuration = "slotduration"
	TagISODate      = "isodate"
)

// Funcs returns the custom validations keyed by tag.
func Funcs() map[string]validator.Func {
	return map[string]validator.Func{
		TagClock:        validateClock,
		TagSlotDuration: validateSlotDuration,
		TagISODate:      validateISODate,
	}
}

// Register installs every custom tag on v.
func Register(v *validator.Validate) error {
	for tag, fn := range Funcs() {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validation: %w", tag, err)
		}
	}
	return nil
}

func validateClock(fl validator.FieldLevel) bool {
	return timegrid.ValidClock(fl.Field().String())
}

func validateSlotDuration(fl validator.FieldLevel) bool {
	return timegrid.ValidDuration(int(fl.Field().Int()))
}

func validateISODate(fl validator.FieldLevel) bool {
	_, err := time.Parse(timegrid.DateLayout, fl.Field().String())
	return err == nil
}

package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slotRequest struct {
	Date     string `validate:"required,isodate"`
	Time     string `validate:"required,clock"`
	Duration int    `validate:"omitempty,slotduration"`
}

func newValidate(t *testing.T) *validator.Validate {
	v := validator.New()
	require.NoError(t, Register(v))
	return v
}

func TestCustomTags(t *testing.T) {
	v := newValidate(t)

	assert.NoError(t, v.Struct(slotRequest{Date: "2024-03-12", Time: "10:30", Duration: 60}))
	assert.NoError(t, v.Struct(slotRequest{Date: "2024-03-12", Time: "10:30"}))

	tests := []struct {
		name string
		req  slotRequest
		tag  string
	}{
		{"short hour", slotRequest{Date: "2024-03-12", Time: "9:30"}, TagClock},
		{"hour out of range", slotRequest{Date: "2024-03-12", Time: "25:00"}, TagClock},
		{"minute out of range", slotRequest{Date: "2024-03-12", Time: "10:75"}, TagClock},
		{"odd duration", slotRequest{Date: "2024-03-12", Time: "10:00", Duration: 45}, TagSlotDuration},
		{"negative duration", slotRequest{Date: "2024-03-12", Time: "10:00", Duration: -30}, TagSlotDuration},
		{"bad date", slotRequest{Date: "12/03/2024", Time: "10:00"}, TagISODate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			require.Error(t, err)
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			assert.Equal(t, tt.tag, verrs[0].Tag())
		})
	}
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NewNotFound("lead", nil), http.StatusNotFound},
		{NewBadRequest("bad", nil), http.StatusBadRequest},
		{NewConflict("taken", nil), http.StatusConflict},
		{NewUnprocessable("late", nil), http.StatusUnprocessableEntity},
		{NewInternal(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.StatusCode(), tt.err.Message)
	}
}

func TestAsUnwrapsChain(t *testing.T) {
	sentinel := errors.New("slot is occupied")
	wrapped := fmt.Errorf("failed to move booking: %w", NewConflict("slot is occupied", sentinel))

	appErr, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrConflict, appErr.Code)
	assert.ErrorIs(t, wrapped, sentinel)
	assert.Equal(t, "slot is occupied: slot is occupied", appErr.Error())

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}

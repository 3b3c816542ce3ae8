package httputil

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jwalitptl/chairside-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Status  string       `json:"status"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationMessages maps validator tags to client-facing messages.
var ValidationMessages = map[string]string{
	"required":     "field is required",
	"clock":        "must be a HH:MM time",
	"isodate":      "must be a YYYY-MM-DD date",
	"slotduration": "must be a positive multiple of 30 minutes",
	"oneof":        "has an unsupported value",
	"gte":          "must not be negative",
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, data interface{}) {
	RespondWithStatus(c, http.StatusOK, data)
}

func RespondWithStatus(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{
		Status: "success",
		Data:   data,
	})
}

// RespondWithError maps AppError codes to HTTP statuses; anything else is a 500
// whose detail is not leaked.
func RespondWithError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	if appErr, ok := errors.As(err); ok {
		statusCode = appErr.StatusCode()
		if statusCode != http.StatusInternalServerError {
			message = appErr.Message
		}
	}

	_ = c.Error(err)
	c.JSON(statusCode, Response{
		Status:  "error",
		Message: message,
	})
}

// RespondWithValidationError is used when request binding fails.
func RespondWithValidationError(c *gin.Context, err error) {
	_ = c.Error(err).SetType(gin.ErrorTypeBind)

	resp := Response{Status: "error", Message: "invalid request"}
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		for _, e := range verrs {
			msg := ValidationMessages[e.Tag()]
			if msg == "" {
				msg = e.Error()
			}
			resp.Errors = append(resp.Errors, FieldError{Field: e.Field(), Message: msg})
		}
	} else {
		resp.Message = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/chairside-api/pkg/errors"
	"github.com/jwalitptl/chairside-api/pkg/httputil"
)

// ErrorHandler logs errors attached to the context and writes an error
// envelope for handlers that recorded an error without responding.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)
		for _, e := range c.Errors {
			if e.IsType(gin.ErrorTypeBind) {
				continue
			}
			if appErr, ok := errors.As(e.Err); ok && appErr.StatusCode() < http.StatusInternalServerError {
				continue
			}
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}
		status := http.StatusInternalServerError
		message := "Internal server error"
		if appErr, ok := errors.As(c.Errors.Last().Err); ok {
			status = appErr.StatusCode()
			if status != http.StatusInternalServerError {
				message = appErr.Message
			}
		}
		c.JSON(status, httputil.Response{Status: "error", Message: message})
	}
}

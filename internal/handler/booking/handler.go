package booking

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/service/booking"
	apperrors "github.com/jwalitptl/chairside-api/pkg/errors"
	"github.com/jwalitptl/chairside-api/pkg/httputil"
)

type Handler struct {
	service *booking.Service
}

func NewHandler(service *booking.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("/:id", h.GetBooking)
		bookings.PUT("/:id/reschedule", h.Reschedule)
		bookings.PUT("/:id/move", h.Move)
		bookings.PUT("/:id/cancel", h.Cancel)
		bookings.PUT("/:id/visit-status", h.SetVisitStatus)
	}
	r.POST("/leads/:id/booking", h.ConfirmBooking)
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid lead ID", err))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) CreateBooking(c *gin.Context) {
	var req model.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	lead, err := h.service.CreateBooking(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithStatus(c, http.StatusCreated, lead)
}

func (h *Handler) ConfirmBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req model.ConfirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	lead, err := h.service.ConfirmBooking(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, lead)
}

func (h *Handler) GetBooking(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	lead, err := h.service.GetBooking(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, lead)
}

func (h *Handler) Reschedule(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req model.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	lead, err := h.service.Reschedule(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, lead)
}

// Move handles a drag-and-drop drop on the board.
func (h *Handler) Move(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req model.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	lead, err := h.service.DragMove(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, lead)
}

func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req model.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	lead, err := h.service.CancelOrNoShow(c.Request.Context(), id, req.VisitStatus)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, lead)
}

func (h *Handler) SetVisitStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req model.VisitStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithValidationError(c, err)
		return
	}

	lead, err := h.service.SetVisitStatus(c.Request.Context(), id, req.VisitStatus)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, lead)
}

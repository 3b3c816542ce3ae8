package schedule

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/chairside-api/internal/service/booking"
	"github.com/jwalitptl/chairside-api/internal/service/calendar"
	apperrors "github.com/jwalitptl/chairside-api/pkg/errors"
	"github.com/jwalitptl/chairside-api/pkg/httputil"
	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

type Handler struct {
	calendar *calendar.Service
	bookings *booking.Service
}

func NewHandler(calendar *calendar.Service, bookings *booking.Service) *Handler {
	return &Handler{calendar: calendar, bookings: bookings}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	schedule := r.Group("/schedule")
	{
		schedule.GET("/slots", h.Slots)
		schedule.GET("/availability", h.Availability)
		schedule.GET("/day-board", h.DayBoard)
		schedule.GET("/day-list", h.DayList)
		schedule.GET("/week", h.Week)
		schedule.GET("/timeline", h.Timeline)
		schedule.GET("/queue", h.Queue)
	}
}

// day reads ?date=YYYY-MM-DD, defaulting to today in the clinic zone.
func (h *Handler) day(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return h.calendar.Today(), true
	}
	day, err := timegrid.ParseDay(raw, h.calendar.Location())
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid date, expected YYYY-MM-DD", err))
		return time.Time{}, false
	}
	return day, true
}

func (h *Handler) Slots(c *gin.Context) {
	slots, err := h.calendar.Slots(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) Availability(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = h.calendar.Today().Format(timegrid.DateLayout)
	}

	duration := 0
	if raw := c.Query("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.NewBadRequest("invalid duration", err))
			return
		}
		duration = d
	}

	exclude := uuid.Nil
	if raw := c.Query("exclude_lead_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.NewBadRequest("invalid exclude_lead_id", err))
			return
		}
		exclude = id
	}

	slots, err := h.bookings.Availability(c.Request.Context(), c.Query("doctor"), date, duration, exclude)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) DayBoard(c *gin.Context) {
	day, ok := h.day(c)
	if !ok {
		return
	}
	board, err := h.calendar.DayBoard(c.Request.Context(), day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, board)
}

func (h *Handler) DayList(c *gin.Context) {
	day, ok := h.day(c)
	if !ok {
		return
	}
	list, err := h.calendar.DayList(c.Request.Context(), day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) Week(c *gin.Context) {
	day, ok := h.day(c)
	if !ok {
		return
	}
	grid, err := h.calendar.WeekGrid(c.Request.Context(), day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, grid)
}

func (h *Handler) Timeline(c *gin.Context) {
	day, ok := h.day(c)
	if !ok {
		return
	}
	days, err := h.calendar.Timeline(c.Request.Context(), day)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, days)
}

func (h *Handler) Queue(c *gin.Context) {
	queue, err := h.calendar.Queue(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, queue)
}

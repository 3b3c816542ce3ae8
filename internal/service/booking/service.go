// Package booking is the only writer of a lead's scheduling fields. Every
// mutation re-validates the target slot against the occupancy index.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
	"github.com/jwalitptl/chairside-api/internal/service/schedule"
	"github.com/jwalitptl/chairside-api/pkg/logger"
	"github.com/jwalitptl/chairside-api/pkg/metrics"
	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

const walkInNote = "Walk-in appointment booked manually"

type Config struct {
	// EnforceNoOverlap makes DragMove validate like Reschedule. When false a
	// drop is accepted even if it overlaps another booking.
	EnforceNoOverlap bool
	// VacateOnCancel clears the appointment date and time on cancel and
	// no-show so the slot frees up.
	VacateOnCancel bool
}

func DefaultConfig() Config {
	return Config{EnforceNoOverlap: true}
}

type Service struct {
	leads    repository.LeadRepository
	doctors  repository.DoctorRepository
	settings repository.SettingsRepository
	outbox   repository.OutboxRepository
	index    *schedule.Index
	config   Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	// mu makes read-validate-write one step across concurrent requests.
	mu sync.Mutex
}

func NewService(
	leads repository.LeadRepository,
	doctors repository.DoctorRepository,
	settings repository.SettingsRepository,
	outbox repository.OutboxRepository,
	index *schedule.Index,
	config Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		leads:    leads,
		doctors:  doctors,
		settings: settings,
		outbox:   outbox,
		index:    index,
		config:   config,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// slot is a parsed, normalized placement.
type slot struct {
	doctor   string
	day      time.Time
	time     string
	start    int
	duration int
}

func (s *Service) parseSlot(doctor, date, clock string, duration int) (slot, error) {
	if strings.TrimSpace(doctor) == "" {
		return slot{}, fmt.Errorf("%w: doctor", ErrMissingRequiredField)
	}
	if date == "" {
		return slot{}, fmt.Errorf("%w: date", ErrMissingRequiredField)
	}
	if clock == "" {
		return slot{}, fmt.Errorf("%w: time", ErrMissingRequiredField)
	}
	day, err := timegrid.ParseDay(date, s.index.Location())
	if err != nil {
		return slot{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if !timegrid.ValidClock(clock) {
		return slot{}, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, clock)
	}
	start, err := timegrid.TimeToMinutes(clock)
	if err != nil {
		return slot{}, err
	}
	if duration == 0 {
		duration = timegrid.DefaultDuration
	}
	if duration < 0 {
		return slot{}, fmt.Errorf("%w: %d", ErrInvalidDuration, duration)
	}
	return slot{doctor: doctor, day: day, time: clock, start: start, duration: duration}, nil
}

// requestedDuration checks a client-supplied duration; stored bookings with
// off-grid durations are still moved as they are.
func requestedDuration(d int) error {
	if d != 0 && !timegrid.ValidDuration(d) {
		return fmt.Errorf("%w: %d", ErrInvalidDuration, d)
	}
	return nil
}

func (s *Service) window(ctx context.Context) (timegrid.Window, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return timegrid.Window{}, fmt.Errorf("failed to get clinic settings: %w", err)
	}
	w, err := timegrid.NewWindow(settings.StartHour, settings.EndHour)
	if err != nil {
		return timegrid.Window{}, fmt.Errorf("invalid clinic hours: %w", err)
	}
	return w, nil
}

func (s *Service) requireDoctor(ctx context.Context, name string) error {
	doctor, err := s.doctors.GetByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrDoctorNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("failed to get doctor: %w", err)
	}
	if !doctor.Active {
		return fmt.Errorf("%w: %s", ErrDoctorInactive, name)
	}
	return nil
}

// checkSlot validates sl against the clinic window and the doctor's
// occupancy, skipping the lead identified by excludeID.
func (s *Service) checkSlot(ctx context.Context, sl slot, excludeID uuid.UUID) error {
	w, err := s.window(ctx)
	if err != nil {
		return err
	}
	occupied, err := s.index.Occupied(ctx, sl.doctor, sl.day, excludeID)
	if err != nil {
		return err
	}
	if err := schedule.Check(w, sl.start, sl.duration, occupied); err != nil {
		return fmt.Errorf("%w: %s on %s at %s", err, sl.doctor, sl.day.Format(timegrid.DateLayout), sl.time)
	}
	return nil
}

func (s *Service) getLead(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	lead, err := s.leads.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrLeadNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

func requireBooked(lead *model.Lead) error {
	if lead.Status != model.LeadStatusBooked || lead.AssignedDoctor == nil {
		return fmt.Errorf("%w: %s", ErrNotBooked, lead.ID)
	}
	return nil
}

// GetBooking returns a lead by id.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	lead, err := s.getLead(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return lead, nil
}

// CreateBooking books a walk-in patient as a new BOOKED lead.
func (s *Service) CreateBooking(ctx context.Context, req *model.CreateBookingRequest) (*model.Lead, error) {
	const op = "create"

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Phone) == "" {
		return nil, s.reject(op, fmt.Errorf("%w: name and phone", ErrMissingRequiredField))
	}
	if err := requestedDuration(req.Duration); err != nil {
		return nil, s.reject(op, err)
	}
	sl, err := s.parseSlot(req.Doctor, req.Date, req.Time, req.Duration)
	if err != nil {
		return nil, s.reject(op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireDoctor(ctx, sl.doctor); err != nil {
		return nil, s.reject(op, err)
	}
	if err := s.checkSlot(ctx, sl, uuid.Nil); err != nil {
		return nil, s.reject(op, err)
	}

	now := s.now()
	scheduled := model.VisitStatusScheduled
	lead := &model.Lead{
		Base:              model.Base{ID: uuid.New(), CreatedAt: now},
		Name:              strings.TrimSpace(req.Name),
		Phone:             strings.TrimSpace(req.Phone),
		TreatmentInterest: req.TreatmentInterest,
		Status:            model.LeadStatusBooked,
		Source:            model.LeadSourceManual,
		PotentialValue:    req.Price,
		PriceQuoted:       req.Price,
		NationalID:        optional(req.NationalID),
		BirthYear:         optional(req.BirthYear),
		LastContacted:     &now,
		Duration:          sl.duration,
		VisitStatus:       &scheduled,
		Notes:             []model.Note{{Text: walkInNote, Timestamp: now}},
		Payments:          []model.Payment{},
	}
	place(lead, sl)

	if req.Deposit > 0 {
		method := req.PaymentMethod
		if method == "" {
			method = model.PaymentMethodCash
		}
		lead.Payments = append(lead.Payments, model.Payment{
			Amount: req.Deposit,
			Method: method,
			Date:   now,
			Note:   "Deposit",
		})
	}

	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, s.fail(op, fmt.Errorf("failed to create booking: %w", err))
	}
	s.committed(ctx, op, model.EventBookingCreated, lead, nil)
	return lead, nil
}

// ConfirmBooking promotes an existing pipeline lead to BOOKED on the chosen
// slot. The lead's own current booking, if any, does not conflict.
func (s *Service) ConfirmBooking(ctx context.Context, leadID uuid.UUID, req *model.ConfirmBookingRequest) (*model.Lead, error) {
	const op = "confirm"

	if err := requestedDuration(req.Duration); err != nil {
		return nil, s.reject(op, err)
	}
	sl, err := s.parseSlot(req.Doctor, req.Date, req.Time, req.Duration)
	if err != nil {
		return nil, s.reject(op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if err := s.requireDoctor(ctx, sl.doctor); err != nil {
		return nil, s.reject(op, err)
	}
	if err := s.checkSlot(ctx, sl, lead.ID); err != nil {
		return nil, s.reject(op, err)
	}

	prev := lead.Clone()
	now := s.now()
	scheduled := model.VisitStatusScheduled
	lead.Status = model.LeadStatusBooked
	lead.VisitStatus = &scheduled
	lead.Duration = sl.duration
	lead.LastContacted = &now
	if lead.PriceQuoted == 0 {
		lead.PriceQuoted = lead.PotentialValue
	}
	place(lead, sl)

	var deposit *model.Payment
	if req.Deposit > 0 {
		deposit = &model.Payment{
			LeadID: lead.ID,
			Amount: req.Deposit,
			Method: model.PaymentMethodTransfer,
			Date:   now,
			Note:   "Booking deposit",
		}
	}
	if err := s.leads.UpdateWithPayment(ctx, lead, deposit); err != nil {
		return nil, s.fail(op, fmt.Errorf("failed to confirm booking: %w", err))
	}
	if deposit != nil {
		lead.Payments = append(lead.Payments, *deposit)
	}
	s.committed(ctx, op, model.EventBookingConfirmed, lead, prev)
	return lead, nil
}

// Reschedule moves a booking to a new day and time, keeping its doctor and
// duration. Rescheduling onto the lead's own current slot is valid.
func (s *Service) Reschedule(ctx context.Context, leadID uuid.UUID, req *model.RescheduleRequest) (*model.Lead, error) {
	const op = "reschedule"

	s.mu.Lock()
	defer s.mu.Unlock()

	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if err := requireBooked(lead); err != nil {
		return nil, s.reject(op, err)
	}
	sl, err := s.parseSlot(lead.Doctor(), req.Date, req.Time, lead.Duration)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if err := s.checkSlot(ctx, sl, lead.ID); err != nil {
		return nil, s.reject(op, err)
	}

	prev := lead.Clone()
	scheduled := model.VisitStatusScheduled
	lead.VisitStatus = &scheduled
	lead.Duration = sl.duration
	place(lead, sl)

	if err := s.leads.Update(ctx, lead); err != nil {
		return nil, s.fail(op, fmt.Errorf("failed to reschedule booking: %w", err))
	}
	s.committed(ctx, op, model.EventBookingRescheduled, lead, prev)
	return lead, nil
}

// DragMove places a booking where it was dropped on the board, optionally in
// another doctor's swim-lane.
func (s *Service) DragMove(ctx context.Context, leadID uuid.UUID, req *model.MoveRequest) (*model.Lead, error) {
	const op = "move"

	s.mu.Lock()
	defer s.mu.Unlock()

	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if err := requireBooked(lead); err != nil {
		return nil, s.reject(op, err)
	}
	doctor := lead.Doctor()
	if req.Doctor != "" {
		doctor = req.Doctor
	}
	sl, err := s.parseSlot(doctor, req.Date, req.Time, lead.Duration)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if doctor != lead.Doctor() {
		if err := s.requireDoctor(ctx, doctor); err != nil {
			return nil, s.reject(op, err)
		}
	}

	if err := s.checkSlot(ctx, sl, lead.ID); err != nil {
		if s.config.EnforceNoOverlap || !isPlacementError(err) {
			return nil, s.reject(op, err)
		}
		s.metrics.SlotConflicts.WithLabelValues("accepted").Inc()
		s.logger.Warn("accepted overlapping move",
			"lead_id", lead.ID.String(), "doctor", sl.doctor, "time", sl.time, "reason", err.Error())
	}

	prev := lead.Clone()
	lead.Duration = sl.duration
	place(lead, sl)

	if err := s.leads.Update(ctx, lead); err != nil {
		return nil, s.fail(op, fmt.Errorf("failed to move booking: %w", err))
	}
	s.committed(ctx, op, model.EventBookingMoved, lead, prev)
	return lead, nil
}

func isPlacementError(err error) bool {
	return errors.Is(err, ErrSlotOccupied) || errors.Is(err, ErrOutsideHours) || errors.Is(err, ErrOffGrid)
}

// CancelOrNoShow marks a booking CANCELLED or NO_SHOW. The lead stays BOOKED
// and keeps occupying its slot unless VacateOnCancel is set.
func (s *Service) CancelOrNoShow(ctx context.Context, leadID uuid.UUID, status model.VisitStatus) (*model.Lead, error) {
	if status != model.VisitStatusCancelled && status != model.VisitStatusNoShow {
		return nil, s.reject("cancel", fmt.Errorf("%w: %s", ErrInvalidVisitStatus, status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setVisitStatus(ctx, leadID, status)
}

// SetVisitStatus applies one context-menu action (check-in, in-chair,
// complete, back to scheduled, no-show, cancel).
func (s *Service) SetVisitStatus(ctx context.Context, leadID uuid.UUID, status model.VisitStatus) (*model.Lead, error) {
	if !status.Valid() {
		return nil, s.reject("visit_status", fmt.Errorf("%w: %s", ErrInvalidVisitStatus, status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setVisitStatus(ctx, leadID, status)
}

func (s *Service) setVisitStatus(ctx context.Context, leadID uuid.UUID, status model.VisitStatus) (*model.Lead, error) {
	op, event := "visit_status", model.EventBookingVisitStatus
	switch status {
	case model.VisitStatusCancelled:
		op, event = "cancel", model.EventBookingCancelled
	case model.VisitStatusNoShow:
		op, event = "no_show", model.EventBookingNoShow
	}

	lead, err := s.getLead(ctx, leadID)
	if err != nil {
		return nil, s.reject(op, err)
	}
	if err := requireBooked(lead); err != nil {
		return nil, s.reject(op, err)
	}

	prev := lead.Clone()
	lead.VisitStatus = &status
	if s.config.VacateOnCancel && (status == model.VisitStatusCancelled || status == model.VisitStatusNoShow) {
		lead.AppointmentDate = nil
		lead.AppointmentTime = nil
	}

	if err := s.leads.Update(ctx, lead); err != nil {
		return nil, s.fail(op, fmt.Errorf("failed to update visit status: %w", err))
	}
	s.committed(ctx, op, event, lead, prev)
	return lead, nil
}

// Availability labels every tick of the clinic day for a booking of duration
// with doctor on date, ignoring the lead excludeID.
func (s *Service) Availability(ctx context.Context, doctor, date string, duration int, excludeID uuid.UUID) ([]schedule.SlotStatus, error) {
	if err := requestedDuration(duration); err != nil {
		return nil, classify(err)
	}
	if duration == 0 {
		duration = timegrid.DefaultDuration
	}
	if strings.TrimSpace(doctor) == "" {
		return nil, classify(fmt.Errorf("%w: doctor", ErrMissingRequiredField))
	}
	day, err := timegrid.ParseDay(date, s.index.Location())
	if err != nil {
		return nil, classify(fmt.Errorf("%w: %q", ErrInvalidDate, date))
	}
	if err := s.requireDoctor(ctx, doctor); err != nil {
		return nil, classify(err)
	}

	w, err := s.window(ctx)
	if err != nil {
		return nil, err
	}
	occupied, err := s.index.Occupied(ctx, doctor, day, excludeID)
	if err != nil {
		return nil, err
	}
	return schedule.Availability(w, duration, occupied), nil
}

func place(lead *model.Lead, sl slot) {
	doctor, clock, day := sl.doctor, sl.time, sl.day
	lead.AssignedDoctor = &doctor
	lead.AppointmentTime = &clock
	lead.AppointmentDate = &day
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// reject records a refused mutation and classifies the error.
func (s *Service) reject(op string, err error) error {
	if isPlacementError(err) {
		reason := schedule.ReasonOccupied
		if !errors.Is(err, ErrSlotOccupied) {
			reason = "outside_hours"
		}
		s.metrics.SlotConflicts.WithLabelValues(reason).Inc()
		s.logger.Warn("booking rejected", "operation", op, "reason", err.Error())
	}
	appErr, ok := appError(err)
	if !ok {
		return s.fail(op, err)
	}
	s.metrics.BookingOperations.WithLabelValues(op, "rejected").Inc()
	return appErr
}

// fail drops cached occupancy too, so a write that failed part way is never
// masked by a stale index.
func (s *Service) fail(op string, err error) error {
	s.index.Invalidate()
	s.metrics.BookingOperations.WithLabelValues(op, "error").Inc()
	s.logger.Error(err, "booking operation failed", "operation", op)
	return err
}

// committed runs after a successful write: it drops cached occupancy and
// queues the outbox event. An outbox failure is logged, not returned, since
// the booking itself is already stored.
func (s *Service) committed(ctx context.Context, op, eventType string, lead, prev *model.Lead) {
	s.index.Invalidate()
	s.metrics.BookingOperations.WithLabelValues(op, "success").Inc()
	s.logger.Info("booking "+op,
		"lead_id", lead.ID.String(),
		"doctor", lead.Doctor(),
		"date", formatDay(lead.AppointmentDate),
		"time", lead.Time(),
		"visit_status", string(lead.Visit()))

	payload, err := json.Marshal(newEvent(lead, prev, s.now()))
	if err != nil {
		s.logger.Error(err, "failed to marshal booking event", "event_type", eventType)
		return
	}
	event := &model.OutboxEvent{EventType: eventType, Payload: payload}
	if err := s.outbox.Create(ctx, event); err != nil {
		s.logger.Error(err, "failed to queue booking event",
			"event_type", eventType, "lead_id", lead.ID.String())
	}
}

func newEvent(lead, prev *model.Lead, now time.Time) model.BookingEvent {
	evt := model.BookingEvent{
		LeadID:      lead.ID,
		Name:        lead.Name,
		Phone:       lead.Phone,
		Doctor:      lead.Doctor(),
		Date:        formatDay(lead.AppointmentDate),
		Time:        lead.Time(),
		Duration:    lead.Duration,
		VisitStatus: lead.Visit(),
		OccurredAt:  now,
	}
	if prev != nil {
		evt.PreviousDoctor = prev.Doctor()
		evt.PreviousDate = formatDay(prev.AppointmentDate)
		evt.PreviousTime = prev.Time()
	}
	return evt
}

func formatDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timegrid.DateLayout)
}

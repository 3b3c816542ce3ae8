package booking

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
	"github.com/jwalitptl/chairside-api/internal/repository/memory"
	"github.com/jwalitptl/chairside-api/internal/service/schedule"
	apperrors "github.com/jwalitptl/chairside-api/pkg/errors"
	"github.com/jwalitptl/chairside-api/pkg/logger"
	"github.com/jwalitptl/chairside-api/pkg/metrics"
)

var gst = time.FixedZone("GST", 4*60*60)

const testDate = "2024-03-12"

type fixture struct {
	svc     *Service
	leads   repository.LeadRepository
	doctors repository.DoctorRepository
	outbox  repository.OutboxRepository
	index   *schedule.Index
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	return newFixtureWithLeads(t, cfg, memory.NewLeadRepository())
}

func newFixtureWithLeads(t *testing.T, cfg Config, leads repository.LeadRepository) *fixture {
	t.Helper()
	doctors := memory.NewDoctorRepository(memory.DefaultDoctors()...)
	settings := memory.NewSettingsRepository(model.DefaultClinicSettings())
	outbox := memory.NewOutboxRepository()
	m := metrics.NewNop()
	index := schedule.NewIndex(leads, time.Minute, gst, m)

	svc := NewService(leads, doctors, settings, outbox, index, cfg, logger.Nop(), m)
	svc.now = func() time.Time { return time.Date(2024, 3, 12, 8, 0, 0, 0, gst) }
	return &fixture{svc: svc, leads: leads, doctors: doctors, outbox: outbox, index: index}
}

func (f *fixture) book(t *testing.T, doctor, at string, duration int) *model.Lead {
	t.Helper()
	lead, err := f.svc.CreateBooking(context.Background(), &model.CreateBookingRequest{
		Name:     "Patient " + at,
		Phone:    "+968 9000 0000",
		Doctor:   doctor,
		Date:     testDate,
		Time:     at,
		Duration: duration,
	})
	require.NoError(t, err)
	return lead
}

func (f *fixture) occupied(t *testing.T, doctor string) []string {
	t.Helper()
	occ, err := f.index.Occupied(context.Background(), doctor, time.Date(2024, 3, 12, 0, 0, 0, 0, gst), uuid.Nil)
	require.NoError(t, err)
	return occ.Times()
}

func (f *fixture) events(t *testing.T) []*model.OutboxEvent {
	t.Helper()
	events, err := f.outbox.GetPendingEvents(context.Background(), 100)
	require.NoError(t, err)
	return events
}

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestCreateBooking(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	lead, err := f.svc.CreateBooking(ctx, &model.CreateBookingRequest{
		Name:     "Aisha",
		Phone:    "+968 9111 2222",
		Doctor:   "Dr. Sarah",
		Date:     testDate,
		Time:     "10:00",
		Duration: 60,
		Price:    120,
		Deposit:  20,
	})
	require.NoError(t, err)

	assert.Equal(t, model.LeadStatusBooked, lead.Status)
	assert.Equal(t, model.LeadSourceManual, lead.Source)
	assert.Equal(t, model.VisitStatusScheduled, lead.Visit())
	assert.Equal(t, 120.0, lead.PriceQuoted)
	require.Len(t, lead.Payments, 1)
	assert.Equal(t, model.PaymentMethodCash, lead.Payments[0].Method)
	assert.Equal(t, 20.0, lead.Payments[0].Amount)
	require.Len(t, lead.Notes, 1)
	assert.Equal(t, walkInNote, lead.Notes[0].Text)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, gst), *lead.AppointmentDate)

	stored, err := f.leads.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "10:00", stored.Time())
	assert.Equal(t, []string{"10:00", "10:30"}, f.occupied(t, "Dr. Sarah"))

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventBookingCreated, events[0].EventType)
	var evt model.BookingEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &evt))
	assert.Equal(t, lead.ID, evt.LeadID)
	assert.Equal(t, "Dr. Sarah", evt.Doctor)
	assert.Equal(t, testDate, evt.Date)
}

func TestCreateBookingWithoutDeposit(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	lead := f.book(t, "Dr. Ali", "09:00", 0)
	assert.Empty(t, lead.Payments)
	assert.Equal(t, 30, lead.Duration)
}

func TestCreateBookingRejections(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.book(t, "Dr. Sarah", "10:00", 60)

	base := model.CreateBookingRequest{Name: "N", Phone: "P", Doctor: "Dr. Sarah", Date: testDate}
	tests := []struct {
		name     string
		mutate   func(r *model.CreateBookingRequest)
		code     apperrors.ErrorCode
		sentinel error
	}{
		{"occupied start", func(r *model.CreateBookingRequest) { r.Time = "10:30" }, apperrors.ErrConflict, ErrSlotOccupied},
		{"overlapping tail", func(r *model.CreateBookingRequest) { r.Time = "09:30"; r.Duration = 60 }, apperrors.ErrConflict, ErrSlotOccupied},
		{"past end of day", func(r *model.CreateBookingRequest) { r.Time = "20:30"; r.Duration = 60 }, apperrors.ErrUnprocessable, ErrOutsideHours},
		{"before opening", func(r *model.CreateBookingRequest) { r.Time = "08:30" }, apperrors.ErrUnprocessable, ErrOutsideHours},
		{"off grid", func(r *model.CreateBookingRequest) { r.Time = "11:15" }, apperrors.ErrUnprocessable, ErrOffGrid},
		{"bad time", func(r *model.CreateBookingRequest) { r.Time = "11am" }, apperrors.ErrBadRequest, ErrInvalidTimeFormat},
		{"impossible minute", func(r *model.CreateBookingRequest) { r.Time = "09:60" }, apperrors.ErrBadRequest, ErrInvalidTimeFormat},
		{"impossible hour", func(r *model.CreateBookingRequest) { r.Time = "25:00" }, apperrors.ErrBadRequest, ErrInvalidTimeFormat},
		{"bad date", func(r *model.CreateBookingRequest) { r.Time = "11:00"; r.Date = "12/03/2024" }, apperrors.ErrBadRequest, ErrInvalidDate},
		{"odd duration", func(r *model.CreateBookingRequest) { r.Time = "11:00"; r.Duration = 45 }, apperrors.ErrBadRequest, ErrInvalidDuration},
		{"no doctor", func(r *model.CreateBookingRequest) { r.Time = "11:00"; r.Doctor = "" }, apperrors.ErrBadRequest, ErrMissingRequiredField},
		{"no time", func(r *model.CreateBookingRequest) {}, apperrors.ErrBadRequest, ErrMissingRequiredField},
		{"no phone", func(r *model.CreateBookingRequest) { r.Time = "11:00"; r.Phone = " " }, apperrors.ErrBadRequest, ErrMissingRequiredField},
		{"unknown doctor", func(r *model.CreateBookingRequest) { r.Time = "11:00"; r.Doctor = "Dr. Who" }, apperrors.ErrNotFound, ErrDoctorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := f.svc.CreateBooking(context.Background(), &req)
			assertCode(t, err, tt.code)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}

	assert.Len(t, f.events(t), 1, "rejected bookings emit nothing")
}

func TestCreateBookingInactiveDoctor(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	ali, err := f.doctors.GetByName(ctx, "Dr. Ali")
	require.NoError(t, err)
	ali.Active = false
	require.NoError(t, f.doctors.Update(ctx, ali))

	_, err = f.svc.CreateBooking(ctx, &model.CreateBookingRequest{
		Name: "N", Phone: "P", Doctor: "Dr. Ali", Date: testDate, Time: "10:00",
	})
	assertCode(t, err, apperrors.ErrUnprocessable)
	assert.ErrorIs(t, err, ErrDoctorInactive)
}

func TestOtherDoctorsAreIndependent(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.book(t, "Dr. Sarah", "10:00", 60)
	f.book(t, "Dr. Ali", "10:00", 60)
	assert.Equal(t, []string{"10:00", "10:30"}, f.occupied(t, "Dr. Ali"))
}

func TestConfirmBooking(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	pipeline := &model.Lead{
		Name:           "Omar",
		Phone:          "+968 9222 3333",
		Status:         model.LeadStatusContacted,
		Source:         model.LeadSourceWebsite,
		PotentialValue: 300,
	}
	require.NoError(t, f.leads.Create(ctx, pipeline))

	lead, err := f.svc.ConfirmBooking(ctx, pipeline.ID, &model.ConfirmBookingRequest{
		Doctor: "Dr. Mohammed", Date: testDate, Time: "15:00", Duration: 90, Deposit: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusBooked, lead.Status)
	assert.Equal(t, model.LeadSourceWebsite, lead.Source)
	assert.Equal(t, 300.0, lead.PriceQuoted)
	assert.Equal(t, model.VisitStatusScheduled, lead.Visit())

	stored, err := f.leads.Get(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, stored.Payments, 1)
	assert.Equal(t, model.PaymentMethodTransfer, stored.Payments[0].Method)
	assert.Equal(t, []string{"15:00", "15:30", "16:00"}, f.occupied(t, "Dr. Mohammed"))

	// confirming again onto its own slot does not conflict with itself
	_, err = f.svc.ConfirmBooking(ctx, pipeline.ID, &model.ConfirmBookingRequest{
		Doctor: "Dr. Mohammed", Date: testDate, Time: "15:30", Duration: 60,
	})
	require.NoError(t, err)

	_, err = f.svc.ConfirmBooking(ctx, uuid.New(), &model.ConfirmBookingRequest{
		Doctor: "Dr. Mohammed", Date: testDate, Time: "10:00",
	})
	assertCode(t, err, apperrors.ErrNotFound)
}

func TestRescheduleSelfExclusion(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	lead := f.book(t, "Dr. Sarah", "10:00", 60)

	// same slot
	got, err := f.svc.Reschedule(ctx, lead.ID, &model.RescheduleRequest{Date: testDate, Time: "10:00"})
	require.NoError(t, err)
	assert.Equal(t, "10:00", got.Time())

	// overlapping its own old span
	got, err = f.svc.Reschedule(ctx, lead.ID, &model.RescheduleRequest{Date: testDate, Time: "10:30"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sarah", got.Doctor())
	assert.Equal(t, 60, got.Duration)
	assert.Equal(t, []string{"10:30", "11:00"}, f.occupied(t, "Dr. Sarah"))
}

func TestRescheduleRejections(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	f.book(t, "Dr. Sarah", "12:00", 30)
	lead := f.book(t, "Dr. Sarah", "10:00", 60)

	_, err := f.svc.Reschedule(ctx, lead.ID, &model.RescheduleRequest{Date: testDate, Time: "11:30"})
	assertCode(t, err, apperrors.ErrConflict)

	_, err = f.svc.Reschedule(ctx, lead.ID, &model.RescheduleRequest{Date: testDate, Time: "20:30"})
	assertCode(t, err, apperrors.ErrUnprocessable)

	pipeline := &model.Lead{Name: "new", Status: model.LeadStatusNew}
	require.NoError(t, f.leads.Create(ctx, pipeline))
	_, err = f.svc.Reschedule(ctx, pipeline.ID, &model.RescheduleRequest{Date: testDate, Time: "14:00"})
	assertCode(t, err, apperrors.ErrUnprocessable)
	assert.ErrorIs(t, err, ErrNotBooked)

	// a rejected reschedule leaves the booking where it was
	stored, err := f.leads.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "10:00", stored.Time())
}

func TestRescheduleResetsVisitStatus(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	lead := f.book(t, "Dr. Sarah", "10:00", 30)
	_, err := f.svc.SetVisitStatus(ctx, lead.ID, model.VisitStatusNoShow)
	require.NoError(t, err)

	got, err := f.svc.Reschedule(ctx, lead.ID, &model.RescheduleRequest{Date: testDate, Time: "14:00"})
	require.NoError(t, err)
	assert.Equal(t, model.VisitStatusScheduled, got.Visit())

	// a board drag keeps whatever status the visit had
	_, err = f.svc.SetVisitStatus(ctx, lead.ID, model.VisitStatusArrived)
	require.NoError(t, err)
	got, err = f.svc.DragMove(ctx, lead.ID, &model.MoveRequest{Date: testDate, Time: "15:00"})
	require.NoError(t, err)
	assert.Equal(t, model.VisitStatusArrived, got.Visit())
}

func TestRescheduleToAnotherDay(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	lead := f.book(t, "Dr. Sarah", "10:00", 30)

	got, err := f.svc.Reschedule(ctx, lead.ID, &model.RescheduleRequest{Date: "2024-03-14", Time: "10:00"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, gst), *got.AppointmentDate)
	assert.Empty(t, f.occupied(t, "Dr. Sarah"))
}

func TestDragMoveRejectsOverlapByDefault(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	f.book(t, "Dr. Ali", "11:00", 30)
	lead := f.book(t, "Dr. Sarah", "10:00", 30)

	_, err := f.svc.DragMove(ctx, lead.ID, &model.MoveRequest{Date: testDate, Time: "11:00", Doctor: "Dr. Ali"})
	assertCode(t, err, apperrors.ErrConflict)
	assert.ErrorIs(t, err, ErrSlotOccupied)

	stored, err := f.leads.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Sarah", stored.Doctor())
	assert.Equal(t, "10:00", stored.Time())
}

func TestDragMoveAcceptsOverlapWhenNotEnforced(t *testing.T) {
	f := newFixture(t, Config{EnforceNoOverlap: false})
	ctx := context.Background()
	other := f.book(t, "Dr. Ali", "11:00", 30)
	lead := f.book(t, "Dr. Sarah", "10:00", 30)

	moved, err := f.svc.DragMove(ctx, lead.ID, &model.MoveRequest{Date: testDate, Time: "11:00", Doctor: "Dr. Ali"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Ali", moved.Doctor())

	all, err := f.leads.List(ctx, &model.LeadFilters{Doctor: "Dr. Ali"})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, all[0].Time(), all[1].Time(), "overlapping pair is stored")
	assert.ElementsMatch(t, []uuid.UUID{other.ID, lead.ID}, []uuid.UUID{all[0].ID, all[1].ID})
}

func TestDragMoveReassignsDoctor(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	lead := f.book(t, "Dr. Sarah", "10:00", 60)

	moved, err := f.svc.DragMove(ctx, lead.ID, &model.MoveRequest{Date: testDate, Time: "13:00", Doctor: "Dr. Mohammed"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Mohammed", moved.Doctor())
	assert.Equal(t, 60, moved.Duration)
	assert.Empty(t, f.occupied(t, "Dr. Sarah"))
	assert.Equal(t, []string{"13:00", "13:30"}, f.occupied(t, "Dr. Mohammed"))

	// no doctor in the drop keeps the current lane
	moved, err = f.svc.DragMove(ctx, lead.ID, &model.MoveRequest{Date: testDate, Time: "14:00"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Mohammed", moved.Doctor())

	_, err = f.svc.DragMove(ctx, lead.ID, &model.MoveRequest{Date: testDate, Time: "14:00", Doctor: "Dr. Who"})
	assertCode(t, err, apperrors.ErrNotFound)

	events := f.events(t)
	last := events[len(events)-1]
	assert.Equal(t, model.EventBookingMoved, last.EventType)
	var evt model.BookingEvent
	require.NoError(t, json.Unmarshal(last.Payload, &evt))
	assert.Equal(t, "13:00", evt.PreviousTime)
	assert.Equal(t, "14:00", evt.Time)
}

func TestCancelledBookingStillOccupiesSlot(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	lead := f.book(t, "Dr. Sarah", "10:00", 30)

	got, err := f.svc.CancelOrNoShow(ctx, lead.ID, model.VisitStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.VisitStatusCancelled, got.Visit())
	assert.Equal(t, model.LeadStatusBooked, got.Status)
	assert.NotNil(t, got.AppointmentDate)

	assert.Equal(t, []string{"10:00"}, f.occupied(t, "Dr. Sarah"))
	_, err = f.svc.CreateBooking(ctx, &model.CreateBookingRequest{
		Name: "N", Phone: "P", Doctor: "Dr. Sarah", Date: testDate, Time: "10:00",
	})
	assertCode(t, err, apperrors.ErrConflict)

	events := f.events(t)
	assert.Equal(t, model.EventBookingCancelled, events[len(events)-1].EventType)
}

func TestVacateOnCancel(t *testing.T) {
	f := newFixture(t, Config{EnforceNoOverlap: true, VacateOnCancel: true})
	ctx := context.Background()
	lead := f.book(t, "Dr. Sarah", "10:00", 30)

	got, err := f.svc.CancelOrNoShow(ctx, lead.ID, model.VisitStatusNoShow)
	require.NoError(t, err)
	assert.Nil(t, got.AppointmentDate)
	assert.Nil(t, got.AppointmentTime)
	assert.Empty(t, f.occupied(t, "Dr. Sarah"))

	events := f.events(t)
	assert.Equal(t, model.EventBookingNoShow, events[len(events)-1].EventType)

	// a vacated booking can be put back on the board
	back, err := f.svc.Reschedule(ctx, lead.ID, &model.RescheduleRequest{Date: testDate, Time: "16:00"})
	require.NoError(t, err)
	assert.Equal(t, model.VisitStatusScheduled, back.Visit())
}

func TestCancelRejectsOtherStatuses(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	lead := f.book(t, "Dr. Sarah", "10:00", 30)

	_, err := f.svc.CancelOrNoShow(context.Background(), lead.ID, model.VisitStatusArrived)
	assertCode(t, err, apperrors.ErrBadRequest)
	assert.ErrorIs(t, err, ErrInvalidVisitStatus)
}

func TestSetVisitStatus(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	lead := f.book(t, "Dr. Sarah", "10:00", 30)

	for _, status := range []model.VisitStatus{model.VisitStatusArrived, model.VisitStatusInChair, model.VisitStatusCompleted} {
		got, err := f.svc.SetVisitStatus(ctx, lead.ID, status)
		require.NoError(t, err)
		assert.Equal(t, status, got.Visit())
	}
	assert.Equal(t, []string{"10:00"}, f.occupied(t, "Dr. Sarah"))

	_, err := f.svc.SetVisitStatus(ctx, lead.ID, model.VisitStatus("ON_HOLD"))
	assertCode(t, err, apperrors.ErrBadRequest)

	got, err := f.svc.SetVisitStatus(ctx, lead.ID, model.VisitStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.VisitStatusCancelled, got.Visit())

	events := f.events(t)
	assert.Equal(t, model.EventBookingVisitStatus, events[1].EventType)
	assert.Equal(t, model.EventBookingCancelled, events[len(events)-1].EventType)
}

func TestAvailability(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	lead := f.book(t, "Dr. Sarah", "10:00", 60)

	slots, err := f.svc.Availability(ctx, "Dr. Sarah", testDate, 60, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, slots, 24)

	byTime := make(map[string]schedule.SlotStatus)
	for _, s := range slots {
		byTime[s.Time] = s
	}
	assert.False(t, byTime["09:30"].Available)
	assert.False(t, byTime["10:00"].Available)
	assert.False(t, byTime["10:30"].Available)
	assert.True(t, byTime["11:00"].Available)
	assert.Equal(t, schedule.ReasonPastEndOfDay, byTime["20:30"].Reason)

	slots, err = f.svc.Availability(ctx, "Dr. Sarah", testDate, 60, lead.ID)
	require.NoError(t, err)
	assert.True(t, slots[2].Available, "own slot is free when excluded")

	_, err = f.svc.Availability(ctx, "Dr. Who", testDate, 30, uuid.Nil)
	assertCode(t, err, apperrors.ErrNotFound)
	_, err = f.svc.Availability(ctx, "Dr. Sarah", testDate, 45, uuid.Nil)
	assertCode(t, err, apperrors.ErrBadRequest)
	_, err = f.svc.Availability(ctx, "Dr. Sarah", "tomorrow", 30, uuid.Nil)
	assertCode(t, err, apperrors.ErrBadRequest)
}

func TestAvailabilityInactiveDoctor(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	ali, err := f.doctors.GetByName(ctx, "Dr. Ali")
	require.NoError(t, err)
	ali.Active = false
	require.NoError(t, f.doctors.Update(ctx, ali))

	_, err = f.svc.Availability(ctx, "Dr. Ali", testDate, 30, uuid.Nil)
	assertCode(t, err, apperrors.ErrUnprocessable)
	assert.ErrorIs(t, err, ErrDoctorInactive)
}

func TestRejectionMessageIsNotRepeated(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.book(t, "Dr. Sarah", "10:00", 30)

	_, err := f.svc.CreateBooking(context.Background(), &model.CreateBookingRequest{
		Name: "N", Phone: "P", Doctor: "Dr. Sarah", Date: testDate, Time: "10:00",
	})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "slot unavailable", appErr.Message)
	assert.Equal(t, 1, strings.Count(err.Error(), ErrSlotOccupied.Error()))
}

// depositFailingLeads refuses every write that carries a payment. When
// partial is set the lead row is stored before the error is returned.
type depositFailingLeads struct {
	repository.LeadRepository
	partial bool
}

func (r *depositFailingLeads) UpdateWithPayment(ctx context.Context, lead *model.Lead, payment *model.Payment) error {
	if payment == nil {
		return r.LeadRepository.UpdateWithPayment(ctx, lead, nil)
	}
	if r.partial {
		if err := r.LeadRepository.Update(ctx, lead); err != nil {
			return err
		}
	}
	return errors.New("db down")
}

func (r *depositFailingLeads) AddPayment(ctx context.Context, payment *model.Payment) error {
	return errors.New("db down")
}

func pipelineLead(t *testing.T, leads repository.LeadRepository) *model.Lead {
	t.Helper()
	lead := &model.Lead{Name: "Omar", Phone: "+968 9222 3333", Status: model.LeadStatusContacted, PotentialValue: 200}
	require.NoError(t, leads.Create(context.Background(), lead))
	return lead
}

func bookedAt(t *testing.T, leads repository.LeadRepository, doctor, at string) int {
	t.Helper()
	all, err := leads.List(context.Background(), &model.LeadFilters{Status: model.LeadStatusBooked, Doctor: doctor})
	require.NoError(t, err)
	n := 0
	for _, l := range all {
		if l.Time() == at {
			n++
		}
	}
	return n
}

func TestConfirmBookingDepositFailureLeavesLeadUntouched(t *testing.T) {
	leads := &depositFailingLeads{LeadRepository: memory.NewLeadRepository()}
	f := newFixtureWithLeads(t, DefaultConfig(), leads)
	ctx := context.Background()
	pipeline := pipelineLead(t, leads)

	// warm the cached occupancy for the day
	_, err := f.svc.Availability(ctx, "Dr. Sarah", testDate, 30, uuid.Nil)
	require.NoError(t, err)

	_, err = f.svc.ConfirmBooking(ctx, pipeline.ID, &model.ConfirmBookingRequest{
		Doctor: "Dr. Sarah", Date: testDate, Time: "10:00", Deposit: 40,
	})
	require.Error(t, err)

	stored, err := leads.Get(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusContacted, stored.Status)
	assert.Empty(t, stored.Time())
	assert.Empty(t, stored.Payments)
	assert.Empty(t, f.events(t))

	f.book(t, "Dr. Sarah", "10:00", 30)
	assert.Equal(t, 1, bookedAt(t, leads, "Dr. Sarah", "10:00"))
}

func TestConfirmBookingFailedWriteDropsCachedOccupancy(t *testing.T) {
	leads := &depositFailingLeads{LeadRepository: memory.NewLeadRepository(), partial: true}
	f := newFixtureWithLeads(t, DefaultConfig(), leads)
	ctx := context.Background()
	pipeline := pipelineLead(t, leads)

	assert.Empty(t, f.occupied(t, "Dr. Sarah"))

	_, err := f.svc.ConfirmBooking(ctx, pipeline.ID, &model.ConfirmBookingRequest{
		Doctor: "Dr. Sarah", Date: testDate, Time: "10:00", Deposit: 40,
	})
	require.Error(t, err)

	_, err = f.svc.CreateBooking(ctx, &model.CreateBookingRequest{
		Name: "Walk-in", Phone: "P", Doctor: "Dr. Sarah", Date: testDate, Time: "10:00",
	})
	assertCode(t, err, apperrors.ErrConflict)
	assert.Equal(t, 1, bookedAt(t, leads, "Dr. Sarah", "10:00"))
}

func TestGetBooking(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	lead := f.book(t, "Dr. Sarah", "10:00", 30)

	got, err := f.svc.GetBooking(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)

	_, err = f.svc.GetBooking(context.Background(), uuid.New())
	assertCode(t, err, apperrors.ErrNotFound)
}

func TestConcurrentCreatesNeverOverlap(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateBooking(ctx, &model.CreateBookingRequest{
				Name: "N", Phone: "P", Doctor: "Dr. Sarah", Date: testDate, Time: "10:00", Duration: 60,
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, []string{"10:00", "10:30"}, f.occupied(t, "Dr. Sarah"))
}

// Package calendar builds the read-only schedule projections (day board, day
// list, week grid, timeline strip and front-desk queue) straight from the
// lead store. It keeps no state of its own.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
	"github.com/jwalitptl/chairside-api/internal/service/schedule"
	"github.com/jwalitptl/chairside-api/pkg/logger"
	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

// TimelineRadius is how many days either side of the selected day the
// timeline strip shows.
const TimelineRadius = 4

type Service struct {
	leads    repository.LeadRepository
	doctors  repository.DoctorRepository
	settings repository.SettingsRepository
	loc      *time.Location
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(
	leads repository.LeadRepository,
	doctors repository.DoctorRepository,
	settings repository.SettingsRepository,
	loc *time.Location,
	logger *logger.Logger,
) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		leads:    leads,
		doctors:  doctors,
		settings: settings,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// Location is the clinic zone days are normalized in.
func (s *Service) Location() *time.Location { return s.loc }

// Today is the current clinic day.
func (s *Service) Today() time.Time {
	return timegrid.Day(s.now(), s.loc)
}

func (s *Service) window(ctx context.Context) (timegrid.Window, *model.ClinicSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return timegrid.Window{}, nil, fmt.Errorf("failed to get clinic settings: %w", err)
	}
	w, err := timegrid.NewWindow(settings.StartHour, settings.EndHour)
	if err != nil {
		return timegrid.Window{}, nil, fmt.Errorf("invalid clinic hours: %w", err)
	}
	return w, settings, nil
}

// Slots lists the grid ticks for the current clinic hours.
func (s *Service) Slots(ctx context.Context) ([]string, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic settings: %w", err)
	}
	return timegrid.GenerateSlots(settings.StartHour, settings.EndHour)
}

// booked returns the scheduled leads with an appointment in [from, to).
func (s *Service) booked(ctx context.Context, from, to time.Time) ([]*model.Lead, error) {
	leads, err := s.leads.List(ctx, &model.LeadFilters{
		Status:    model.LeadStatusBooked,
		DateRange: &model.DateRange{Start: from, End: to},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	scheduled := leads[:0]
	for _, lead := range leads {
		if lead.IsScheduled() {
			scheduled = append(scheduled, lead)
		}
	}
	return scheduled, nil
}

func (s *Service) collection(ctx context.Context, day time.Time) (Collection, error) {
	payments, err := s.leads.PaymentsBetween(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return Collection{}, fmt.Errorf("failed to list payments: %w", err)
	}
	var c Collection
	for _, p := range payments {
		switch p.Method {
		case model.PaymentMethodCash:
			c.Cash += p.Amount
		case model.PaymentMethodTransfer:
			c.Transfer += p.Amount
		default:
			c.Other += p.Amount
		}
		c.Total += p.Amount
	}
	return c, nil
}

// currentTick is the tick the clinic clock is in when day is today, else -1.
func (s *Service) currentTick(day time.Time) int {
	now := s.now().In(s.loc)
	if !timegrid.SameDay(day, now) {
		return -1
	}
	m := now.Hour()*60 + now.Minute()
	return m / timegrid.SlotMinutes * timegrid.SlotMinutes
}

// DayBoard lays out day as one swim-lane per active doctor.
func (s *Service) DayBoard(ctx context.Context, day time.Time) (*DayBoard, error) {
	day = timegrid.Day(day, s.loc)
	w, _, err := s.window(ctx)
	if err != nil {
		return nil, err
	}
	doctors, err := s.doctors.List(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	leads, err := s.booked(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	collection, err := s.collection(ctx, day)
	if err != nil {
		return nil, err
	}

	// per doctor: the lead starting at each tick, and the ticks its bookings
	// occupy as the booking service sees them
	starts := make(map[string]map[int]*model.Lead, len(doctors))
	occupied := make(map[string]schedule.Occupancy, len(doctors))
	for _, d := range doctors {
		starts[d.Name] = make(map[int]*model.Lead)
		occupied[d.Name] = schedule.OccupiedMinutes(d.Name, day, leads, uuid.Nil)
	}
	for _, lead := range leads {
		lane, ok := starts[lead.Doctor()]
		if !ok {
			continue
		}
		start, err := timegrid.TimeToMinutes(lead.Time())
		if err != nil {
			s.logger.Warn("skipping booking with malformed time", "lead_id", lead.ID.String(), "time", lead.Time())
			continue
		}
		if _, taken := lane[start]; !taken {
			lane[start] = lead
		}
	}

	date := day.Format(timegrid.DateLayout)
	current := s.currentTick(day)
	board := &DayBoard{
		Date:       date,
		Doctors:    make([]DoctorColumn, 0, len(doctors)),
		Collection: collection,
	}
	for _, d := range doctors {
		board.Doctors = append(board.Doctors, DoctorColumn{Name: d.Name, Color: d.Color})
	}
	for _, t := range w.Slots() {
		m := timegrid.MustMinutes(t)
		row := BoardRow{Time: t, Current: m == current, Cells: make([]BoardCell, 0, len(doctors))}
		for _, d := range doctors {
			cell := BoardCell{Doctor: d.Name}
			occ := occupied[d.Name]
			switch {
			case starts[d.Name][m] != nil:
				lead := starts[d.Name][m]
				cell.State = CellBooked
				cell.Lead = newCard(lead)
				cell.Span = timegrid.TickCount(lead.Duration)
			case occ.Has(m):
				cell.State = CellCovered
			default:
				cell.State = CellEmpty
				if schedule.Check(w, m, timegrid.DefaultDuration, occ) == nil {
					cell.Prefill = &Prefill{Date: date, Time: t, Doctor: d.Name}
				}
			}
			row.Cells = append(row.Cells, cell)
		}
		board.Rows = append(board.Rows, row)
	}
	return board, nil
}

// DayList flattens day into time-keyed rows across all doctors.
func (s *Service) DayList(ctx context.Context, day time.Time) (*DayList, error) {
	day = timegrid.Day(day, s.loc)
	w, _, err := s.window(ctx)
	if err != nil {
		return nil, err
	}
	leads, err := s.booked(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	collection, err := s.collection(ctx, day)
	if err != nil {
		return nil, err
	}

	byTime := make(map[string][]*model.Lead)
	for _, lead := range leads {
		byTime[lead.Time()] = append(byTime[lead.Time()], lead)
	}

	date := day.Format(timegrid.DateLayout)
	current := s.currentTick(day)
	list := &DayList{Date: date, Rows: []ListRow{}, Collection: collection}
	for _, t := range w.Slots() {
		isCurrent := timegrid.MustMinutes(t) == current
		group := byTime[t]
		if len(group) == 0 {
			list.Rows = append(list.Rows, ListRow{
				Time:     t,
				ShowTime: true,
				Current:  isCurrent,
				Prefill:  &Prefill{Date: date, Time: t},
			})
			continue
		}
		for i, lead := range group {
			paid := lead.TotalPaid()
			list.Rows = append(list.Rows, ListRow{
				Time:      t,
				ShowTime:  i == 0,
				Current:   isCurrent,
				Lead:      newCard(lead),
				Paid:      paid,
				Remaining: lead.PriceQuoted - paid,
			})
		}
	}
	return list, nil
}

// WeekGrid lays out the Sunday-start week containing day. Bookings that start
// on the same tick stack in one cell regardless of doctor.
func (s *Service) WeekGrid(ctx context.Context, day time.Time) (*WeekGrid, error) {
	start := timegrid.WeekStart(timegrid.Day(day, s.loc))
	w, _, err := s.window(ctx)
	if err != nil {
		return nil, err
	}
	leads, err := s.booked(ctx, start, start.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}

	type key struct {
		date string
		time string
	}
	cells := make(map[key][]WeekEntry)
	for _, lead := range leads {
		k := key{date: lead.AppointmentDate.In(s.loc).Format(timegrid.DateLayout), time: lead.Time()}
		cells[k] = append(cells[k], WeekEntry{Card: *newCard(lead), HeightTicks: timegrid.TickCount(lead.Duration)})
	}

	today := s.Today()
	grid := &WeekGrid{Start: start.Format(timegrid.DateLayout)}
	dates := make([]string, 7)
	for i := range dates {
		d := start.AddDate(0, 0, i)
		dates[i] = d.Format(timegrid.DateLayout)
		grid.Days = append(grid.Days, WeekDay{
			Date:    dates[i],
			Weekday: d.Weekday().String()[:3],
			Today:   timegrid.SameDay(d, today),
		})
	}
	for _, t := range w.Slots() {
		row := WeekRow{Time: t, Cells: make([]WeekCell, 0, 7)}
		for _, date := range dates {
			cell := WeekCell{Date: date, Entries: cells[key{date: date, time: t}]}
			if len(cell.Entries) == 0 {
				cell.Entries = []WeekEntry{}
				cell.Prefill = &Prefill{Date: date, Time: t}
			}
			row.Cells = append(row.Cells, cell)
		}
		grid.Rows = append(grid.Rows, row)
	}
	return grid, nil
}

// Timeline summarizes the days around day: takings for days already past,
// booking counts for today onward.
func (s *Service) Timeline(ctx context.Context, day time.Time) ([]TimelineDay, error) {
	day = timegrid.Day(day, s.loc)
	from := day.AddDate(0, 0, -TimelineRadius)
	to := day.AddDate(0, 0, TimelineRadius+1)

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic settings: %w", err)
	}
	payments, err := s.leads.PaymentsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	leads, err := s.leads.List(ctx, &model.LeadFilters{
		Status:    model.LeadStatusBooked,
		DateRange: &model.DateRange{Start: from, End: to},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	revenue := make(map[string]float64)
	for _, p := range payments {
		revenue[p.Date.In(s.loc).Format(timegrid.DateLayout)] += p.Amount
	}
	bookings := make(map[string]int)
	for _, lead := range leads {
		if lead.AppointmentDate != nil {
			bookings[lead.AppointmentDate.In(s.loc).Format(timegrid.DateLayout)]++
		}
	}

	today := s.Today()
	days := make([]TimelineDay, 0, 2*TimelineRadius+1)
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		date := d.Format(timegrid.DateLayout)
		entry := TimelineDay{
			Date:     date,
			Weekday:  d.Weekday().String()[:3],
			Selected: d.Equal(day),
		}
		if d.Before(today) {
			entry.Kind = StatRevenue
			entry.Revenue = revenue[date]
			entry.Currency = settings.Currency
		} else {
			entry.Kind = StatBookings
			entry.Bookings = bookings[date]
		}
		days = append(days, entry)
	}
	return days, nil
}

// Queue is the front-desk view of today: who is waiting and who is next.
func (s *Service) Queue(ctx context.Context) (*Queue, error) {
	now := s.now().In(s.loc)
	today := timegrid.Day(now, s.loc)
	leads, err := s.booked(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].Time() < leads[j].Time()
	})

	q := &Queue{Date: today.Format(timegrid.DateLayout), Waiting: []Card{}}
	minutes := now.Hour()*60 + now.Minute()
	for _, lead := range leads {
		switch lead.Visit() {
		case model.VisitStatusArrived:
			q.Waiting = append(q.Waiting, *newCard(lead))
		case model.VisitStatusScheduled:
			if q.Next != nil {
				continue
			}
			start, err := timegrid.TimeToMinutes(lead.Time())
			if err != nil || start < minutes {
				continue
			}
			q.Next = newCard(lead)
			q.MinutesUntil = start - minutes
		}
	}
	return q, nil
}

// Package memory holds process-local repositories used by default and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
)

type leadRepository struct {
	mu    sync.RWMutex
	leads map[uuid.UUID]*model.Lead
}

func NewLeadRepository() repository.LeadRepository {
	return &leadRepository{leads: make(map[uuid.UUID]*model.Lead)}
}

func (r *leadRepository) Create(ctx context.Context, lead *model.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	now := time.Now()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	for i := range lead.Payments {
		if lead.Payments[i].ID == uuid.Nil {
			lead.Payments[i].ID = uuid.New()
		}
		lead.Payments[i].LeadID = lead.ID
	}
	for i := range lead.Notes {
		if lead.Notes[i].ID == uuid.Nil {
			lead.Notes[i].ID = uuid.New()
		}
		lead.Notes[i].LeadID = lead.ID
	}
	r.leads[lead.ID] = lead.Clone()
	return nil
}

func (r *leadRepository) Get(ctx context.Context, id uuid.UUID) (*model.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return lead.Clone(), nil
}

func (r *leadRepository) Update(ctx context.Context, lead *model.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(lead, nil)
}

func (r *leadRepository) UpdateWithPayment(ctx context.Context, lead *model.Lead, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.update(lead, payment)
}

func (r *leadRepository) update(lead *model.Lead, payment *model.Payment) error {
	existing, ok := r.leads[lead.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := lead.Clone()
	updated.CreatedAt = existing.CreatedAt
	updated.Payments = existing.Payments
	updated.Notes = existing.Notes
	if payment != nil {
		if payment.ID == uuid.Nil {
			payment.ID = uuid.New()
		}
		payment.LeadID = lead.ID
		updated.Payments = append(append([]model.Payment(nil), existing.Payments...), *payment)
	}
	updated.UpdatedAt = time.Now()
	r.leads[lead.ID] = updated
	lead.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *leadRepository) List(ctx context.Context, filters *model.LeadFilters) ([]*model.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	leads := make([]*model.Lead, 0, len(r.leads))
	for _, lead := range r.leads {
		if matches(lead, filters) {
			leads = append(leads, lead.Clone())
		}
	}
	sortLeads(leads)
	return leads, nil
}

func matches(lead *model.Lead, f *model.LeadFilters) bool {
	if f == nil {
		return true
	}
	if f.Status != "" && lead.Status != f.Status {
		return false
	}
	if f.Doctor != "" && lead.Doctor() != f.Doctor {
		return false
	}
	if f.DateRange != nil {
		if lead.AppointmentDate == nil {
			return false
		}
		d := *lead.AppointmentDate
		if d.Before(f.DateRange.Start) || !d.Before(f.DateRange.End) {
			return false
		}
	}
	return true
}

// sortLeads orders by appointment then creation, matching the SQL ORDER BY.
func sortLeads(leads []*model.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		a, b := leads[i], leads[j]
		switch {
		case a.AppointmentDate == nil && b.AppointmentDate != nil:
			return false
		case a.AppointmentDate != nil && b.AppointmentDate == nil:
			return true
		case a.AppointmentDate != nil && !a.AppointmentDate.Equal(*b.AppointmentDate):
			return a.AppointmentDate.Before(*b.AppointmentDate)
		}
		if a.Time() != b.Time() {
			return a.Time() < b.Time()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

func (r *leadRepository) AddPayment(ctx context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[payment.LeadID]
	if !ok {
		return repository.ErrNotFound
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	lead.Payments = append(lead.Payments, *payment)
	return nil
}

func (r *leadRepository) AddNote(ctx context.Context, note *model.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lead, ok := r.leads[note.LeadID]
	if !ok {
		return repository.ErrNotFound
	}
	if note.ID == uuid.Nil {
		note.ID = uuid.New()
	}
	lead.Notes = append(lead.Notes, *note)
	return nil
}

func (r *leadRepository) PaymentsBetween(ctx context.Context, from, to time.Time) ([]model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var payments []model.Payment
	for _, lead := range r.leads {
		for _, p := range lead.Payments {
			if !p.Date.Before(from) && p.Date.Before(to) {
				payments = append(payments, p)
			}
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].Date.Before(payments[j].Date) })
	return payments, nil
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
)

type doctorRepository struct {
	mu      sync.RWMutex
	doctors map[uuid.UUID]*model.Doctor
	order   []uuid.UUID
}

// NewDoctorRepository returns a repository seeded with the given doctors.
func NewDoctorRepository(seed ...*model.Doctor) repository.DoctorRepository {
	r := &doctorRepository{doctors: make(map[uuid.UUID]*model.Doctor)}
	for _, d := range seed {
		_ = r.Create(context.Background(), d)
	}
	return r
}

// DefaultDoctors builds the stock roster of a fresh clinic.
func DefaultDoctors() []*model.Doctor {
	doctors := make([]*model.Doctor, 0, len(model.DefaultDoctorNames))
	for _, d := range model.DefaultDoctorNames {
		doctors = append(doctors, &model.Doctor{Name: d.Name, Color: d.Color, Active: true})
	}
	return doctors
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	now := time.Now()
	doctor.CreatedAt, doctor.UpdatedAt = now, now
	cp := *doctor
	if _, exists := r.doctors[doctor.ID]; !exists {
		r.order = append(r.order, doctor.ID)
	}
	r.doctors[doctor.ID] = &cp
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *doctorRepository) GetByName(ctx context.Context, name string) (*model.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if d := r.doctors[id]; d.Name == name {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.doctors[doctor.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *doctor
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	r.doctors[doctor.ID] = &cp
	return nil
}

func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doctors[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.doctors, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// List keeps insertion order so swim-lanes stay stable.
func (r *doctorRepository) List(ctx context.Context, activeOnly bool) ([]*model.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doctors := make([]*model.Doctor, 0, len(r.order))
	for _, id := range r.order {
		d := r.doctors[id]
		if activeOnly && !d.Active {
			continue
		}
		cp := *d
		doctors = append(doctors, &cp)
	}
	return doctors, nil
}

type settingsRepository struct {
	mu       sync.RWMutex
	settings model.ClinicSettings
}

func NewSettingsRepository(initial model.ClinicSettings) repository.SettingsRepository {
	return &settingsRepository{settings: initial}
}

func (r *settingsRepository) Get(ctx context.Context) (*model.ClinicSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := r.settings
	return &cp, nil
}

func (r *settingsRepository) Update(ctx context.Context, settings *model.ClinicSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	settings.UpdatedAt = time.Now()
	r.settings = *settings
	return nil
}

type outboxRepository struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
	limit  int
	now    func() time.Time
}

func NewOutboxRepository() repository.OutboxRepository {
	return &outboxRepository{now: time.Now}
}

// NewBoundedOutboxRepository keeps at most limit events. Once full, the
// oldest relayed or failed events go first, then the oldest pending ones.
func NewBoundedOutboxRepository(limit int) repository.OutboxRepository {
	return &outboxRepository{limit: limit, now: time.Now}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.ID = uuid.New()
	event.CreatedAt = r.now()
	event.UpdatedAt = event.CreatedAt
	event.Status = model.OutboxStatusPending
	cp := *event
	r.events = append(r.events, &cp)
	r.evict()
	return nil
}

func (r *outboxRepository) evict() {
	if r.limit <= 0 || len(r.events) <= r.limit {
		return
	}
	excess := len(r.events) - r.limit
	kept := make([]*model.OutboxEvent, 0, r.limit)
	for _, e := range r.events {
		if excess > 0 && (e.Status == model.OutboxStatusProcessed || e.Status == model.OutboxStatusFailed) {
			excess--
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept[excess:]
}

func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var events []*model.OutboxEvent
	for _, e := range r.events {
		if len(events) >= limit {
			break
		}
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		cp := *e
		events = append(events, &cp)
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.events {
		if e.ID != id {
			continue
		}
		now := r.now()
		e.Status = status
		e.ErrorMessage = errorMessage
		e.RetryAt = retryAt
		e.UpdatedAt = now
		if status == model.OutboxStatusRetry {
			e.RetryCount++
		}
		if status == model.OutboxStatusProcessed {
			e.ProcessedAt = &now
		}
		return nil
	}
	return repository.ErrNotFound
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0]
	var deleted int64
	for _, e := range r.events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}

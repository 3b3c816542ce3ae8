package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/chairside-api/internal/model"
)

// ErrNotFound is returned by every implementation for a missing record.
var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file
type (
	// LeadRepository stores leads together with their payments and notes.
	LeadRepository interface {
		Create(ctx context.Context, lead *model.Lead) error
		Get(ctx context.Context, id uuid.UUID) (*model.Lead, error)
		// Update writes the lead's own fields; payments and notes are append-only.
		Update(ctx context.Context, lead *model.Lead) error
		// UpdateWithPayment is Update plus one appended payment, applied
		// together or not at all. A nil payment is a plain Update.
		UpdateWithPayment(ctx context.Context, lead *model.Lead, payment *model.Payment) error
		List(ctx context.Context, filters *model.LeadFilters) ([]*model.Lead, error)
		AddPayment(ctx context.Context, payment *model.Payment) error
		AddNote(ctx context.Context, note *model.Note) error
		PaymentsBetween(ctx context.Context, from, to time.Time) ([]model.Payment, error)
	}

	DoctorRepository interface {
		Create(ctx context.Context, doctor *model.Doctor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error)
		GetByName(ctx context.Context, name string) (*model.Doctor, error)
		Update(ctx context.Context, doctor *model.Doctor) error
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context, activeOnly bool) ([]*model.Doctor, error)
	}

	SettingsRepository interface {
		Get(ctx context.Context) (*model.ClinicSettings, error)
		Update(ctx context.Context, settings *model.ClinicSettings) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
)

type doctorRepository struct {
	db *sqlx.DB
}

func NewDoctorRepository(db *sqlx.DB) repository.DoctorRepository {
	return &doctorRepository{db: db}
}

func (r *doctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	if doctor.ID == uuid.Nil {
		doctor.ID = uuid.New()
	}
	doctor.CreatedAt = time.Now()
	doctor.UpdatedAt = doctor.CreatedAt

	query := `
		INSERT INTO doctors (id, name, color, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		doctor.ID, doctor.Name, doctor.Color, doctor.Active, doctor.CreatedAt, doctor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

func (r *doctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, `SELECT id, name, color, active, created_at, updated_at FROM doctors WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &doctor, nil
}

func (r *doctorRepository) GetByName(ctx context.Context, name string) (*model.Doctor, error) {
	var doctor model.Doctor
	err := r.db.GetContext(ctx, &doctor, `SELECT id, name, color, active, created_at, updated_at FROM doctors WHERE name = $1`, name)
	if err != nil {
		return nil, notFound(err)
	}
	return &doctor, nil
}

func (r *doctorRepository) Update(ctx context.Context, doctor *model.Doctor) error {
	doctor.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx,
		`UPDATE doctors SET name = $1, color = $2, active = $3, updated_at = $4 WHERE id = $5`,
		doctor.Name, doctor.Color, doctor.Active, doctor.UpdatedAt, doctor.ID)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *doctorRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *doctorRepository) List(ctx context.Context, activeOnly bool) ([]*model.Doctor, error) {
	query := `SELECT id, name, color, active, created_at, updated_at FROM doctors`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at ASC, name ASC`

	var doctors []*model.Doctor
	if err := r.db.SelectContext(ctx, &doctors, query); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

type settingsRepository struct {
	db       *sqlx.DB
	defaults model.ClinicSettings
}

// NewSettingsRepository returns defaults until the first Update.
func NewSettingsRepository(db *sqlx.DB, defaults model.ClinicSettings) repository.SettingsRepository {
	return &settingsRepository{db: db, defaults: defaults}
}

func (r *settingsRepository) Get(ctx context.Context) (*model.ClinicSettings, error) {
	var settings model.ClinicSettings
	err := r.db.GetContext(ctx, &settings, `
		SELECT clinic_name, currency, start_hour, end_hour, commission_rate, updated_at
		FROM clinic_settings WHERE id = 1
	`)
	if err != nil {
		if notFound(err) == repository.ErrNotFound {
			cp := r.defaults
			return &cp, nil
		}
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

func (r *settingsRepository) Update(ctx context.Context, settings *model.ClinicSettings) error {
	settings.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clinic_settings (id, clinic_name, currency, start_hour, end_hour, commission_rate, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			clinic_name = EXCLUDED.clinic_name,
			currency = EXCLUDED.currency,
			start_hour = EXCLUDED.start_hour,
			end_hour = EXCLUDED.end_hour,
			commission_rate = EXCLUDED.commission_rate,
			updated_at = EXCLUDED.updated_at
	`, settings.ClinicName, settings.Currency, settings.StartHour, settings.EndHour,
		settings.CommissionRate, settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// Package clinic manages the doctor roster and clinic settings the scheduling
// engine reads.
package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
	apperrors "github.com/jwalitptl/chairside-api/pkg/errors"
	"github.com/jwalitptl/chairside-api/pkg/logger"
	"github.com/jwalitptl/chairside-api/pkg/timegrid"
)

const defaultColor = "blue"

var (
	ErrDoctorExists   = errors.New("doctor already exists")
	ErrDoctorNotFound = errors.New("doctor not found")
	ErrInvalidHours   = errors.New("clinic hours must be HH:MM on the half hour with start before end")
)

type ClinicServicer interface {
	CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error)
	ListDoctors(ctx context.Context, activeOnly bool) ([]*model.Doctor, error)
	SetDoctorActive(ctx context.Context, id uuid.UUID, active bool) (*model.Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
	GetSettings(ctx context.Context) (*model.ClinicSettings, error)
	UpdateSettings(ctx context.Context, req *model.UpdateSettingsRequest) (*model.ClinicSettings, error)
}

type Service struct {
	doctors  repository.DoctorRepository
	settings repository.SettingsRepository
	leads    repository.LeadRepository
	logger   *logger.Logger
}

func NewService(
	doctors repository.DoctorRepository,
	settings repository.SettingsRepository,
	leads repository.LeadRepository,
	logger *logger.Logger,
) *Service {
	return &Service{
		doctors:  doctors,
		settings: settings,
		leads:    leads,
		logger:   logger,
	}
}

func (s *Service) CreateDoctor(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("doctor name is required", nil)
	}
	if _, err := s.doctors.GetByName(ctx, name); err == nil {
		return nil, apperrors.NewConflict(fmt.Sprintf("doctor %q already exists", name), ErrDoctorExists)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}

	color := req.Color
	if color == "" {
		color = defaultColor
	}
	now := time.Now()
	doctor := &model.Doctor{
		Base:   model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:   name,
		Color:  color,
		Active: true,
	}
	if err := s.doctors.Create(ctx, doctor); err != nil {
		return nil, fmt.Errorf("failed to create doctor: %w", err)
	}
	s.logger.Info("doctor created", "doctor_id", doctor.ID.String(), "name", name)
	return doctor, nil
}

func (s *Service) ListDoctors(ctx context.Context, activeOnly bool) ([]*model.Doctor, error) {
	doctors, err := s.doctors.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	return doctors, nil
}

func (s *Service) getDoctor(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, err := s.doctors.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("doctor", ErrDoctorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return doctor, nil
}

// SetDoctorActive hides or restores a doctor's swim-lane. Existing bookings
// are untouched; inactive doctors cannot take new ones.
func (s *Service) SetDoctorActive(ctx context.Context, id uuid.UUID, active bool) (*model.Doctor, error) {
	doctor, err := s.getDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	doctor.Active = active
	doctor.UpdatedAt = time.Now()
	if err := s.doctors.Update(ctx, doctor); err != nil {
		return nil, fmt.Errorf("failed to update doctor: %w", err)
	}
	s.logger.Info("doctor updated", "doctor_id", id.String(), "active", active)
	return doctor, nil
}

// DeleteDoctor removes a doctor. A doctor that still has bookings is only
// deactivated so those bookings keep resolving to a roster entry.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	doctor, err := s.getDoctor(ctx, id)
	if err != nil {
		return err
	}
	booked, err := s.leads.List(ctx, &model.LeadFilters{Status: model.LeadStatusBooked, Doctor: doctor.Name})
	if err != nil {
		return fmt.Errorf("failed to list bookings: %w", err)
	}
	if len(booked) > 0 {
		if _, err := s.SetDoctorActive(ctx, id, false); err != nil {
			return err
		}
		s.logger.Info("doctor has bookings, deactivated instead of deleted",
			"doctor_id", id.String(), "bookings", len(booked))
		return nil
	}
	if err := s.doctors.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	s.logger.Info("doctor deleted", "doctor_id", id.String(), "name", doctor.Name)
	return nil
}

func (s *Service) GetSettings(ctx context.Context) (*model.ClinicSettings, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings applies the non-nil fields of req.
func (s *Service) UpdateSettings(ctx context.Context, req *model.UpdateSettingsRequest) (*model.ClinicSettings, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if req.ClinicName != nil {
		settings.ClinicName = strings.TrimSpace(*req.ClinicName)
	}
	if req.Currency != nil {
		settings.Currency = strings.ToUpper(*req.Currency)
	}
	if req.StartHour != nil {
		settings.StartHour = *req.StartHour
	}
	if req.EndHour != nil {
		settings.EndHour = *req.EndHour
	}
	if req.CommissionRate != nil {
		settings.CommissionRate = *req.CommissionRate
	}
	if err := ValidateHours(settings.StartHour, settings.EndHour); err != nil {
		return nil, apperrors.NewBadRequest("invalid clinic hours", err)
	}

	settings.UpdatedAt = time.Now()
	if err := s.settings.Update(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update clinic settings: %w", err)
	}
	s.logger.Info("clinic settings updated",
		"start_hour", settings.StartHour, "end_hour", settings.EndHour)
	return settings, nil
}

// ValidateHours checks a pair of opening hours.
func ValidateHours(start, end string) error {
	if !timegrid.ValidClock(start) || !timegrid.ValidClock(end) {
		return fmt.Errorf("%w: got %q and %q", ErrInvalidHours, start, end)
	}
	from, to := timegrid.MustMinutes(start), timegrid.MustMinutes(end)
	if !timegrid.OnGrid(from) || !timegrid.OnGrid(to) || from >= to {
		return fmt.Errorf("%w: got %q and %q", ErrInvalidHours, start, end)
	}
	return nil
}

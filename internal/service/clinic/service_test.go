package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
	"github.com/jwalitptl/chairside-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/chairside-api/pkg/errors"
	"github.com/jwalitptl/chairside-api/pkg/logger"
)

func newTestService() (*Service, repository.LeadRepository) {
	leads := memory.NewLeadRepository()
	svc := NewService(
		memory.NewDoctorRepository(memory.DefaultDoctors()...),
		memory.NewSettingsRepository(model.DefaultClinicSettings()),
		leads,
		logger.Nop(),
	)
	return svc, leads
}

func strPtr(s string) *string { return &s }

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	appErr, ok := apperrors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestCreateDoctor(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	doctor, err := svc.CreateDoctor(ctx, &model.CreateDoctorRequest{Name: "  Dr. Layla "})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Layla", doctor.Name)
	assert.Equal(t, "blue", doctor.Color)
	assert.True(t, doctor.Active)

	doctors, err := svc.ListDoctors(ctx, true)
	require.NoError(t, err)
	assert.Len(t, doctors, 4)

	_, err = svc.CreateDoctor(ctx, &model.CreateDoctorRequest{Name: "Dr. Sarah"})
	requireCode(t, err, apperrors.ErrConflict)

	_, err = svc.CreateDoctor(ctx, &model.CreateDoctorRequest{Name: " "})
	requireCode(t, err, apperrors.ErrBadRequest)
}

func TestSetDoctorActive(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	doctors, err := svc.ListDoctors(ctx, false)
	require.NoError(t, err)

	updated, err := svc.SetDoctorActive(ctx, doctors[0].ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	active, err := svc.ListDoctors(ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	_, err = svc.SetDoctorActive(ctx, uuid.New(), true)
	requireCode(t, err, apperrors.ErrNotFound)
}

func TestDeleteDoctor(t *testing.T) {
	svc, leads := newTestService()
	ctx := context.Background()
	doctors, err := svc.ListDoctors(ctx, false)
	require.NoError(t, err)
	sarah, ali := doctors[0], doctors[2]

	name, day, at := sarah.Name, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), "10:00"
	require.NoError(t, leads.Create(ctx, &model.Lead{
		Name: "P", Status: model.LeadStatusBooked,
		AssignedDoctor: &name, AppointmentDate: &day, AppointmentTime: &at,
	}))

	require.NoError(t, svc.DeleteDoctor(ctx, sarah.ID))
	all, err := svc.ListDoctors(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 3, "doctor with bookings is kept")
	assert.False(t, all[0].Active)

	require.NoError(t, svc.DeleteDoctor(ctx, ali.ID))
	all, err = svc.ListDoctors(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = svc.DeleteDoctor(ctx, ali.ID)
	requireCode(t, err, apperrors.ErrNotFound)
}

func TestUpdateSettings(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	settings, err := svc.UpdateSettings(ctx, &model.UpdateSettingsRequest{
		StartHour: strPtr("08:00"),
		Currency:  strPtr("aed"),
	})
	require.NoError(t, err)
	assert.Equal(t, "08:00", settings.StartHour)
	assert.Equal(t, "21:00", settings.EndHour)
	assert.Equal(t, "AED", settings.Currency)

	got, err := svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "08:00", got.StartHour)

	tests := []struct {
		name string
		req  model.UpdateSettingsRequest
	}{
		{"start after end", model.UpdateSettingsRequest{StartHour: strPtr("22:00")}},
		{"start equals end", model.UpdateSettingsRequest{StartHour: strPtr("21:00")}},
		{"malformed", model.UpdateSettingsRequest{EndHour: strPtr("9pm")}},
		{"impossible clock", model.UpdateSettingsRequest{EndHour: strPtr("25:00")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateSettings(ctx, &tt.req)
			requireCode(t, err, apperrors.ErrBadRequest)
			assert.ErrorIs(t, err, ErrInvalidHours)
		})
	}

	got, err = svc.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "08:00", got.StartHour, "rejected updates are not stored")
}

func TestValidateHours(t *testing.T) {
	assert.NoError(t, ValidateHours("09:00", "21:00"))
	assert.Error(t, ValidateHours("21:00", "09:00"))
	assert.Error(t, ValidateHours("9:00", "21:00"))
	assert.ErrorIs(t, ValidateHours("09:00", "20:45"), ErrInvalidHours)
	assert.ErrorIs(t, ValidateHours("08:15", "17:00"), ErrInvalidHours)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
clinic:
  start_hour: "08:00"
  end_hour: "14:00"
  timezone: UTC
scheduling:
  vacate_on_cancel: true
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "08:00", cfg.Clinic.StartHour)
	assert.Equal(t, "Muscat Dental Clinic", cfg.Clinic.Name)
	assert.True(t, cfg.Scheduling.EnforceNoOverlap)
	assert.True(t, cfg.Scheduling.VacateOnCancel)
	assert.Equal(t, 5*time.Minute, cfg.Scheduling.CacheTTL)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)

	loc, err := cfg.Clinic.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadConfigEnvOverlay(t *testing.T) {
	path := writeConfig(t, "database:\n  host: db.internal\n")
	t.Setenv("CHAIRSIDE_DB_HOST", "override.internal")
	t.Setenv("CHAIRSIDE_ENFORCE_NO_OVERLAP", "false")
	t.Setenv("CHAIRSIDE_PORT", "7000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.False(t, cfg.Scheduling.EnforceNoOverlap)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Contains(t, cfg.Database.DSN(), "host=override.internal")
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"storage driver", "storage:\n  driver: mongo\n"},
		{"inverted hours", "clinic:\n  start_hour: \"18:00\"\n  end_hour: \"09:00\"\n"},
		{"hours off the half hour", "clinic:\n  start_hour: \"09:00\"\n  end_hour: \"20:45\"\n"},
		{"timezone", "clinic:\n  timezone: Mars/Olympus\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	cfg := Config{
		Outbox: OutboxConfig{BatchSize: 10, PollInterval: time.Second, RetryAttempts: 2, RetryDelay: time.Millisecond},
		Redis:  RedisConfig{URL: "redis://localhost:6379/1", PoolSize: 4},
		Clinic: ClinicConfig{Name: "Clinic", Currency: "OMR", StartHour: "09:00", EndHour: "17:00", CommissionRate: 30},
	}
	assert.Equal(t, 10, cfg.Outbox.ToWorkerConfig().BatchSize)
	assert.Equal(t, 4, cfg.Redis.ToBrokerConfig().PoolSize)
	assert.Equal(t, "17:00", cfg.Clinic.Settings().EndHour)
}

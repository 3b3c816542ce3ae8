package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/service/booking"
	"github.com/jwalitptl/chairside-api/pkg/messaging/redis"
	"github.com/jwalitptl/chairside-api/pkg/timegrid"
	"github.com/jwalitptl/chairside-api/pkg/worker"
)

// EnvPrefix namespaces environment overrides, e.g. CHAIRSIDE_DB_HOST.
const EnvPrefix = "CHAIRSIDE"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Clinic     ClinicConfig     `mapstructure:"clinic"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Mode         string        `mapstructure:"mode"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// ClinicConfig seeds settings on first start.
type ClinicConfig struct {
	Name           string  `mapstructure:"name"`
	Currency       string  `mapstructure:"currency"`
	StartHour      string  `mapstructure:"start_hour"`
	EndHour        string  `mapstructure:"end_hour"`
	CommissionRate float64 `mapstructure:"commission_rate"`
	Timezone       string  `mapstructure:"timezone"`
}

type SchedulingConfig struct {
	EnforceNoOverlap bool          `mapstructure:"enforce_no_overlap"`
	VacateOnCancel   bool          `mapstructure:"vacate_on_cancel"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Retention     time.Duration `mapstructure:"retention"`
	// MemoryLimit caps the in-process outbox used with memory storage.
	MemoryLimit int `mapstructure:"memory_limit"`
}

type NotifyConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  int    `mapstructure:"smtp_port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	From      string `mapstructure:"from"`
	FrontDesk string `mapstructure:"front_desk"`
}

// envOverlay lists the variables that may override the file. Unset
// variables leave the pointer nil.
type envOverlay struct {
	Port           *int     `envconfig:"PORT"`
	LogLevel       *string  `envconfig:"LOG_LEVEL"`
	StorageDriver  *string  `envconfig:"STORAGE_DRIVER"`
	DBHost         *string  `envconfig:"DB_HOST"`
	DBPort         *int     `envconfig:"DB_PORT"`
	DBUser         *string  `envconfig:"DB_USER"`
	DBPassword     *string  `envconfig:"DB_PASSWORD"`
	DBName         *string  `envconfig:"DB_NAME"`
	RedisURL       *string  `envconfig:"REDIS_URL"`
	Timezone       *string  `envconfig:"TIMEZONE"`
	EnforceOverlap *bool    `envconfig:"ENFORCE_NO_OVERLAP"`
	VacateOnCancel *bool    `envconfig:"VACATE_ON_CANCEL"`
	SMTPPassword   *string  `envconfig:"SMTP_PASSWORD"`
	RateLimitRPS   *float64 `envconfig:"RATE_LIMIT_RPS"`
}

func setDefaults(v *viper.Viper) {
	defaults := model.DefaultClinicSettings()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "chairside")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("clinic.name", defaults.ClinicName)
	v.SetDefault("clinic.currency", defaults.Currency)
	v.SetDefault("clinic.start_hour", defaults.StartHour)
	v.SetDefault("clinic.end_hour", defaults.EndHour)
	v.SetDefault("clinic.commission_rate", defaults.CommissionRate)
	v.SetDefault("clinic.timezone", "Local")
	v.SetDefault("scheduling.enforce_no_overlap", true)
	v.SetDefault("scheduling.vacate_on_cancel", false)
	v.SetDefault("scheduling.cache_ttl", 5*time.Minute)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.poll_interval", 2*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", 500*time.Millisecond)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.memory_limit", 1000)
	v.SetDefault("notify.smtp_port", 587)
}

// LoadConfig reads .env, then config.yml from the usual locations (or file
// when non-empty), then CHAIRSIDE_* overrides. A missing config file is not
// an error.
func LoadConfig(file string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var overlay envOverlay
	if err := envconfig.Process(EnvPrefix, &overlay); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	config.apply(overlay)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) apply(o envOverlay) {
	setIf(&c.Server.Port, o.Port)
	setIf(&c.Log.Level, o.LogLevel)
	setIf(&c.Storage.Driver, o.StorageDriver)
	setIf(&c.Database.Host, o.DBHost)
	setIf(&c.Database.Port, o.DBPort)
	setIf(&c.Database.User, o.DBUser)
	setIf(&c.Database.Password, o.DBPassword)
	setIf(&c.Database.Name, o.DBName)
	setIf(&c.Redis.URL, o.RedisURL)
	setIf(&c.Clinic.Timezone, o.Timezone)
	setIf(&c.Scheduling.EnforceNoOverlap, o.EnforceOverlap)
	setIf(&c.Scheduling.VacateOnCancel, o.VacateOnCancel)
	setIf(&c.Notify.Password, o.SMTPPassword)
	setIf(&c.RateLimit.RequestsPerSecond, o.RateLimitRPS)
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	w, err := timegrid.NewWindow(c.Clinic.StartHour, c.Clinic.EndHour)
	if err != nil {
		return fmt.Errorf("invalid clinic hours: %w", err)
	}
	if !timegrid.OnGrid(timegrid.MustMinutes(c.Clinic.StartHour)) || !timegrid.OnGrid(w.End) {
		return fmt.Errorf("invalid clinic hours: %s-%s must fall on the half hour", c.Clinic.StartHour, c.Clinic.EndHour)
	}
	if _, err := c.Clinic.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the clinic's wall-clock zone.
func (c ClinicConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid clinic timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c ClinicConfig) Settings() model.ClinicSettings {
	return model.ClinicSettings{
		ClinicName:     c.Name,
		Currency:       c.Currency,
		StartHour:      c.StartHour,
		EndHour:        c.EndHour,
		CommissionRate: c.CommissionRate,
	}
}

func (c SchedulingConfig) ToBookingConfig() booking.Config {
	return booking.Config{
		EnforceNoOverlap: c.EnforceNoOverlap,
		VacateOnCancel:   c.VacateOnCancel,
	}
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
		Retention:     c.Retention,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (c *NotifyConfig) ToMailerConfig() worker.MailerConfig {
	return worker.MailerConfig{
		Host:      c.SMTPHost,
		Port:      c.SMTPPort,
		Username:  c.Username,
		Password:  c.Password,
		From:      c.From,
		FrontDesk: c.FrontDesk,
	}
}

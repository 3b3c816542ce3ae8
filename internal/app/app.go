// Package app wires configuration, storage, services and transport into a
// runnable API process. cmd/api, cmd/worker and chairctl share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/chairside-api/config"
	bookingHandler "github.com/jwalitptl/chairside-api/internal/handler/booking"
	clinicHandler "github.com/jwalitptl/chairside-api/internal/handler/clinic"
	"github.com/jwalitptl/chairside-api/internal/handler/health"
	"github.com/jwalitptl/chairside-api/internal/handler/prometheus"
	scheduleHandler "github.com/jwalitptl/chairside-api/internal/handler/schedule"
	"github.com/jwalitptl/chairside-api/internal/middleware"
	"github.com/jwalitptl/chairside-api/internal/model"
	"github.com/jwalitptl/chairside-api/internal/repository"
	"github.com/jwalitptl/chairside-api/internal/repository/memory"
	"github.com/jwalitptl/chairside-api/internal/repository/postgres"
	"github.com/jwalitptl/chairside-api/internal/router"
	"github.com/jwalitptl/chairside-api/internal/service/booking"
	"github.com/jwalitptl/chairside-api/internal/service/calendar"
	"github.com/jwalitptl/chairside-api/internal/service/clinic"
	"github.com/jwalitptl/chairside-api/internal/service/schedule"
	"github.com/jwalitptl/chairside-api/pkg/logger"
	"github.com/jwalitptl/chairside-api/pkg/messaging/redis"
	"github.com/jwalitptl/chairside-api/pkg/metrics"
	"github.com/jwalitptl/chairside-api/pkg/worker"
)

const metricsNamespace = "chairside"

// NewLogger builds the process logger and points the global zerolog logger,
// used by the HTTP middleware, at the same output.
func NewLogger(cfg config.LogConfig) *logger.Logger {
	level := logger.ParseLevel(cfg.Level)
	l := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		JSON:       cfg.JSON,
	})
	zerolog.SetGlobalLevel(level)
	log.Logger = *l.Zerolog()
	return l
}

type Storage struct {
	DB       *sqlx.DB
	Leads    repository.LeadRepository
	Doctors  repository.DoctorRepository
	Settings repository.SettingsRepository
	Outbox   repository.OutboxRepository
}

// OpenStorage connects the configured driver. Postgres is migrated on open.
func OpenStorage(ctx context.Context, cfg *config.Config, loc *time.Location) (*Storage, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Storage{
			DB:       db,
			Leads:    postgres.NewLeadRepository(db, loc),
			Doctors:  postgres.NewDoctorRepository(db),
			Settings: postgres.NewSettingsRepository(db, cfg.Clinic.Settings()),
			Outbox:   postgres.NewOutboxRepository(db),
		}, nil
	default:
		return &Storage{
			Leads:    memory.NewLeadRepository(),
			Doctors:  memory.NewDoctorRepository(),
			Settings: memory.NewSettingsRepository(cfg.Clinic.Settings()),
			Outbox:   memory.NewBoundedOutboxRepository(cfg.Outbox.MemoryLimit),
		}, nil
	}
}

// SeedDoctors creates the stock roster when no doctor exists yet.
func (s *Storage) SeedDoctors(ctx context.Context) error {
	existing, err := s.Doctors.List(ctx, false)
	if err != nil {
		return fmt.Errorf("failed to list doctors: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, d := range model.DefaultDoctorNames {
		if err := s.Doctors.Create(ctx, &model.Doctor{Name: d.Name, Color: d.Color, Active: true}); err != nil {
			return fmt.Errorf("failed to seed doctor %s: %w", d.Name, err)
		}
	}
	return nil
}

func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// App is one fully wired API process.
type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Storage  *Storage
	Prom     *prometheus.Handler
	Metrics  *metrics.Metrics
	Index    *schedule.Index
	Bookings *booking.Service
	Calendar *calendar.Service
	Clinic   clinic.ClinicServicer

	broker *redis.RedisBroker
}

func New(ctx context.Context, cfg *config.Config, l *logger.Logger) (*App, error) {
	loc, err := cfg.Clinic.Location()
	if err != nil {
		return nil, err
	}

	storage, err := OpenStorage(ctx, cfg, loc)
	if err != nil {
		return nil, err
	}
	if err := storage.SeedDoctors(ctx); err != nil {
		storage.Close()
		return nil, err
	}

	prom := prometheus.New(metricsNamespace)
	m := metrics.NewMetrics(metricsNamespace, "scheduling", prom.Registerer())
	index := schedule.NewIndex(storage.Leads, cfg.Scheduling.CacheTTL, loc, m)

	return &App{
		Config:  cfg,
		Logger:  l,
		Storage: storage,
		Prom:    prom,
		Metrics: m,
		Index:   index,
		Bookings: booking.NewService(
			storage.Leads, storage.Doctors, storage.Settings, storage.Outbox,
			index, cfg.Scheduling.ToBookingConfig(), l, m,
		),
		Calendar: calendar.NewService(storage.Leads, storage.Doctors, storage.Settings, loc, l),
		Clinic:   clinic.NewService(storage.Doctors, storage.Settings, storage.Leads, l),
	}, nil
}

// ConnectBroker dials Redis. The broker is optional for the API and
// required by the outbox processor.
func (a *App) ConnectBroker(ctx context.Context) (*redis.RedisBroker, error) {
	if a.broker != nil {
		return a.broker, nil
	}
	b, err := redis.NewRedisBroker(ctx, a.Config.Redis.ToBrokerConfig(), a.Logger.Zerolog())
	if err != nil {
		return nil, err
	}
	a.broker = b
	return b, nil
}

// Processor builds the outbox relay, with the mailer attached when
// notifications are enabled.
func (a *App) Processor(broker *redis.RedisBroker) *worker.OutboxProcessor {
	var notifiers []worker.Notifier
	if a.Config.Notify.Enabled {
		notifiers = append(notifiers, worker.NewMailer(a.Config.Notify.ToMailerConfig()))
	}
	return worker.NewOutboxProcessor(
		a.Storage.Outbox, broker, a.Config.Outbox.ToWorkerConfig(), a.Logger, a.Metrics, notifiers...,
	)
}

func (a *App) checks() map[string]health.Checker {
	checks := map[string]health.Checker{}
	if a.Storage.DB != nil {
		checks["database"] = func(ctx context.Context) error {
			return a.Storage.DB.PingContext(ctx)
		}
	}
	if a.broker != nil {
		checks["redis"] = a.broker.Ping
	}
	return checks
}

func (a *App) Router() *router.Router {
	cfg := router.RouterConfig{
		Mode:       a.Config.Server.Mode,
		CORSConfig: middleware.DefaultCORSConfig(a.Config.Server.AllowOrigins...),
	}
	if a.Config.RateLimit.Enabled {
		cfg.RateLimit = rate.Limit(a.Config.RateLimit.RequestsPerSecond)
		cfg.RateBurst = a.Config.RateLimit.Burst
	}

	r := router.NewRouter(cfg, a.Prom,
		bookingHandler.NewHandler(a.Bookings),
		scheduleHandler.NewHandler(a.Calendar, a.Bookings),
		clinicHandler.NewHandler(a.Clinic),
		health.NewHandler(a.checks(), a.Prom.HTTPHandler()),
	)
	r.Setup()
	return r
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests. With memory storage the outbox only exists in this process, so
// the relay runs here when Redis is reachable.
func (a *App) Serve(ctx context.Context) error {
	if a.Storage.DB == nil {
		if broker, err := a.ConnectBroker(ctx); err != nil {
			a.Logger.Warn("redis unavailable, booking events stay in the outbox",
				"error", err.Error(), "limit", a.Config.Outbox.MemoryLimit)
		} else {
			processor := a.Processor(broker)
			go processor.Start(ctx)
			go worker.NewOutboxCleanupWorker(processor, time.Hour).Start(ctx)
		}
	}

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(a.Config.Server.Port),
		Handler:      a.Router().Engine(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("starting server", "addr", srv.Addr, "storage", a.Config.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.broker != nil {
		errs = append(errs, a.broker.Close())
	}
	errs = append(errs, a.Storage.Close())
	return errors.Join(errs...)
}

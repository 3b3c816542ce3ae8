package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/chairside-api/config"
	"github.com/jwalitptl/chairside-api/internal/app"
	"github.com/jwalitptl/chairside-api/pkg/worker"
)

func main() {
	configFile := flag.String("config", "", "path to config.yml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := app.NewLogger(cfg.Log)

	// the memory outbox lives inside the API process, which relays it itself
	if cfg.Storage.Driver != config.StoragePostgres {
		logger.Fatal(nil, "worker requires postgres storage", "driver", cfg.Storage.Driver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "failed to initialize application")
	}
	defer a.Close()

	broker, err := a.ConnectBroker(ctx)
	if err != nil {
		logger.Fatal(err, "failed to create Redis broker")
	}

	processor := a.Processor(broker)
	cleanup := worker.NewOutboxCleanupWorker(processor, time.Hour)

	go cleanup.Start(ctx)
	logger.Info("outbox worker started",
		"batch_size", cfg.Outbox.BatchSize,
		"poll_interval", cfg.Outbox.PollInterval.String(),
		"notify", cfg.Notify.Enabled,
	)
	processor.Start(ctx)
	logger.Info("outbox worker stopped")
}

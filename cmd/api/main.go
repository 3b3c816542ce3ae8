package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/chairside-api/config"
	"github.com/jwalitptl/chairside-api/internal/app"
)

func main() {
	configFile := flag.String("config", "", "path to config.yml")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "failed to initialize application")
	}
	defer a.Close()

	if err := a.Serve(ctx); err != nil {
		logger.Error(err, "server stopped")
		return
	}
	logger.Info("server exited properly")
}

// Package main runs the news ingestion pipeline: poll the search API,
// normalize and validate articles, and stream them to the backend.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"newsingest/internal/config"
	"newsingest/internal/logger"
	"newsingest/internal/models"
	"newsingest/internal/normalizer"
	"newsingest/internal/scheduler"
	"newsingest/internal/source"
	"newsingest/internal/stream"
)

func main() {
	configPath := flag.String("config", "configs/ingest.yaml", "Path to YAML configuration file")
	maxTicks := flag.Int("max-ticks", 0, "Number of poll ticks to run (0 = run forever)")
	flag.Parse()

	// .env is a local development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New("error").Error("failed to load configuration", "path", *configPath, "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info("configuration loaded", "config", cfg.String())

	apiKey := os.Getenv("NEWSAPI_KEY")
	if apiKey == "" {
		log.Error("NEWSAPI_KEY environment variable is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kinesisClient, err := stream.NewKinesisClient(ctx, cfg.Stream)
	if err != nil {
		log.Error("failed to initialize stream client", "error", err)
		os.Exit(1)
	}

	client := source.NewClient(cfg.Source, cfg.Retry, apiKey, log.With("component", "source"))
	processor := normalizer.NewProcessor(log.With("component", "normalizer"))
	writer := stream.NewWriter(kinesisClient, cfg.Stream, cfg.Retry, log.With("component", "stream"))

	sched := scheduler.New(
		cfg.Scheduler,
		func(window models.PollWindow) scheduler.Pages { return client.Fetch(window) },
		processor,
		writer,
		log.With("component", "scheduler"),
	)
	sched.SetMaxTicks(*maxTicks)

	if err := sched.Run(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("pipeline stopped", "error", err)
			os.Exit(1)
		}
	}

	log.Info("pipeline shut down cleanly")
}

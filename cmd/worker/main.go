package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"storelens/internal/app"
	"storelens/internal/config"
	"storelens/internal/logger"
	"storelens/internal/worker"
	"storelens/internal/worker/processors"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.Env)
	defer logger.Sync()

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize: %v", err)
	}
	defer a.Close()

	// Initialize worker
	w := worker.New(worker.NewKafkaReader(cfg), processors.NewEventProcessor(a.Synchronizer, logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting worker on topic %s...", cfg.KafkaSyncTopic)
	if err := w.Run(ctx); err != nil {
		logger.Error("Worker stopped: %v", err)
	}

	logger.Info("Shutting down worker...")
	w.Stop()
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"storelens/internal/api"
	"storelens/internal/app"
	"storelens/internal/config"
	"storelens/internal/logger"
	"storelens/internal/worker"
	"storelens/internal/worker/processors"
)

const oauthPurgeInterval = 10 * time.Minute

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		dispatcher worker.Dispatcher
		inProcess  *worker.InProcessDispatcher
	)
	switch cfg.SyncDispatch {
	case "kafka":
		kd := worker.NewKafkaDispatcher(worker.NewKafkaWriter(cfg))
		defer kd.Close()
		dispatcher = kd
		logger.Info("Dispatching syncs to kafka topic %s", cfg.KafkaSyncTopic)
	default:
		inProcess = worker.NewInProcessDispatcher(processors.NewEventProcessor(a.Synchronizer, logger), logger)
		dispatcher = inProcess
	}

	go purgeOAuthStates(ctx, a, logger)

	server := api.New(cfg, logger, api.Deps{
		Store:        a.Store,
		OAuth:        a.OAuth(),
		Cipher:       a.Cipher,
		Synchronizer: a.Synchronizer,
		Reporter:     a.Reporter,
		Dispatcher:   dispatcher,
		Metrics:      a.Metrics,
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed: %v", err)
	}
	if inProcess != nil {
		logger.Info("Waiting for running syncs to finish...")
		inProcess.Wait()
	}
}

func purgeOAuthStates(ctx context.Context, a *app.App, logger *logger.Logger) {
	ticker := time.NewTicker(oauthPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Store.PurgeExpiredOAuthStates(ctx, time.Now())
			if err != nil {
				logger.Warn("Failed to purge expired oauth states: %v", err)
				continue
			}
			if n > 0 {
				logger.Debug("Purged %d expired oauth states", n)
			}
		}
	}
}

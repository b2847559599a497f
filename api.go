package handler

import (
	"fmt"
	"net/http"
	"sync"

	"storelens/internal/api"
	"storelens/internal/app"
	"storelens/internal/config"
	"storelens/internal/logger"
	"storelens/internal/worker"
	"storelens/internal/worker/processors"

	"github.com/gin-gonic/gin"
)

var (
	initOnce sync.Once
	router   *gin.Engine
	initErr  error
)

// initRouter builds the API once per serverless instance.
func initRouter() {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	if err := cfg.Validate(); err != nil {
		initErr = err
		return
	}

	log := logger.New(cfg.LogLevel, cfg.Env)
	a, err := app.New(cfg, log)
	if err != nil {
		initErr = err
		return
	}

	// Instances may be frozen between requests; deployments should set
	// SYNC_DISPATCH=kafka and run cmd/worker.
	var dispatcher worker.Dispatcher
	if cfg.SyncDispatch == "kafka" {
		dispatcher = worker.NewKafkaDispatcher(worker.NewKafkaWriter(cfg))
	} else {
		dispatcher = worker.NewInProcessDispatcher(processors.NewEventProcessor(a.Synchronizer, log), log)
	}

	router = api.New(cfg, log, api.Deps{
		Store:        a.Store,
		OAuth:        a.OAuth(),
		Cipher:       a.Cipher,
		Synchronizer: a.Synchronizer,
		Reporter:     a.Reporter,
		Dispatcher:   dispatcher,
		Metrics:      a.Metrics,
	}).Router()
}

// Handler is the main entry point for Vercel
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(initRouter)
	if initErr != nil {
		http.Error(w, fmt.Sprintf("Initialization failed: %v", initErr), http.StatusInternalServerError)
		return
	}
	router.ServeHTTP(w, r)
}

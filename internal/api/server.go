package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"storelens/internal/api/handlers"
	"storelens/internal/api/middleware"
	"storelens/internal/config"
	"storelens/internal/logger"
	"storelens/internal/metrics"
	"storelens/internal/repository"
	"storelens/internal/services/shopify"
	"storelens/internal/services/syncer"
	"storelens/internal/worker"

	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Store        *repository.Store
	OAuth        *shopify.OAuthService
	Cipher       handlers.Encrypter
	Synchronizer *syncer.Synchronizer
	Reporter     *syncer.Reporter
	Dispatcher   worker.Dispatcher
	Metrics      *metrics.Metrics
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, logger *logger.Logger, deps Deps) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.CORS(cfg.FrontendURL))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.Store.DB())
	shopifyHandler := handlers.NewShopifyHandler(
		deps.OAuth, deps.Store, deps.Cipher, deps.Dispatcher, logger, cfg.FrontendURL, cfg.OAuthStateTTL,
	)
	connectionHandler := handlers.NewConnectionHandler(deps.Store, logger)
	syncHandler := handlers.NewSyncHandler(deps.Store, deps.Synchronizer, deps.Reporter, deps.Dispatcher, logger)

	router.GET("/health", healthHandler.Check)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Shopify redirects the browser here; the tenant comes from the state.
		v1.GET("/shopify/callback", shopifyHandler.Callback)

		tenant := v1.Group("", middleware.Tenant())
		{
			tenant.POST("/shopify/install", shopifyHandler.Install)

			tenant.GET("/connection", connectionHandler.Get)
			tenant.DELETE("/connection", connectionHandler.Delete)

			tenant.POST("/sync", syncHandler.Start)
			tenant.GET("/sync/status", syncHandler.Status)
		}
	}

	return &Server{
		config: cfg,
		logger: logger,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router exposes the engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

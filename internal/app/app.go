// Package app wires the collaborators shared by the API and worker binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"storelens/internal/config"
	"storelens/internal/database"
	"storelens/internal/logger"
	"storelens/internal/metrics"
	"storelens/internal/repository"
	"storelens/internal/security"
	"storelens/internal/services/shopify"
	"storelens/internal/services/syncer"

	"github.com/redis/go-redis/v9"
)

type App struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           *database.Database
	Store        *repository.Store
	Cipher       *security.Cipher
	Metrics      *metrics.Metrics
	Synchronizer *syncer.Synchronizer
	Reporter     *syncer.Reporter

	closers []func() error
}

func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log, Metrics: metrics.New()}

	db, err := database.New(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	a.Store = repository.New(db.DB)

	a.Cipher, err = security.NewCipher(cfg.EncryptionKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build cipher: %w", err)
	}

	locker, err := a.newLocker()
	if err != nil {
		a.Close()
		return nil, err
	}

	factory := syncer.NewShopifyClientFactory(a.Cipher,
		shopify.WithAPIVersion(cfg.ShopifyAPIVersion),
		shopify.WithTimeout(cfg.ShopifyTimeout),
		shopify.WithPageSize(cfg.ShopifyPageSize),
		shopify.WithMetrics(a.Metrics),
		shopify.WithLogger(log),
	)
	a.Synchronizer = syncer.New(a.Store, factory,
		syncer.WithLocker(locker),
		syncer.WithMetrics(a.Metrics),
		syncer.WithLogger(log),
		syncer.WithOrderLookback(cfg.OrderLookback()),
		syncer.WithStaleAfter(cfg.SyncLockTTL),
	)
	a.Reporter = syncer.NewReporter(a.Store)

	return a, nil
}

// newLocker picks the tenant lock. Only the memory lock is limited to a
// single process.
func (a *App) newLocker() (syncer.Locker, error) {
	switch a.Config.SyncLock {
	case "redis":
		opts, err := redis.ParseURL(a.Config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.Logger.Info("Using redis sync lock")
		return syncer.NewRedisLocker(client, a.Config.SyncLockTTL), nil
	case "postgres":
		locker, err := syncer.NewPostgresLocker(a.Config.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, locker.Close)
		a.Logger.Info("Using postgres advisory sync lock")
		return locker, nil
	default:
		return syncer.NewMemoryLocker(), nil
	}
}

// OAuth builds the install flow service from configuration.
func (a *App) OAuth() *shopify.OAuthService {
	return shopify.NewOAuthService(shopify.OAuthConfig{
		ClientID:     a.Config.ShopifyClientID,
		ClientSecret: a.Config.ShopifyClientSecret,
		Scopes:       a.Config.Scopes(),
		RedirectURI:  a.Config.ShopifyRedirectURI,
	}, a.Logger)
}

// Close releases everything New opened, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Failed to close resource: %v", err)
		}
	}
	a.closers = nil
}

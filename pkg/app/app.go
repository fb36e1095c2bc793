// Package app assembles the components shared by the modulink binaries
// from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/config"
	"github.com/platinummonkey/modulink/pkg/entitlement"
	"github.com/platinummonkey/modulink/pkg/notify"
	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/storage/postgres"
	"github.com/platinummonkey/modulink/pkg/tenants"
)

const notifierDrainTimeout = 10 * time.Second

// App holds the database, cache and engine every binary works against
type App struct {
	Config   *config.Config
	Logger   logrus.FieldLogger
	DB       *sql.DB
	Redis    *postgres.RedisClient
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Engine   *entitlement.Engine
	Tenants  *tenants.PostgresService

	notifier *notify.WebhookNotifier
	closers  []func() error
}

// New connects to Postgres (and Redis when the cache mode needs it) and
// assembles the engine
func New(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*App, error) {
	db, err := postgres.Open(ctx, postgres.ConnectionConfigFrom(cfg.Storage), logger)
	if err != nil {
		return nil, err
	}

	var redisClient *postgres.RedisClient
	if cfg.Cache.Mode == config.CacheRedis {
		redisClient, err = postgres.NewRedisClient(cfg.Storage)
		if err != nil {
			db.Close()
			return nil, err
		}
	}

	a, err := Assemble(ctx, cfg, logger, db, redisClient)
	if err != nil {
		if redisClient != nil {
			redisClient.Close()
		}
		db.Close()
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	if redisClient != nil {
		a.closers = append(a.closers, redisClient.Close)
	}
	return a, nil
}

// Assemble builds an App over connections owned by the caller. redisClient
// is required for the redis cache mode only.
func Assemble(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, db *sql.DB, redisClient *postgres.RedisClient) (*App, error) {
	cache, err := NewCache(cfg.Cache, redisClient)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)
	if err := observability.RegisterDBCollector(registry, db, "modulink"); err != nil {
		return nil, fmt.Errorf("failed to register database collector: %w", err)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Redis:    redisClient,
		Registry: registry,
		Metrics:  metrics,
		Tenants:  tenants.NewPostgresService(db),
	}

	opts := []entitlement.Option{
		entitlement.WithLogger(logger),
		entitlement.WithCache(cache),
		entitlement.WithMetrics(metrics),
		entitlement.WithAuditLogger(audit.NewMultiLogger(
			audit.NewDBLogger(db),
			audit.NewLogrusLogger(logger),
		)),
	}
	if len(cfg.Notify.WebhookURLs) > 0 {
		a.notifier = notify.NewWebhookNotifier(ctx, cfg.Notify.Notifier(), logger)
		opts = append(opts, entitlement.WithNotifier(a.notifier))
	}
	a.Engine = entitlement.NewEngine(db, opts...)

	logger.WithFields(logrus.Fields{
		"cache":    cache.Name(),
		"webhooks": len(cfg.Notify.WebhookURLs),
	}).Info("Entitlement engine ready")
	return a, nil
}

// NewCache builds the decision cache for cfg.Mode
func NewCache(cfg config.CacheConfig, redisClient *postgres.RedisClient) (entitlement.Cache, error) {
	switch cfg.Mode {
	case config.CacheNone, "":
		return entitlement.NoCache{}, nil
	case config.CacheMemory:
		return entitlement.NewMemoryCache(cfg.Size, cfg.TTL), nil
	case config.CacheRedis:
		if redisClient == nil {
			return nil, errors.New("redis cache mode requires a redis client")
		}
		return entitlement.NewRedisCache(redisClient, cfg.Prefix, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache mode %q", cfg.Mode)
	}
}

// Close drains pending notifications and closes the connections New opened
func (a *App) Close() error {
	var errs []error
	if a.notifier != nil {
		if err := a.notifier.Close(notifierDrainTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

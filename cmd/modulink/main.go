package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modulink/pkg/api"
	"github.com/platinummonkey/modulink/pkg/app"
	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/catalog"
	"github.com/platinummonkey/modulink/pkg/config"
	"github.com/platinummonkey/modulink/pkg/middleware"
	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/storage/postgres"
	"github.com/platinummonkey/modulink/pkg/tenants"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize OpenTelemetry")
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	if providers != nil && providers.MeterProvider != nil {
		if _, err := observability.RegisterDBPoolMetrics(providers.MeterProvider.Meter("modulink"), a.DB); err != nil {
			logger.WithError(err).Warn("Failed to register database pool metrics")
		}
	}

	if err := syncCatalog(ctx, cfg.Catalog, a, logger); err != nil {
		logger.WithError(err).Fatal("Failed to sync catalog")
	}

	authenticator, err := newAuthenticator(ctx, cfg.Auth, a.Tenants)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize authentication")
	}

	logos, objectStoreCheck := newLogoStore(ctx, cfg, a, logger)
	srv := api.NewServer(api.Config{
		Engine:        a.Engine,
		Tenants:       a.Tenants,
		Logos:         logos,
		Audit:         audit.NewDBLogger(a.DB),
		Authenticator: authenticator,
		Limiter:       newLimiter(ctx, cfg, a),
		Metrics:       a.Metrics,
		Logger:        logger,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics live on their own port for k8s probes
	var redisClient *redis.Client
	if a.Redis != nil {
		redisClient = a.Redis.GetClient()
	}
	healthRouter := mux.NewRouter()
	checker := observability.NewHealthChecker(a.DB, redisClient, version)
	if objectStoreCheck != nil {
		checker.AddCheck("object_store", objectStoreCheck)
	}
	observability.RegisterHealthRoutes(healthRouter, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthRouter, a.Registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthRouter,
	}

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.Register("health-server", healthServer.Shutdown)
	sm.Register("app", func(context.Context) error {
		cancel()
		return a.Close()
	})
	sm.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Health server failed")
		}
	}()
	go func() {
		logger.WithFields(logrus.Fields{"addr": httpServer.Addr, "version": version}).Info("Modulink API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("API server failed")
		}
	}()

	if err := sm.WaitForShutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown incomplete")
		os.Exit(1)
	}
	logger.Info("Modulink stopped")
}

// syncCatalog loads the seed file when one is configured and keeps watching
// it when asked to
func syncCatalog(ctx context.Context, cfg config.CatalogConfig, a *app.App, logger logrus.FieldLogger) error {
	if cfg.SeedFile == "" {
		return nil
	}
	seed, err := catalog.LoadSeedFile(cfg.SeedFile)
	if err != nil {
		return err
	}
	if err := catalog.Sync(ctx, a.DB, seed); err != nil {
		a.Metrics.CatalogSync(0, err)
		return err
	}
	a.Metrics.CatalogSync(len(seed.Modules), nil)
	logger.WithField("modules", len(seed.Modules)).Info("Catalog synced")

	if cfg.Watch {
		watcher := catalog.NewWatcher(cfg.SeedFile, a.DB, logger, cfg.WatchDelay)
		watcher.OnSynced(func(seed *catalog.SeedFile) { a.Metrics.CatalogSync(len(seed.Modules), nil) })
		watcher.OnFailed(func(err error) { a.Metrics.CatalogSync(0, err) })
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.WithError(err).Error("Catalog watcher stopped")
			}
		}()
	}
	return nil
}

func newAuthenticator(ctx context.Context, cfg config.AuthConfig, users middleware.UserDirectory) (middleware.Authenticator, error) {
	if cfg.Mode == config.AuthOIDC {
		verifier, err := middleware.NewOIDCVerifier(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID, cfg.OIDCUserInfo)
		if err != nil {
			return nil, err
		}
		return middleware.NewBearerAuthenticator(users, verifier), nil
	}
	return middleware.NewHeaderAuthenticator(users, cfg.UserHeader), nil
}

// newLimiter shares counters through Redis when the cache already uses it
func newLimiter(ctx context.Context, cfg *config.Config, a *app.App) middleware.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	if a.Redis != nil {
		return middleware.NewRedisLimiter(a.Redis.GetClient(), cfg.RateLimit.Limiter(), cfg.Cache.Prefix+":ratelimit")
	}
	limiter := middleware.NewMemoryLimiter(cfg.RateLimit.Limiter())
	limiter.StartCleanup(ctx)
	return limiter
}

// newLogoStore returns nil, disabling the logo route, when the object store
// is unreachable
func newLogoStore(ctx context.Context, cfg *config.Config, a *app.App, logger logrus.FieldLogger) (api.LogoUploader, observability.CheckFunc) {
	if cfg.Storage.S3Bucket == "" {
		return nil, nil
	}
	objects, err := postgres.NewS3Client(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Warn("Object store unavailable, tenant logo uploads disabled")
		return nil, nil
	}
	return tenants.NewLogoStore(a.Tenants, objects), objects.HealthCheck
}

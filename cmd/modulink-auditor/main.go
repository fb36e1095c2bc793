package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modulink/pkg/app"
	"github.com/platinummonkey/modulink/pkg/config"
	"github.com/platinummonkey/modulink/pkg/jobs"
	"github.com/platinummonkey/modulink/pkg/observability"
)

var version = "dev"

var runOnce = flag.Bool("run-once", false, "Scan once, exit non-zero on violations")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}
	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize application")
	}
	defer a.Close()

	scheduler := jobs.NewIntegrityScheduler(a.Engine, cfg.Jobs.IntegritySchedule, cfg.Jobs.IntegrityTimeout, logger)

	if *runOnce {
		scanCtx, cancelScan := context.WithTimeout(ctx, cfg.Jobs.IntegrityTimeout)
		report, err := scheduler.RunOnce(scanCtx)
		cancelScan()
		if err != nil || !report.OK() {
			a.Close()
			os.Exit(1)
		}
		return
	}

	// first scan right away so the gauges are populated before the first tick
	scheduler.RunOnce(ctx)
	if err := scheduler.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	checker := observability.NewHealthChecker(a.DB, nil, version)
	checker.AddCheck("integrity", scheduler.Check)
	router := mux.NewRouter()
	observability.RegisterHealthRoutes(router, checker)
	observability.RegisterMetricsEndpoint(router, a.Registry)
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: router,
	}

	sm := observability.NewShutdownManager(logger, healthServer, cfg.Server.ShutdownTimeout)
	sm.Register("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Auditor health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Health server failed")
		}
	}()

	if err := sm.WaitForShutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown incomplete")
	}
	logger.Info("Auditor stopped")
}

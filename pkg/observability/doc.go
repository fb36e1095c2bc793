// Package observability provides logging, Prometheus metrics, health checks
// and OpenTelemetry setup for modulink binaries.
//
// # Logging
//
//	logger := observability.NewLogger("info", observability.FormatJSON, os.Stdout)
//	observability.LoggerFromContext(ctx, logger).Warn("cache unavailable")
//
// # Metrics
//
// All collectors share the modulink_ prefix and are registered on the
// registry passed to NewMetrics. Helper methods are nil safe so library
// code can run without metrics:
//
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveDecision("can_access", observability.DecisionGranted, false, elapsed)
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	checker.AddCheck("s3", s3Client.HealthCheck)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//	observability.RegisterDBPoolMetrics(otel.Meter("modulink"), db)
package observability

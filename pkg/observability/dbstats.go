package observability

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// RegisterDBPoolMetrics publishes connection pool gauges through an OTel
// meter. They are collected on each reader cycle of the meter provider.
func RegisterDBPoolMetrics(meter metric.Meter, db *sql.DB) (metric.Registration, error) {
	open, err := meter.Int64ObservableGauge("modulink.db.connections.open",
		metric.WithDescription("Open database connections"))
	if err != nil {
		return nil, fmt.Errorf("failed to create open connections gauge: %w", err)
	}
	inUse, err := meter.Int64ObservableGauge("modulink.db.connections.in_use",
		metric.WithDescription("Database connections currently in use"))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-use connections gauge: %w", err)
	}
	waitCount, err := meter.Int64ObservableGauge("modulink.db.connections.wait_count",
		metric.WithDescription("Total connections waited for"))
	if err != nil {
		return nil, fmt.Errorf("failed to create wait count gauge: %w", err)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := db.Stats()
		o.ObserveInt64(open, int64(stats.OpenConnections))
		o.ObserveInt64(inUse, int64(stats.InUse))
		o.ObserveInt64(waitCount, stats.WaitCount)
		return nil
	}, open, inUse, waitCount)
	if err != nil {
		return nil, fmt.Errorf("failed to register pool callback: %w", err)
	}
	return reg, nil
}

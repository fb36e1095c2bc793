package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modulink/pkg/storage"
)

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// ConnectionConfigFrom extracts the Postgres settings from a storage config
func ConnectionConfigFrom(cfg storage.Config) ConnectionConfig {
	return ConnectionConfig{
		URL:         cfg.PostgresURL,
		MaxConns:    cfg.PostgresMaxConns,
		MinConns:    cfg.PostgresMinConns,
		Timeout:     cfg.PostgresTimeout,
		MaxLifetime: cfg.PostgresMaxLifetime,
		MaxIdleTime: cfg.PostgresMaxIdleTime,
	}
}

// Validate checks the connection configuration
func (c ConnectionConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.MaxConns < 0 || c.MinConns < 0 {
		return fmt.Errorf("connection pool sizes must not be negative")
	}
	if c.MaxConns > 0 && c.MinConns > c.MaxConns {
		return fmt.Errorf("min conns (%d) exceeds max conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// Open opens the primary database pool and verifies it with a ping.
//
// Entitlement decisions must observe committed pertinence sets, so every query
// goes to the primary. There is no read replica routing.
func Open(ctx context.Context, config ConnectionConfig, logger logrus.FieldLogger) (*sql.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConns)
	db.SetMaxIdleConns(config.MinConns)
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping primary: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"max_conns": config.MaxConns,
		"min_conns": config.MinConns,
	}).Info("Connected to PostgreSQL")

	return db, nil
}

// PoolStats is a snapshot of the connection pool used by health reporting
type PoolStats struct {
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration"`
}

// Stats returns connection pool statistics
func Stats(db *sql.DB) PoolStats {
	s := db.Stats()
	return PoolStats{
		OpenConnections: s.OpenConnections,
		InUse:           s.InUse,
		Idle:            s.Idle,
		WaitCount:       s.WaitCount,
		WaitDuration:    s.WaitDuration,
	}
}

// Package jobs runs modulink's scheduled background work
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modulink/pkg/entitlement"
)

// Scanner checks the entitlement graph
type Scanner interface {
	ScanIntegrity(ctx context.Context) (*entitlement.IntegrityReport, error)
}

// IntegrityScheduler runs the integrity scan on a cron schedule. A run that
// is still going when the next one is due makes the next one skip.
type IntegrityScheduler struct {
	scanner  Scanner
	schedule string
	timeout  time.Duration
	logger   logrus.FieldLogger
	cron     *cron.Cron

	mu      sync.Mutex
	last    *entitlement.IntegrityReport
	lastErr error
}

// NewIntegrityScheduler creates a scheduler; schedule uses the standard
// five field cron syntax or a descriptor such as "@every 1h"
func NewIntegrityScheduler(scanner Scanner, schedule string, timeout time.Duration, logger logrus.FieldLogger) *IntegrityScheduler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	logger = logger.WithField("job", "integrity_scan")
	cronLogger := cron.PrintfLogger(logger)
	return &IntegrityScheduler{
		scanner:  scanner,
		schedule: schedule,
		timeout:  timeout,
		logger:   logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
	}
}

// RunOnce scans immediately and records the outcome
func (s *IntegrityScheduler) RunOnce(ctx context.Context) (*entitlement.IntegrityReport, error) {
	start := time.Now()
	report, err := s.scanner.ScanIntegrity(ctx)

	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.last = report
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.WithError(err).Error("Integrity scan failed")
		return nil, err
	}

	entry := s.logger.WithFields(logrus.Fields{
		"violations":  len(report.Violations),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if report.OK() {
		entry.Info("Integrity scan found no violations")
	} else {
		for kind, n := range report.Counts() {
			entry = entry.WithField(string(kind), n)
		}
		entry.Warn("Integrity scan found violations")
	}
	return report, nil
}

// Start schedules the scan. Runs use ctx as their parent.
func (s *IntegrityScheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		s.RunOnce(runCtx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule integrity scan %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.WithField("schedule", s.schedule).Info("Integrity scan scheduled")
	return nil
}

// Stop stops scheduling; the returned context is done once a running scan
// has finished
func (s *IntegrityScheduler) Stop() context.Context {
	return s.cron.Stop()
}

// LastReport returns the latest successful report, nil before the first
func (s *IntegrityScheduler) LastReport() *entitlement.IntegrityReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Check fails when the last scan failed or found violations. It fits
// observability.HealthChecker.AddCheck.
func (s *IntegrityScheduler) Check(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		return fmt.Errorf("last integrity scan failed: %w", s.lastErr)
	}
	if s.last != nil && !s.last.OK() {
		return fmt.Errorf("last integrity scan found %d violations", len(s.last.Violations))
	}
	return nil
}

package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const readinessTimeout = 5 * time.Second

// errDegraded marks a probe result that should degrade rather than fail
var errDegraded = errors.New("degraded")

// CheckFunc probes an optional dependency such as the logo bucket
type CheckFunc func(ctx context.Context) error

type probe struct {
	fn       CheckFunc
	required bool
}

// HealthChecker reports the state of the entitlement store and the
// dependencies registered with it
type HealthChecker struct {
	version string
	probes  map[string]probe
}

// NewHealthChecker creates a health checker. The database is required for
// readiness; Redis only degrades the service. Either may be nil.
func NewHealthChecker(db *sql.DB, redis *redis.Client, version string) *HealthChecker {
	h := &HealthChecker{version: version, probes: make(map[string]probe)}
	if db != nil {
		h.probes["database"] = probe{fn: databaseProbe(db), required: true}
	}
	if redis != nil {
		h.probes["redis"] = probe{fn: func(ctx context.Context) error { return redis.Ping(ctx).Err() }}
	}
	return h
}

// AddCheck registers a named optional dependency. A failing optional
// dependency degrades the service without failing readiness.
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.probes[name] = probe{fn: fn}
}

// HealthStatus is the readiness report
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the result of one probe
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Liveness always answers 200 while the process serves requests
func (h *HealthChecker) Liveness(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness answers 503 only when a required dependency is unhealthy
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

// Check runs every probe in name order
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.probes)),
	}

	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := h.probes[name]
		dep := runCheck(ctx, p.fn)
		status.Dependencies[name] = dep
		switch {
		case dep.Status == StatusUnhealthy && p.required:
			status.Status = StatusUnhealthy
		case dep.Status != StatusHealthy && status.Status == StatusHealthy:
			status.Status = StatusDegraded
		}
	}
	return status
}

// databaseProbe pings the pool and confirms the catalog table is migrated.
// An empty catalog or an exhausted pool degrades.
func databaseProbe(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		var modules int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM modules").Scan(&modules); err != nil {
			return fmt.Errorf("catalog query failed: %w", err)
		}
		if modules == 0 {
			return fmt.Errorf("%w: module catalog is empty", errDegraded)
		}
		if stats := db.Stats(); stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
			return fmt.Errorf("%w: connection pool exhausted", errDegraded)
		}
		return nil
	}
}

func runCheck(ctx context.Context, fn CheckFunc) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{Status: StatusHealthy, Timestamp: start}
	err := fn(ctx)
	status.Latency = time.Since(start)
	switch {
	case errors.Is(err, errDegraded):
		status.Status = StatusDegraded
		status.Message = err.Error()
	case err != nil:
		status.Status = StatusUnhealthy
		status.Message = err.Error()
	}
	return status
}

func writeHealth(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(router *mux.Router, checker *HealthChecker) {
	router.HandleFunc("/health", checker.Readiness).Methods(http.MethodGet)
	router.HandleFunc("/health/live", checker.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", checker.Readiness).Methods(http.MethodGet)
}

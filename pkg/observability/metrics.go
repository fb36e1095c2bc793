package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Access decision results
const (
	DecisionGranted = "granted"
	DecisionDenied  = "denied"
	DecisionError   = "error"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Entitlement metrics
	AccessDecisionsTotal   *prometheus.CounterVec
	AccessCheckDuration    *prometheus.HistogramVec
	MutationsTotal         *prometheus.CounterVec
	MutationDuration       *prometheus.HistogramVec
	IntegrityViolations    *prometheus.CounterVec
	IntegrityScanFindings  *prometheus.GaugeVec
	IntegrityLastScanEpoch prometheus.Gauge

	// Catalog metrics
	CatalogModules    prometheus.Gauge
	CatalogSyncsTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Notification metrics
	NotificationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modulink_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modulink_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modulink_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "route"},
		),

		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modulink_access_decisions_total",
				Help: "Module access decisions by result",
			},
			[]string{"operation", "result"},
		),
		AccessCheckDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modulink_access_check_duration_seconds",
				Help:    "Access check duration in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
			},
			[]string{"operation", "cached"},
		),
		MutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modulink_entitlement_mutations_total",
				Help: "Entitlement graph mutations by operation and status",
			},
			[]string{"operation", "status"},
		),
		MutationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modulink_entitlement_mutation_duration_seconds",
				Help:    "Entitlement mutation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		IntegrityViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modulink_integrity_violations_total",
				Help: "Cross-tenant integrity violations detected on the read path",
			},
			[]string{"kind"},
		),
		IntegrityScanFindings: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modulink_integrity_scan_findings",
				Help: "Violations found by the most recent integrity scan",
			},
			[]string{"kind"},
		),
		IntegrityLastScanEpoch: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modulink_integrity_last_scan_timestamp_seconds",
				Help: "Unix time of the most recent completed integrity scan",
			},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modulink_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type", "key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modulink_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type", "key_type"},
		),

		CatalogModules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "modulink_catalog_modules",
				Help: "Modules in the last synced catalog seed",
			},
		),
		CatalogSyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modulink_catalog_syncs_total",
				Help: "Catalog seed syncs by status",
			},
			[]string{"status"},
		),

		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modulink_notifications_total",
				Help: "Webhook deliveries by event type and status",
			},
			[]string{"event", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AccessDecisionsTotal,
		m.AccessCheckDuration,
		m.MutationsTotal,
		m.MutationDuration,
		m.IntegrityViolations,
		m.IntegrityScanFindings,
		m.IntegrityLastScanEpoch,
		m.CatalogModules,
		m.CatalogSyncsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.NotificationsTotal,
	)

	return m
}

// ObserveDecision records the outcome of an access check
func (m *Metrics) ObserveDecision(operation, result string, cached bool, d time.Duration) {
	if m == nil {
		return
	}
	m.AccessDecisionsTotal.WithLabelValues(operation, result).Inc()
	m.AccessCheckDuration.WithLabelValues(operation, strconv.FormatBool(cached)).Observe(d.Seconds())
}

// ObserveMutation records an entitlement mutation. A nil err counts as success.
func (m *Metrics) ObserveMutation(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.MutationsTotal.WithLabelValues(operation, status).Inc()
	m.MutationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IntegrityViolation counts a violation seen while serving a request
func (m *Metrics) IntegrityViolation(kind string) {
	if m == nil {
		return
	}
	m.IntegrityViolations.WithLabelValues(kind).Inc()
}

// SetScanFindings publishes the result of an integrity scan. Kinds missing
// from counts are reset to zero.
func (m *Metrics) SetScanFindings(kinds []string, counts map[string]int, at time.Time) {
	if m == nil {
		return
	}
	for _, kind := range kinds {
		m.IntegrityScanFindings.WithLabelValues(kind).Set(float64(counts[kind]))
	}
	m.IntegrityLastScanEpoch.Set(float64(at.Unix()))
}

// CatalogSync records a catalog seed sync. modules is only published on
// success.
func (m *Metrics) CatalogSync(modules int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.CatalogSyncsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.CatalogSyncsTotal.WithLabelValues("success").Inc()
	m.CatalogModules.Set(float64(modules))
}

// CacheLookup records a cache hit or miss
func (m *Metrics) CacheLookup(cacheType, keyType string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheType, keyType).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cacheType, keyType).Inc()
}

// Notification records a webhook delivery attempt outcome
func (m *Metrics) Notification(event string, err error) {
	if m == nil {
		return
	}
	status := "delivered"
	if err != nil {
		status = "failed"
	}
	m.NotificationsTotal.WithLabelValues(event, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel prefers the mux route template so tenant and module ids do not
// explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterDBCollector exports connection pool statistics for db
func RegisterDBCollector(registry prometheus.Registerer, db *sql.DB, name string) error {
	return registry.Register(collectors.NewDBStatsCollector(db, name))
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, gatherer prometheus.Gatherer) {
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

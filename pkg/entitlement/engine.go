package entitlement

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/modulink/pkg/async"
	"github.com/platinummonkey/modulink/pkg/audit"
	"github.com/platinummonkey/modulink/pkg/contextkeys"
	"github.com/platinummonkey/modulink/pkg/notify"
	"github.com/platinummonkey/modulink/pkg/observability"
	"github.com/platinummonkey/modulink/pkg/storage"
)

var tracer = otel.Tracer("modulink/entitlement")

// DefaultModules are activated for every bootstrapped tenant
var DefaultModules = []int64{0, 1, 2, 3}

const (
	auditTimeout  = 5 * time.Second
	flightTimeout = 30 * time.Second
)

// Subject is the resolved identity an access decision is made for
type Subject struct {
	UserID   int64 `json:"user_id"`
	TenantID int64 `json:"tenant_id"`
}

// Engine is the single write path of the entitlement graph and answers
// access checks against it. It holds no state of its own beyond an optional
// decision cache.
type Engine struct {
	db             *sql.DB
	logger         logrus.FieldLogger
	cache          Cache
	metrics        *observability.Metrics
	notifier       notify.Notifier
	auditLog       audit.Logger
	defaultModules []int64

	flights singleflight.Group
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithCache enables decision caching
func WithCache(cache Cache) Option {
	return func(e *Engine) {
		if cache != nil {
			e.cache = cache
		}
	}
}

// WithMetrics records decisions and mutations
func WithMetrics(metrics *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithNotifier publishes graph changes
func WithNotifier(notifier notify.Notifier) Option {
	return func(e *Engine) {
		if notifier != nil {
			e.notifier = notifier
		}
	}
}

// WithAuditLogger records every mutation and integrity violation
func WithAuditLogger(logger audit.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.auditLog = logger
		}
	}
}

// WithDefaultModules overrides the modules activated by BootstrapTenant
func WithDefaultModules(ids []int64) Option {
	return func(e *Engine) { e.defaultModules = append([]int64(nil), ids...) }
}

// NewEngine creates an engine over db
func NewEngine(db *sql.DB, opts ...Option) *Engine {
	e := &Engine{
		db:             db,
		logger:         logrus.StandardLogger(),
		cache:          NoCache{},
		notifier:       notify.Nop{},
		auditLog:       audit.NoOpLogger{},
		defaultModules: DefaultModules,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) caching() bool {
	_, off := e.cache.(NoCache)
	return !off
}

func (e *Engine) log(ctx context.Context) logrus.FieldLogger {
	return observability.WithTraceContext(ctx, observability.LoggerFromContext(ctx, e.logger))
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// mutate runs fn in one transaction. After a successful commit the
// tenant's cached decisions are invalidated.
func (e *Engine) mutate(ctx context.Context, op string, tenantID int64, fn func(tx *sql.Tx) error) error {
	start := time.Now()
	err := storage.WithTx(ctx, e.db, fn)
	e.metrics.ObserveMutation(op, err, time.Since(start))
	if err != nil {
		return err
	}
	e.invalidate(ctx, tenantID)
	return nil
}

func (e *Engine) invalidate(ctx context.Context, tenantID int64) {
	if !e.caching() {
		return
	}
	if err := e.cache.Invalidate(ctx, tenantID); err != nil {
		// entries stay reachable until they expire
		e.log(ctx).WithError(err).WithField("tenant_id", tenantID).Error("Failed to invalidate decision cache")
	}
}

// generation returns the tenant's cache generation. ok is false when the
// cache is disabled or unavailable.
func (e *Engine) generation(ctx context.Context, tenantID int64) (uint64, bool) {
	if !e.caching() {
		return 0, false
	}
	gen, err := e.cache.Generation(ctx, tenantID)
	if err != nil {
		e.log(ctx).WithError(err).Warn("Decision cache unavailable")
		return 0, false
	}
	return gen, true
}

func (e *Engine) cacheGet(ctx context.Context, key, keyType string, dest interface{}) bool {
	found, err := e.cache.Get(ctx, key, dest)
	if err != nil {
		e.log(ctx).WithError(err).Warn("Decision cache read failed")
		found = false
	}
	e.metrics.CacheLookup(e.cache.Name(), keyType, found)
	return found
}

func (e *Engine) cacheSet(ctx context.Context, key string, value interface{}) {
	if err := e.cache.Set(ctx, key, value); err != nil {
		e.log(ctx).WithError(err).Warn("Decision cache write failed")
	}
}

// shared runs fn once for every concurrent caller of key. fn is detached
// from the caller that started it so a disconnecting client does not fail
// the others; each caller still stops waiting when its own ctx is done.
func (e *Engine) shared(ctx context.Context, key string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	ch := e.flights.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return fn(flightCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (e *Engine) notify(ctx context.Context, eventType notify.EventType, tenantID int64, data map[string]interface{}) {
	e.notifier.Notify(ctx, &notify.Event{
		Type:      eventType,
		TenantID:  tenantID,
		RequestID: contextkeys.GetRequestID(ctx),
		Data:      data,
	})
}

// record writes an audit event without blocking or failing the caller
func (e *Engine) record(ctx context.Context, event *audit.Event) {
	event.ByUser(contextkeys.GetActorID(ctx))
	logger := e.auditLog
	async.SafeGo(ctx, e.logger, auditTimeout, "audit", func(ctx context.Context) error {
		return logger.Log(ctx, event)
	})
}

// recordFailure audits a rejected mutation
func (e *Engine) recordFailure(ctx context.Context, eventType audit.EventType, tenantID int64, resource audit.ResourceType, resourceID string, err error) {
	e.record(ctx, audit.NewEvent(ctx, eventType, audit.EventStatusFailure).
		ForTenant(tenantID).
		OnResource(resource, resourceID).
		WithMessage(err.Error()))
}

// reportViolation logs and counts a violation met on the read path and
// returns the error the request fails with
func (e *Engine) reportViolation(ctx context.Context, v Violation) error {
	e.log(ctx).WithFields(logrus.Fields{
		"kind":            v.Kind,
		"tenant_id":       v.TenantID,
		"other_tenant_id": v.OtherTenantID,
		"user_id":         v.UserID,
		"role_id":         v.RoleID,
		"activation_id":   v.ActivationID,
	}).Error("Entitlement graph integrity violation")
	e.metrics.IntegrityViolation(string(v.Kind))
	e.record(ctx, audit.NewEvent(ctx, audit.EventTypeIntegrityViolation, audit.EventStatusFailure).
		ForTenant(v.TenantID).
		WithMessage(v.String()).
		With("kind", string(v.Kind)))
	return &IntegrityError{Violation: v}
}

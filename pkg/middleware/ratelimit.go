package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modulink/pkg/httputil"
	"github.com/platinummonkey/modulink/pkg/observability"
)

// RateLimitConfig bounds the requests a tenant may make per window
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
	BurstSize         int
}

// DefaultRateLimitConfig allows 600 mutations per tenant per minute
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerWindow: 600,
		WindowDuration:    time.Minute,
		BurstSize:         60,
	}
}

func (c RateLimitConfig) withDefaults() RateLimitConfig {
	d := DefaultRateLimitConfig()
	if c.RequestsPerWindow <= 0 {
		c.RequestsPerWindow = d.RequestsPerWindow
	}
	if c.WindowDuration <= 0 {
		c.WindowDuration = d.WindowDuration
	}
	if c.BurstSize < 0 {
		c.BurstSize = 0
	}
	return c
}

// Limiter admits or rejects one request for key
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Config() RateLimitConfig
}

// MemoryLimiter is a token bucket per key held in process memory
type MemoryLimiter struct {
	config  RateLimitConfig
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens     float64
	lastUpdate time.Time
}

// NewMemoryLimiter creates an in-process limiter
func NewMemoryLimiter(config RateLimitConfig) *MemoryLimiter {
	return &MemoryLimiter{
		config:  config.withDefaults(),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Config() RateLimitConfig { return l.config }

func (l *MemoryLimiter) capacity() float64 {
	return float64(l.config.RequestsPerWindow + l.config.BurstSize)
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.capacity(), lastUpdate: now}
		l.buckets[key] = b
	}

	rate := float64(l.config.RequestsPerWindow) / l.config.WindowDuration.Seconds()
	b.tokens += now.Sub(b.lastUpdate).Seconds() * rate
	if b.tokens > l.capacity() {
		b.tokens = l.capacity()
	}
	b.lastUpdate = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Cleanup drops buckets idle for two windows; they would be full anyway
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, b := range l.buckets {
		if now.Sub(b.lastUpdate) > 2*l.config.WindowDuration {
			delete(l.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup every window until ctx is done
func (l *MemoryLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RedisLimiter shares a fixed window counter per key between replicas
type RedisLimiter struct {
	client *redis.Client
	config RateLimitConfig
	prefix string
}

// NewRedisLimiter creates a Redis backed limiter
func NewRedisLimiter(client *redis.Client, config RateLimitConfig, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisLimiter{client: client, config: config.withDefaults(), prefix: prefix}
}

func (l *RedisLimiter) Config() RateLimitConfig { return l.config }

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := time.Now().UnixNano() / int64(l.config.WindowDuration)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("redis error: %w", err)
	}
	return incr.Val() <= int64(l.config.RequestsPerWindow+l.config.BurstSize), nil
}

// RateLimit rejects requests over the limit with 429. Authenticated
// requests are keyed by tenant, others by client address. A failing limiter
// admits the request.
func RateLimit(limiter Limiter, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			if p, ok := PrincipalFromContext(r.Context()); ok {
				key = "tenant:" + strconv.FormatInt(p.TenantID, 10)
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				observability.LoggerFromContext(r.Context(), logger).WithError(err).Warn("Rate limiter unavailable")
			}
			if !allowed {
				cfg := limiter.Config()
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.WindowDuration.Seconds())))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
				httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

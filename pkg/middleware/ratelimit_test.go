package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()
	limiter := NewMemoryLimiter(RateLimitConfig{RequestsPerWindow: 60, WindowDuration: time.Minute, BurstSize: 2})
	now := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 62; i++ {
		ok, err := limiter.Allow(ctx, "tenant:1")
		require.NoError(t, err)
		require.True(t, ok, "request %d", i)
	}
	ok, _ := limiter.Allow(ctx, "tenant:1")
	assert.False(t, ok, "bucket exhausted")

	ok, _ = limiter.Allow(ctx, "tenant:2")
	assert.True(t, ok, "tenants have separate buckets")

	now = now.Add(time.Second)
	ok, _ = limiter.Allow(ctx, "tenant:1")
	assert.True(t, ok, "one token per second refills")
	ok, _ = limiter.Allow(ctx, "tenant:1")
	assert.False(t, ok)

	now = now.Add(3 * time.Minute)
	limiter.Cleanup()
	assert.Empty(t, limiter.buckets)
}

func TestRedisLimiter(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	limiter := NewRedisLimiter(client, RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Hour}, "test")
	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "tenant:1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "tenant:1")
	require.NoError(t, err)
	assert.False(t, ok)

	mr.SetError("ERR down")
	ok, err = limiter.Allow(ctx, "tenant:1")
	assert.Error(t, err)
	assert.True(t, ok, "fails open")
}

func TestRateLimitMiddleware(t *testing.T) {
	logger, _ := test.NewNullLogger()
	limiter := NewMemoryLimiter(RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour})
	handler := RateLimit(limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(p *Principal) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if p != nil {
			req = req.WithContext(WithPrincipal(req.Context(), p))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	acme := &Principal{UserID: 1, TenantID: 1}
	assert.Equal(t, http.StatusNoContent, call(acme).Code)

	rec := call(&Principal{UserID: 2, TenantID: 1})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "limit is shared by the tenant")
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, call(&Principal{UserID: 3, TenantID: 2}).Code)
	assert.Equal(t, http.StatusNoContent, call(nil).Code, "anonymous callers are keyed by address")
}

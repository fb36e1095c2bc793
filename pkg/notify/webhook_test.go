package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2}
}

type receiver struct {
	mu       sync.Mutex
	events   []Event
	headers  []http.Header
	payloads [][]byte
	failures int32
	status   int
}

func (rc *receiver) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&rc.failures, -1) >= 0 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var event Event
		_ = json.Unmarshal(body, &event)

		rc.mu.Lock()
		rc.events = append(rc.events, event)
		rc.headers = append(rc.headers, r.Header.Clone())
		rc.payloads = append(rc.payloads, body)
		rc.mu.Unlock()

		if rc.status != 0 {
			w.WriteHeader(rc.status)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (rc *receiver) count() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.events)
}

func TestDeliver_SignsAndFansOut(t *testing.T) {
	a := &receiver{}
	b := &receiver{}
	skipped := &receiver{}
	srvA := httptest.NewServer(a.handler())
	defer srvA.Close()
	srvB := httptest.NewServer(b.handler())
	defer srvB.Close()
	srvC := httptest.NewServer(skipped.handler())
	defer srvC.Close()

	n := NewWebhookNotifier(context.Background(), Config{
		Targets: []Target{
			{URL: srvA.URL, Secret: "s3cret"},
			{URL: srvB.URL, Events: []EventType{EventModulePurchased}},
			{URL: srvC.URL, Events: []EventType{EventRoleDeleted}},
		},
		Retry: fastRetry(),
	}, quietLogger())
	defer n.Close(time.Second)

	event := &Event{Type: EventModulePurchased, TenantID: 4, Data: map[string]interface{}{"module_id": 7}}
	require.NoError(t, n.Deliver(context.Background(), event))

	assert.NotEmpty(t, event.ID)
	assert.False(t, event.Timestamp.IsZero())

	require.Equal(t, 1, a.count())
	require.Equal(t, 1, b.count())
	assert.Equal(t, 0, skipped.count())

	assert.Equal(t, int64(4), a.events[0].TenantID)
	assert.Equal(t, "module.purchased", a.headers[0].Get("X-Modulink-Event"))
	assert.True(t, VerifySignature(a.payloads[0], a.headers[0].Get("X-Modulink-Signature"), "s3cret"))
	assert.Empty(t, b.headers[0].Get("X-Modulink-Signature"))
}

func TestDeliver_RetriesThenSucceeds(t *testing.T) {
	rc := &receiver{failures: 2}
	srv := httptest.NewServer(rc.handler())
	defer srv.Close()

	n := NewWebhookNotifier(context.Background(), Config{
		Targets: []Target{{URL: srv.URL}},
		Retry:   fastRetry(),
	}, quietLogger())
	defer n.Close(time.Second)

	require.NoError(t, n.Deliver(context.Background(), &Event{Type: EventRoleDeleted}))
	assert.Equal(t, 1, rc.count())
}

func TestDeliver_GivesUp(t *testing.T) {
	rc := &receiver{failures: 100}
	srv := httptest.NewServer(rc.handler())
	defer srv.Close()

	n := NewWebhookNotifier(context.Background(), Config{
		Targets: []Target{{URL: srv.URL}},
		Retry:   fastRetry(),
	}, quietLogger())
	defer n.Close(time.Second)

	err := n.Deliver(context.Background(), &Event{Type: EventRoleDeleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(100-3), atomic.LoadInt32(&rc.failures))
}

func TestNotify_IsAsynchronous(t *testing.T) {
	rc := &receiver{}
	srv := httptest.NewServer(rc.handler())
	defer srv.Close()

	n := NewWebhookNotifier(context.Background(), Config{
		Targets: []Target{{URL: srv.URL}},
		Retry:   fastRetry(),
	}, quietLogger())

	n.Notify(context.Background(), &Event{Type: EventModuleUninstalled, TenantID: 1})
	require.NoError(t, n.Close(5*time.Second))
	assert.Equal(t, 1, rc.count())
}

func TestNotify_NoTargets(t *testing.T) {
	n := NewWebhookNotifier(context.Background(), Config{}, quietLogger())
	defer n.Close(time.Second)

	event := &Event{Type: EventModulePurchased}
	n.Notify(context.Background(), event)
	assert.Empty(t, event.ID, "events are not stamped when nobody listens")
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 5 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cfg.Delay(tt.attempt), "attempt %d", tt.attempt)
	}

	defaults := RetryConfig{}.withDefaults()
	assert.Equal(t, DefaultRetryConfig(), defaults)
}

func TestTarget_Wants(t *testing.T) {
	assert.True(t, Target{}.Wants(EventRoleDeleted))
	assert.True(t, Target{Events: []EventType{EventRoleDeleted}}.Wants(EventRoleDeleted))
	assert.False(t, Target{Events: []EventType{EventRoleDeleted}}.Wants(EventModulePurchased))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"1"}`)
	sig := Sign(payload, "k")
	assert.True(t, VerifySignature(payload, sig, "k"))
	assert.False(t, VerifySignature(payload, sig, "other"))
	assert.False(t, VerifySignature([]byte(`{}`), sig, "k"))
}

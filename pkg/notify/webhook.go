package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/modulink/pkg/async"
)

// Config configures a WebhookNotifier
type Config struct {
	Targets   []Target
	Workers   int
	QueueSize int
	Timeout   time.Duration // per HTTP request
	Retry     RetryConfig
}

// WebhookNotifier posts events to webhook targets
type WebhookNotifier struct {
	targets []Target
	client  *http.Client
	retry   RetryConfig
	pool    *async.WorkerPool
	logger  logrus.FieldLogger
}

// NewWebhookNotifier starts the delivery workers. Call Close on shutdown.
func NewWebhookNotifier(ctx context.Context, cfg Config, logger logrus.FieldLogger) *WebhookNotifier {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	retry := cfg.Retry.withDefaults()

	logger = logger.WithField("component", "notifier")

	// a task covers every attempt against every target
	taskTimeout := time.Duration(retry.MaxAttempts)*(cfg.Timeout+retry.MaxDelay) + time.Second

	return &WebhookNotifier{
		targets: cfg.Targets,
		client:  &http.Client{Timeout: cfg.Timeout},
		retry:   retry,
		pool:    async.NewWorkerPool(ctx, logger, cfg.Workers, cfg.QueueSize, "webhook delivery", taskTimeout),
		logger:  logger,
	}
}

// Notify queues event for delivery and returns immediately
func (n *WebhookNotifier) Notify(_ context.Context, event *Event) {
	if len(n.targets) == 0 {
		return
	}
	stamp(event)

	err := n.pool.Submit(func(ctx context.Context) error {
		return n.Deliver(ctx, event)
	})
	if err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
		}).Warn("Dropping notification")
	}
}

// Deliver sends event to every interested target in parallel and waits for
// all of them. The returned error is the first target that gave up.
func (n *WebhookNotifier) Deliver(ctx context.Context, event *Event) error {
	stamp(event)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// a failing target must not cancel the others
	var g errgroup.Group
	for _, target := range n.targets {
		if !target.Wants(event.Type) {
			continue
		}
		target := target
		g.Go(func() error {
			return n.deliverWithRetry(ctx, target, event, payload)
		})
	}
	return g.Wait()
}

func (n *WebhookNotifier) deliverWithRetry(ctx context.Context, target Target, event *Event, payload []byte) error {
	log := n.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"tenant_id":  event.TenantID,
		"url":        target.URL,
	})

	var err error
	for attempt := 1; attempt <= n.retry.MaxAttempts; attempt++ {
		if err = n.send(ctx, target, event, payload); err == nil {
			log.WithField("attempts", attempt).Debug("Notification delivered")
			return nil
		}

		if attempt == n.retry.MaxAttempts {
			break
		}
		log.WithError(err).WithField("attempt", attempt).Debug("Notification attempt failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.retry.Delay(attempt)):
		}
	}

	log.WithError(err).Warn("Giving up on notification")
	return fmt.Errorf("delivery to %s failed after %d attempts: %w", target.URL, n.retry.MaxAttempts, err)
}

func (n *WebhookNotifier) send(ctx context.Context, target Target, event *Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Modulink-Event", string(event.Type))
	req.Header.Set("X-Modulink-Event-ID", event.ID)
	if target.Secret != "" {
		req.Header.Set("X-Modulink-Signature", Sign(payload, target.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-2xx status: %d", resp.StatusCode)
	}
	return nil
}

// Close stops accepting events and waits up to timeout for queued ones
func (n *WebhookNotifier) Close(timeout time.Duration) error {
	return n.pool.Shutdown(timeout)
}

func stamp(event *Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
}

// Sign returns the HMAC-SHA256 signature header value for payload
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by Sign
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

package audit

import "context"

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes and releases the logger
	Close() error
}

// NoOpLogger discards every event
type NoOpLogger struct{}

func (NoOpLogger) Log(context.Context, *Event) error { return nil }

func (NoOpLogger) Close() error { return nil }

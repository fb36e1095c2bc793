package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogrusLogger writes audit events as structured log lines
type LogrusLogger struct {
	logger logrus.FieldLogger
}

// NewLogrusLogger creates a logger writing to logger
func NewLogrusLogger(logger logrus.FieldLogger) *LogrusLogger {
	return &LogrusLogger{logger: logger.WithField("component", "audit")}
}

// Log writes event at info level, or warn level when it is not a success
func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	fields := logrus.Fields{
		"event_type": event.EventType,
		"status":     event.Status,
	}
	if event.TenantID != nil {
		fields["tenant_id"] = *event.TenantID
	}
	if event.UserID != nil {
		fields["user_id"] = *event.UserID
	}
	if event.ResourceType != "" {
		fields["resource_type"] = event.ResourceType
		fields["resource_id"] = event.ResourceID
	}
	if event.RequestID != "" {
		fields["request_id"] = event.RequestID
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	entry := l.logger.WithFields(fields)
	if event.Status == EventStatusSuccess {
		entry.Info(event.Message)
	} else {
		entry.Warn(event.Message)
	}
	return nil
}

// Close is a no-op
func (l *LogrusLogger) Close() error {
	return nil
}

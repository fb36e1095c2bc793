package observability

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modulink/pkg/contextkeys"
)

// Log formats accepted by NewLogger
const (
	FormatJSON = "json"
	FormatText = "text"
)

// NewLogger builds the process logger. Unknown levels fall back to info and
// unknown formats to JSON.
func NewLogger(level, format string, output io.Writer) *logrus.Logger {
	if output == nil {
		output = os.Stdout
	}

	logger := logrus.New()
	logger.SetOutput(output)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case FormatText:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	}

	return logger
}

// WithLogger stores a request scoped logger
func WithLogger(ctx context.Context, logger logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, contextkeys.LoggerKey, logger)
}

// LoggerFromContext returns the request scoped logger, falling back to the
// given default. The request id is attached when present.
func LoggerFromContext(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	logger := fallback
	if l, ok := ctx.Value(contextkeys.LoggerKey).(logrus.FieldLogger); ok && l != nil {
		return l
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if id := contextkeys.GetRequestID(ctx); id != "" {
		return logger.WithField("request_id", id)
	}
	return logger
}

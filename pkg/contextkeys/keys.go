// Package contextkeys provides centralized context key definitions
//
// All context keys used across modulink are defined here so that packages
// exchanging request-scoped values do not need to import each other.
//
// USAGE PATTERN:
//
//	ctx = contextkeys.WithRequestID(ctx, id)
//	id := contextkeys.GetRequestID(ctx)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *middleware.Principal
	// Set by: middleware.Authenticate (pkg/middleware/identity.go)
	// Required by: every tenant-scoped API endpoint
	PrincipalKey Key = "principal"

	// ActorIDKey contains the int64 id of the user performing the request
	// Set by: middleware.Authenticate
	// Used by: entitlement engine audit events
	ActorIDKey Key = "actor_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail, notifications
	RequestIDKey Key = "request_id"

	// LoggerKey contains logrus.FieldLogger scoped to the request
	// Set by: httputil.RequestIDMiddleware
	LoggerKey Key = "logger"
)

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithActorID records the acting user
func WithActorID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, ActorIDKey, userID)
}

// GetActorID returns the acting user, or 0 for system actors
func GetActorID(ctx context.Context) int64 {
	if id, ok := ctx.Value(ActorIDKey).(int64); ok {
		return id
	}
	return 0
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

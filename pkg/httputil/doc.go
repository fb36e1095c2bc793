// Package httputil holds the JSON and middleware plumbing shared by the
// HTTP handlers.
//
// Errors are always written as
//
//	{"error": "...", "code": "...", "request_id": "..."}
//
// with code present only when a handler maps a domain error to one.
//
// The middleware chain used by the server is
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//		httputil.ContentTypeMiddleware,
//	)
//
// RequestIDMiddleware must run first so every later log line and error body
// carries the request id.
package httputil

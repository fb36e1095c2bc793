// Package notify delivers entitlement events to external webhooks.
//
// Delivery is fire-and-forget. Notify queues the event on a bounded worker
// pool and returns immediately; a full queue drops the event with a warning.
// Each event is sent to every interested target in parallel, and each target
// is retried with exponential backoff. Nothing here ever reports an error to
// the operation that produced the event.
//
// Payloads are signed with HMAC-SHA256 when the target has a secret:
//
//	X-Modulink-Signature: sha256=<hex>
//
// Receivers check it with VerifySignature.
package notify

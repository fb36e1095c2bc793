// Package async runs background work that must never fail or block the
// caller.
//
// # SafeGo
//
// SafeGo runs a function in its own goroutine with a timeout. Panics are
// recovered and errors are logged. The task's context is detached from the
// parent's cancellation, so work started by an HTTP handler survives the
// response being written, while request-scoped values stay available:
//
//	async.SafeGo(r.Context(), logger, 5*time.Second, "purchase notification", func(ctx context.Context) error {
//		return notifier.Deliver(ctx, event)
//	})
//
// # WorkerPool
//
// WorkerPool bounds the number of concurrent background tasks. Submit never
// blocks: when the queue is full the task is rejected with ErrQueueFull and
// the caller decides whether to drop it.
//
//	pool := async.NewWorkerPool(ctx, logger, 4, 256, "webhook delivery", 30*time.Second)
//	defer pool.Shutdown(5 * time.Second)
//
//	if err := pool.Submit(task); err != nil {
//		logger.WithError(err).Warn("Dropping notification")
//	}
package async

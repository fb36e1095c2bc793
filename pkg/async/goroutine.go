package async

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrQueueFull is returned by Submit when every queue slot is taken
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrPoolClosed is returned by Submit after Shutdown
	ErrPoolClosed = errors.New("worker pool shut down")
)

// SafeGo executes fn in a goroutine bounded by timeout. The goroutine keeps
// running when parent is cancelled. Panics and errors are logged.
func SafeGo(parent context.Context, logger logrus.FieldLogger, timeout time.Duration, task string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
		defer cancel()

		if err := run(ctx, fn); err != nil {
			logger.WithError(err).WithField("task", task).Warn("Background task failed")
		}
	}()
}

// run calls fn and converts a panic into an error
func run(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx)
}

// WorkerPool runs submitted tasks on a fixed number of goroutines
type WorkerPool struct {
	logger  logrus.FieldLogger
	task    string
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	workCh chan func(context.Context) error
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool starts workers goroutines reading from a queue of size
// queue. Each task gets its own timeout derived from ctx.
func NewWorkerPool(ctx context.Context, logger logrus.FieldLogger, workers, queue int, task string, timeout time.Duration) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}

	ctx, cancel := context.WithCancel(ctx)
	pool := &WorkerPool{
		logger:  logger.WithField("task", task),
		task:    task,
		timeout: timeout,
		workCh:  make(chan func(context.Context) error, queue),
		ctx:     ctx,
		cancel:  cancel,
	}

	pool.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker(i)
	}
	return pool
}

// Submit queues fn without blocking
func (p *WorkerPool) Submit(fn func(context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.workCh <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits up to timeout for queued tasks
// to finish. Tasks still running after timeout have their context cancelled.
func (p *WorkerPool) Shutdown(timeout time.Duration) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.workCh)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-time.After(timeout):
		p.cancel()
		return fmt.Errorf("worker pool %s shutdown timed out after %v", p.task, timeout)
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for fn := range p.workCh {
		ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
		if err := run(ctx, fn); err != nil {
			p.logger.WithError(err).WithField("worker", id).Warn("Task failed")
		}
		cancel()
	}
}

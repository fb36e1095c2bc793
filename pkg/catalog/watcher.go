package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/modulink/pkg/storage"
)

// Watcher re-syncs the catalog whenever the seed file changes
type Watcher struct {
	path     string
	db       storage.TxBeginner
	logger   logrus.FieldLogger
	delay    time.Duration
	onSynced func(*SeedFile)
	onFailed func(error)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the seed file at path. Bursts of write
// events within delay collapse into one sync.
func NewWatcher(path string, db storage.TxBeginner, logger logrus.FieldLogger, delay time.Duration) *Watcher {
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	return &Watcher{
		path:   filepath.Clean(path),
		db:     db,
		logger: logger.WithField("component", "catalog_watcher"),
		delay:  delay,
	}
}

// OnSynced registers a callback run after every successful sync
func (w *Watcher) OnSynced(fn func(*SeedFile)) {
	w.onSynced = fn
}

// OnFailed registers a callback run when a changed seed cannot be loaded
// or synced. The previous catalog stays in place.
func (w *Watcher) OnFailed(fn func(error)) {
	w.onFailed = fn
}

// Run blocks until ctx is cancelled. The parent directory is watched rather
// than the file so editors that replace the file on save are still seen.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	w.logger.WithField("path", w.path).Info("Watching catalog seed for changes")

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule(ctx)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Catalog watcher error")
		}
	}
}

func (w *Watcher) schedule(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, func() {
		w.sync(ctx)
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) sync(ctx context.Context) {
	seed, err := LoadSeedFile(w.path)
	if err != nil {
		// keep the previous catalog until the file is fixed
		w.logger.WithError(err).Error("Failed to load catalog seed")
		w.failed(err)
		return
	}

	if err := Sync(ctx, w.db, seed); err != nil {
		w.logger.WithError(err).Error("Failed to sync catalog")
		w.failed(err)
		return
	}

	w.logger.WithField("modules", len(seed.Modules)).Info("Catalog synced")
	if w.onSynced != nil {
		w.onSynced(seed)
	}
}

func (w *Watcher) failed(err error) {
	if w.onFailed != nil {
		w.onFailed(err)
	}
}

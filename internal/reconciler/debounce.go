package reconciler

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debouncer collapses rapid repeated triggers into one callback invocation
// after a quiet window. Triggering while the window is open resets it.
type Debouncer struct {
	window  time.Duration
	trigger chan struct{}
}

// NewDebouncer creates a debouncer invoking fn from Run after the window.
func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = 300 * time.Millisecond
	}
	return &Debouncer{
		window:  window,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests a pass. Safe to call from any goroutine; triggers during
// an open window coalesce.
func (d *Debouncer) Trigger() {
	select {
	case d.trigger <- struct{}{}:
	default:
	}
}

// Run processes triggers until ctx is cancelled, calling fn once per quiet
// window. Debouncing is a scheduling optimisation only; fn must be safe to
// call at any time.
func (d *Debouncer) Run(ctx context.Context, fn func()) {
	var timer *time.Timer
	var timerCh <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(d.window)
			timerCh = timer.C
		} else {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.window)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-d.trigger:
			schedule()
		case <-timerCh:
			fn()
		}
	}
}

// WatchQueue watches the file backing the import queue and triggers the
// debouncer on every write, so batches queued by another process are folded
// in without polling. The watch is on the parent directory because the
// store replaces the file on each write (rename breaks a direct watch).
func WatchQueue(ctx context.Context, queuePath string, d *Debouncer, logger *slog.Logger) error {
	if queuePath == "" {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(queuePath)); err != nil {
		return err
	}

	logger.Info("queue watcher started", slog.String("path", queuePath))

	for {
		select {
		case <-ctx.Done():
			logger.Info("queue watcher stopped")
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Name != queuePath {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				d.Trigger()
			}
		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("queue watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// Package filewatch calls a handler when a named file in a directory changes.
// Bursts of events for the same file collapse into one call.
package filewatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"dailysender/pkg/retry"
)

// DefaultDebounce is the quiet period after the last event before a handler runs.
const DefaultDebounce = 250 * time.Millisecond

// Handler reacts to a change of one watched file.
type Handler func(ctx context.Context)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// Watcher watches a single directory. Files are matched by base name, so the
// temp-file-and-rename writes of jsonfile are seen as changes to the target.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *slog.Logger
	retry    retry.Config

	mu       sync.Mutex
	handlers map[string]Handler
}

// New returns a Watcher for dir. Nothing is watched until Run.
func New(dir string, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		handlers: make(map[string]Handler),
		retry: retry.Config{
			MaxAttempts:    5,
			InitialDelay:   250 * time.Millisecond,
			MaxDelay:       5 * time.Second,
			JitterStrategy: retry.JitterEqual,
		},
	}
	for _, o := range opts {
		o(w)
	}
	w.logger = w.logger.With("component", "filewatch", "dir", dir)
	return w
}

// Handle registers fn for the file called name inside the directory.
func (w *Watcher) Handle(name string, fn Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[strings.ToLower(filepath.Base(name))] = fn
}

// Run blocks until ctx is done. It returns nil on cancellation and an error
// when the directory cannot be watched or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := w.open(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer fw.Close()
	w.logger.Debug("watching")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return errors.New("filewatch: event channel closed")
			}
			name := strings.ToLower(filepath.Base(ev.Name))
			if !w.watched(name) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.logger.Debug("change detected", "file", name, "op", ev.Op.String())
			pending[name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("filewatch: error channel closed")
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("event overflow, reloading every file")
				w.mu.Lock()
				for name := range w.handlers {
					pending[name] = struct{}{}
				}
				w.mu.Unlock()
				timer.Reset(w.debounce)
				continue
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			for name := range pending {
				delete(pending, name)
				if fn := w.handler(name); fn != nil {
					fn(ctx)
				}
			}
		}
	}
}

func (w *Watcher) open(ctx context.Context) (*fsnotify.Watcher, error) {
	var fw *fsnotify.Watcher
	cfg := w.retry
	cfg.OnRetry = func(attempt int, err error, next time.Duration) {
		w.logger.Warn("watch setup failed, retrying", "attempt", attempt, "error", err, "backoff", next)
	}
	err := retry.DoWithRetryable(ctx, cfg, func(context.Context) error {
		nw, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		if err := nw.Add(w.dir); err != nil {
			_ = nw.Close()
			return err
		}
		fw = nw
		return nil
	}, func(error) bool { return true })
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", w.dir, err)
	}
	return fw, nil
}

func (w *Watcher) watched(name string) bool {
	return w.handler(name) != nil
}

func (w *Watcher) handler(name string) Handler {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handlers[name]
}

package control

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a settings file when it changes and posts valid results to a Mailbox.
type Watcher struct {
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
	mailbox  *Mailbox
	path     string
	debounce time.Duration
}

// WatcherOption is a functional option for configuring a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger of the watcher.
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithDebounce sets how long the file must stay quiet before it is reloaded. Defaults to 200ms.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for path. The file's directory is watched so that editors that
// replace the file on save are followed.
//
// Parameters:
//   - path: the settings file
//   - mailbox: receives every successfully reloaded settings
//   - options: variadic list of WatcherOption functions
//
// Returns:
//   - *Watcher: the watcher, idle until Run
//   - error: an error if the file system watcher could not be created
func NewWatcher(path string, mailbox *Mailbox, options ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		logger:   zap.NewNop(),
		watcher:  fw,
		mailbox:  mailbox,
		path:     abs,
		debounce: 200 * time.Millisecond,
	}
	for _, opt := range options {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is done, then closes the file system watcher.
//
// Parameters:
//   - ctx: stops the watcher
//
// Returns:
//   - error: an error if the directory cannot be watched; nil when ctx ends the run
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("watching settings", zap.String("path", w.path))

	debounce := time.NewTimer(0)
	<-debounce.C

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.relevant(event) {
				debounce.Reset(w.debounce)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("settings watcher error", zap.Error(err))

		case <-debounce.C:
			w.reload()

		case <-ctx.Done():
			debounce.Stop()
			w.logger.Info("stopped watching settings", zap.String("path", w.path))
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) reload() {
	s, err := LoadSettings(w.path)
	if err != nil {
		w.logger.Error("settings reload rejected", zap.Error(err))
		return
	}
	w.logger.Info("settings reloaded",
		zap.String("renderer", s.Renderer),
		zap.String("particleType", s.ParticleType),
		zap.Int("particleCount", s.ParticleCount),
	)
	w.mailbox.Post(s)
}

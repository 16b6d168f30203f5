package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"tailcast/internal/logging"
)

// Notifier receives raw change notifications.
type Notifier interface {
	Notify()
}

// Watcher forwards OS change events for a single file to a Notifier. It
// watches the parent directory so a file created or replaced after startup is
// still observed.
type Watcher struct {
	path     string
	inotify  *fsnotify.Watcher
	notifier Notifier
	logger   *slog.Logger
}

// NewWatcher registers the watch. A registration failure is returned and no
// resources are held.
func NewWatcher(path string, notifier Notifier, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve watched path: %w", err)
	}
	inotify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := inotify.Add(dir); err != nil {
		_ = inotify.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}
	return &Watcher{
		path:     abs,
		inotify:  inotify,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "watcher"),
	}, nil
}

// Path returns the absolute watched path.
func (w *Watcher) Path() string {
	return w.path
}

// Run forwards events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.inotify.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.logger.Debug("file event", logging.String("op", event.Op.String()))
			w.notifier.Notify()
		case err, ok := <-w.inotify.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", logging.Error(err))
		}
	}
}

// Close releases the OS watch.
func (w *Watcher) Close() error {
	return w.inotify.Close()
}

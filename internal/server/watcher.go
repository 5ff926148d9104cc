package server

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// watcher observes one file for changes, debouncing bursts of events.
// The parent directory is watched because editors typically replace the
// file rather than write it in place.
type watcher struct {
	logger   *log.Logger
	path     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	onChange func()

	mu      sync.Mutex
	pending bool
}

func newWatcher(path string, debounce time.Duration, logger *log.Logger, onChange func()) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &watcher{
		logger:   logger,
		path:     path,
		debounce: debounce,
		fsw:      fsw,
		onChange: onChange,
	}, nil
}

func (w *watcher) close() {
	_ = w.fsw.Close()
}

// run processes events until ctx is cancelled. Changes accumulate as a
// pending flag that a ticker flushes, so rapid successive writes trigger
// one refresh.
func (w *watcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}
	w.mu.Lock()
	w.pending = true
	w.mu.Unlock()
	w.logger.Debug("change detected", "path", w.path, "op", event.Op.String())
}

func (w *watcher) flush() {
	w.mu.Lock()
	pending := w.pending
	w.pending = false
	w.mu.Unlock()
	if pending {
		w.onChange()
	}
}

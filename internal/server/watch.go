package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ppiankov/pactline/internal/catalog"
)

// debounceDelay waits for editors to finish writing before re-hashing.
var debounceDelay = 500 * time.Millisecond

// CatalogWatcher reports on-disk changes to the catalog file. The running
// engine keeps the catalog it started with; a change only logs that a
// restart is required, with the new content hash.
type CatalogWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	logger  *slog.Logger

	mu   sync.Mutex
	hash string
}

// NewCatalogWatcher watches the directory holding path, so that editors
// replacing the file by rename are still seen. hash is the content hash the
// engine was started with.
func NewCatalogWatcher(path, hash string, logger *slog.Logger) (*CatalogWatcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", path, err)
	}
	return &CatalogWatcher{watcher: watcher, path: abs, logger: logger, hash: hash}, nil
}

// Check re-reads the catalog and reports whether its hash moved away from
// the last one seen. An unparsable catalog is an error.
func (w *CatalogWatcher) Check() (string, bool, error) {
	_, hash, err := catalog.LoadWithHash(w.path)
	if err != nil {
		return "", false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if hash == w.hash {
		return hash, false, nil
	}
	w.hash = hash
	return hash, true, nil
}

// Run watches until ctx is cancelled.
func (w *CatalogWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var debounce *time.Timer
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.report)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalog watcher error", "error", err)
		}
	}
}

func (w *CatalogWatcher) report() {
	hash, changed, err := w.Check()
	switch {
	case err != nil:
		w.logger.Error("catalog on disk is invalid; the running catalog is unchanged", "path", w.path, "error", err)
	case changed:
		w.logger.Warn("catalog changed on disk; restart required to apply it", "path", w.path, "hash", hash)
	}
}

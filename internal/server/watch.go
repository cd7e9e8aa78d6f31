package server

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadWindow is how long a dataset must be quiet before its cached
// index is dropped.
const DefaultReloadWindow = 500 * time.Millisecond

// RootWatcher drops cached indexes whose directories change on disk, so a
// rebuilt dataset is reopened on its next request.
type RootWatcher struct {
	root   string
	cache  *IndexCache
	window time.Duration
	fsw    *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	stopped bool
}

// NewRootWatcher watches every directory under root.
func NewRootWatcher(root string, cache *IndexCache, window time.Duration) (*RootWatcher, error) {
	if window <= 0 {
		window = DefaultReloadWindow
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve index root: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &RootWatcher{
		root:    absRoot,
		cache:   cache,
		window:  window,
		fsw:     fsw,
		pending: make(map[string]*time.Timer),
	}
	if err := w.addRecursive(absRoot); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run handles events until ctx is cancelled or the watcher is closed.
func (w *RootWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Warn("index_watch_error", slog.String("error", err.Error()))
		}
	}
}

// Close stops watching and cancels pending invalidations.
func (w *RootWatcher) Close() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for _, t := range w.pending {
		t.Stop()
	}
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *RootWatcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	dataset := w.datasetOf(event.Name)
	if dataset == "" {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
		}
	}
	w.schedule(dataset)
}

// schedule restarts the quiet period of dataset.
func (w *RootWatcher) schedule(dataset string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.pending[dataset]; ok {
		t.Reset(w.window)
		return
	}
	w.pending[dataset] = time.AfterFunc(w.window, func() {
		w.mu.Lock()
		delete(w.pending, dataset)
		stopped := w.stopped
		w.mu.Unlock()
		if !stopped && w.cache.Invalidate(dataset) {
			slog.Info("index_invalidated", slog.String("dataset", dataset))
		}
	})
}

// datasetOf returns the first path element below the root. A build lock
// file belongs to the dataset it guards.
func (w *RootWatcher) datasetOf(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	name := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return strings.TrimSuffix(name, ".lock")
}

func (w *RootWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a config file for writes and emits a freshly loaded
// and validated Config on each change. Grounded on the teacher's
// HotReloadSystem (engine/internal/runtime/runtime.go): a single
// fsnotify.Watcher on the file's directory, filtered to the exact
// filename, re-loading and re-validating on every Write event.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu         sync.Mutex
	isWatching bool
}

// NewWatcher creates a Watcher for the config file at path.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, watcher: fw}, nil
}

// Watch starts watching the config file's directory and returns a
// channel of successfully reloaded configs and a channel of errors
// (from both the filesystem watcher and failed reloads). Both channels
// close when ctx is cancelled or Stop is called.
func (w *Watcher) Watch(ctx context.Context) (<-chan *Config, <-chan error) {
	changes := make(chan *Config, 1)
	errs := make(chan error, 1)

	w.mu.Lock()
	if w.isWatching {
		w.mu.Unlock()
		close(changes)
		close(errs)
		return changes, errs
	}
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		w.mu.Unlock()
		errs <- err
		close(changes)
		close(errs)
		return changes, errs
	}
	w.isWatching = true
	w.mu.Unlock()

	go func() {
		defer close(changes)
		defer close(errs)
		for {
			select {
			case e, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != filepath.Clean(w.path) {
					continue
				}
				if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := Load(w.path)
				if err != nil {
					errs <- err
					continue
				}
				changes <- cfg
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				errs <- err
			case <-ctx.Done():
				return
			}
		}
	}()

	return changes, errs
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isWatching {
		return nil
	}
	w.isWatching = false
	return w.watcher.Close()
}

// Package watcher reports settled changes to input tables so that only the
// affected pairs are rebuilt.
//
// Events are batched: every accepted event restarts the settle timer, and
// when the tree has been quiet for SettleDelay the handler receives the
// sorted set of changed paths. Removed files are reported like any other
// change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/FocuswithJustin/versealign/internal/logging"
)

// Handler is called with each settled batch of changed paths. It runs on
// the watcher goroutine; events arriving meanwhile are queued by fsnotify.
type Handler func(ctx context.Context, paths []string)

// Watcher monitors input files.
type Watcher struct {
	opts      Options
	fs        *fsnotify.Watcher
	closeOnce sync.Once
}

// New creates a watcher. Add paths with Watch, then call Run.
func New(opts Options) (*Watcher, error) {
	opts.setDefaults()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{opts: opts, fs: fw}, nil
}

// Watch adds a path. Directories are watched recursively; for a file its
// parent directory is watched.
func (w *Watcher) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return w.fs.Add(filepath.Dir(path))
	}
	return w.watchDir(path)
}

func (w *Watcher) watchDir(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			logging.Warn("failed to access path", "path", p, "error", err.Error())
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.opts.shouldIgnore(p) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		logging.Debug("added watch", "path", p)
		return nil
	})
}

// Run delivers batches to handle until ctx is done. It closes the watcher
// on return.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	defer w.Close()

	timer := time.NewTimer(w.opts.SettleDelay)
	timer.Stop()
	defer timer.Stop()

	pending := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.accept(ev) {
				pending[ev.Name] = true
				timer.Reset(w.opts.SettleDelay)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logging.Warn("watch error", "error", err.Error())
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			logging.Debug("changes settled", "paths", len(paths))
			handle(ctx, paths)
		}
	}
}

// accept reports whether ev is a change to a matching file. New
// directories are added to the watch set.
func (w *Watcher) accept(ev fsnotify.Event) bool {
	if w.opts.shouldIgnore(ev.Name) {
		return false
	}
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.watchDir(ev.Name); err != nil {
				logging.Warn("failed to watch new directory", "path", ev.Name, "error", err.Error())
			}
			return false
		}
	}
	if w.opts.Match != nil && !w.opts.Match(ev.Name) {
		return false
	}
	return true
}

// Close releases the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.fs.Close()
	})
	return err
}

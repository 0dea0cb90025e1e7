package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports files dropped into, changed in or removed from a folder
// tree. Events are debounced per relative path, so an editor's burst of
// writes arrives as a single event once the file settles.
type Watcher struct {
	root      string
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	filter    Filter

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewWatcher creates a watcher for root. Paths the filter rejects never
// produce events; ignored directories are not watched at all.
func NewWatcher(root string, debounce time.Duration, filter Filter) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		root:      root,
		fs:        fsw,
		debouncer: NewDebouncer(debounce),
		filter:    filter,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// Start watches root and its subdirectories until ctx is done or Stop is
// called
func (w *Watcher) Start(ctx context.Context) error {
	n, err := w.watchTree(w.root)
	if err != nil {
		return err
	}

	go w.loop(ctx)

	slog.Info("inbox watcher started",
		"path", w.root,
		"directories", n,
		"ignore_patterns", len(w.filter.Ignore))
	return nil
}

// Events returns the debounced events, keyed by slash-separated path
// relative to root
func (w *Watcher) Events() <-chan Event {
	return w.debouncer.Events()
}

// Stop ends the event loop and closes the events channel
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.fs.Close()
		<-w.done
		w.debouncer.Stop()
	})
	return err
}

// rel returns path relative to root in slash form
func (w *Watcher) rel(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// watchTree adds dir and every directory below it that is not ignored
func (w *Watcher) watchTree(dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			slog.Warn("error walking path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok && rel != "." && w.filter.Ignored(rel) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			slog.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return count, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, ok := w.rel(ev.Name)
	if !ok || w.filter.Ignored(rel) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// Files copied in together with the directory never raise
			// their own create events.
			if _, err := w.watchTree(ev.Name); err != nil {
				slog.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
			w.addExisting(ev.Name)
			return
		}
		w.emit(rel, EventCreate)

	case ev.Has(fsnotify.Write):
		w.emit(rel, EventModify)

	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// The new name of a rename arrives as a create
		w.emit(rel, EventDelete)
	}
}

func (w *Watcher) emit(rel string, t EventType) {
	if w.filter.Included(rel) {
		w.debouncer.Add(rel, t)
	}
}

// addExisting reports the files already present below a new directory
func (w *Watcher) addExisting(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok && !w.filter.Ignored(rel) {
			w.emit(rel, EventCreate)
		}
		return nil
	})
}

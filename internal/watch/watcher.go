// Package watch turns a local directory into a job source: files dropped
// into the watched tree are debounced until writes settle and then handed
// to a Submitter, which is expected to enqueue a processing job for them.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Submitter receives each settled file exactly once per content change.
type Submitter interface {
	Submit(ctx context.Context, path string) error
}

type Watcher struct {
	logger    *log.Logger
	dir       string
	debounce  time.Duration
	submitter Submitter

	mu        sync.Mutex
	submitted map[string]time.Time
}

func New(logger *log.Logger, dir string, debounce time.Duration, submitter Submitter) (*Watcher, error) {
	if submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch path is not a directory: %s", dir)
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		logger:    logger,
		dir:       dir,
		debounce:  debounce,
		submitter: submitter,
		submitted: make(map[string]time.Time),
	}, nil
}

// Run scans the directory once for files that arrived while the watcher was
// down, then blocks on filesystem events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := watchRecursive(fw, w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Printf("watching dir=%s debounce=%s", w.dir, w.debounce)

	db := newDebouncer(w.debounce, func(path string) {
		w.maybeSubmit(ctx, path)
	})
	defer db.stop()

	w.initialScan(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Remove) {
				w.forget(ev.Name)
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := watchRecursive(fw, ev.Name); err != nil {
						w.logger.Printf("watch subdir failed dir=%s err=%v", ev.Name, err)
					}
					continue
				}
			}
			// Atomic replacement shows up as a rename; re-add the parent so
			// the new inode keeps getting events.
			if ev.Has(fsnotify.Rename) {
				if _, err := os.Stat(ev.Name); err != nil {
					w.forget(ev.Name)
					continue
				}
				fw.Add(filepath.Dir(ev.Name))
			}
			if supportedSource(ev.Name) {
				db.trigger(ev.Name)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Printf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) initialScan(ctx context.Context) {
	filepath.WalkDir(w.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if supportedSource(path) {
			w.maybeSubmit(ctx, path)
		}
		return nil
	})
}

// maybeSubmit hands the file to the submitter unless its mtime matches the
// last submission, so duplicate events for an unchanged file are dropped.
func (w *Watcher) maybeSubmit(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	w.mu.Lock()
	if prev, ok := w.submitted[path]; ok && prev.Equal(info.ModTime()) {
		w.mu.Unlock()
		return
	}
	w.submitted[path] = info.ModTime()
	w.mu.Unlock()

	if err := w.submitter.Submit(ctx, path); err != nil {
		w.logger.Printf("submit failed path=%s err=%v", path, err)
		w.forget(path)
		return
	}
	w.logger.Printf("submitted path=%s bytes=%d", path, info.Size())
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.submitted, path)
	w.mu.Unlock()
}

func watchRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}

func supportedSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".pdf":
		return true
	}
	return false
}

// debouncer coalesces rapid event bursts into a single callback per file.
type debouncer struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	delay  time.Duration
	onFire func(path string)
}

func newDebouncer(delay time.Duration, onFire func(path string)) *debouncer {
	return &debouncer{
		timers: make(map[string]*time.Timer),
		delay:  delay,
		onFire: onFire,
	}
}

func (d *debouncer) trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[path]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()
		d.onFire(path)
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for path, t := range d.timers {
		t.Stop()
		delete(d.timers, path)
	}
}

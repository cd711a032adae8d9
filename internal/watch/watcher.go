// Package watch reruns a build when its input files change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"codesplice/internal/logging"
)

// Handler is called once per settled batch of changes with the changed
// paths, sorted. It runs on the watcher goroutine, so batches never overlap.
type Handler func(ctx context.Context, changed []string)

// Stats tracks watcher activity.
type Stats struct {
	Events    int
	Batches   int
	Errors    int
	LastEvent time.Time
	LastPath  string
}

// Watcher watches a set of files. It watches their directories, since
// editors often replace a file instead of writing it in place.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	files    map[string]bool
	dirs     map[string]bool
	pending  map[string]bool
	lastSeen time.Time
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stats    Stats
}

// New creates a watcher for files. debounce is the quiet period required
// before a batch is handed to h.
func New(files []string, debounce time.Duration, h Handler) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	w := &Watcher{
		watcher:  fw,
		handler:  h,
		debounce: debounce,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		pending:  make(map[string]bool),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if err := w.SetFiles(files); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// SetFiles replaces the watched file set. Directories already watched stay
// watched.
func (w *Watcher) SetFiles(files []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.files = make(map[string]bool, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", f, err)
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if w.dirs[dir] {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
		logging.WatchDebug("watching directory %s", dir)
	}
	return nil
}

// Start runs the event loop in a goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	logging.Watch("watching %d files (debounce %v)", len(w.files), w.debounce)
	go w.run(ctx)
}

// Stop ends the event loop, waits for it, and releases the watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
	logging.Watch("watcher stopped")
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := time.NewTicker(w.debounce / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()
		case <-tick.C:
			if batch := w.settled(); len(batch) > 0 {
				logging.Watch("%d file(s) changed", len(batch))
				w.handler(ctx, batch)
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	path := filepath.Clean(ev.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[path] {
		return
	}
	logging.WatchDebug("%s %s", ev.Op, path)
	w.pending[path] = true
	w.lastSeen = time.Now()
	w.stats.Events++
	w.stats.LastEvent = w.lastSeen
	w.stats.LastPath = path
}

// settled returns and clears the pending batch once no event arrived for
// the debounce period.
func (w *Watcher) settled() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) == 0 || time.Since(w.lastSeen) < w.debounce {
		return nil
	}
	batch := make([]string, 0, len(w.pending))
	for p := range w.pending {
		batch = append(batch, p)
	}
	sort.Strings(batch)
	w.pending = make(map[string]bool)
	w.stats.Batches++
	return batch
}

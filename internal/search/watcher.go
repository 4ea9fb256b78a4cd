package search

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/khanglvm/persona-mcp/internal/logging"
	"github.com/khanglvm/persona-mcp/internal/persona"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher rebuilds an index when persona files or knowledge-base documents change.
// Bursts of events are debounced into a single rebuild.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	indexer  *Indexer
	store    *persona.Store
	kb       *persona.KnowledgeBase
	logger   *zap.Logger
	debounce time.Duration
	pending  time.Time
	rebuilds int
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewWatcher creates a watcher for store's directory and, if set, the
// knowledge-base directory tree.
func NewWatcher(indexer *Indexer, store *persona.Store, kb *persona.KnowledgeBase, logger *zap.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:  w,
		indexer:  indexer,
		store:    store,
		kb:       kb,
		logger:   logging.OrNop(logger),
		debounce: defaultDebounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// SetDebounce overrides the quiet period before a rebuild. Call before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.debounce = d
}

// Start builds the index once and begins watching. It is non-blocking.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.Reload(); err != nil {
		w.logger.Warn("initial index build failed", zap.Error(err))
	}

	if w.store != nil {
		w.add(w.store.Dir())
	}
	if w.kb != nil && w.kb.Dir() != "" {
		w.addTree(w.kb.Dir())
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("error closing file watcher", zap.Error(err))
	}
}

// Reload rebuilds the index from disk.
func (w *Watcher) Reload() error {
	docs, err := Collect(w.store, w.kb)
	if err != nil {
		return err
	}
	if err := w.indexer.Rebuild(docs); err != nil {
		return err
	}

	w.mu.Lock()
	w.rebuilds++
	w.mu.Unlock()

	w.logger.Debug("search index rebuilt", zap.Int("documents", len(docs)))
	return nil
}

// Rebuilds returns how many times the index has been rebuilt.
func (w *Watcher) Rebuilds() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rebuilds
}

func (w *Watcher) add(dir string) {
	if dir == "" {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
	}
}

func (w *Watcher) addTree(root string) {
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			w.add(path)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	// New knowledge-base directories need their own watch.
	if event.Op&fsnotify.Create != 0 && w.kb != nil && w.kb.Dir() != "" {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addTree(event.Name)
		}
	}

	if !w.relevant(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending = time.Now()
	w.mu.Unlock()
}

// relevant reports whether a path can affect the index.
func (w *Watcher) relevant(path string) bool {
	if w.store != nil && filepath.Dir(path) == filepath.Clean(w.store.Dir()) {
		return filepath.Ext(path) == persona.Ext
	}
	return w.kb != nil && w.kb.Dir() != ""
}

func (w *Watcher) flushPending() {
	w.mu.Lock()
	if w.pending.IsZero() || time.Since(w.pending) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.pending = time.Time{}
	w.mu.Unlock()

	if err := w.Reload(); err != nil {
		w.logger.Warn("search index rebuild failed", zap.Error(err))
	}
}

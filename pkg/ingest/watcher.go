package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/parser"
)

// defaultDebounce is how long a path must stay quiet before it is ingested.
// Files are often written in several bursts while being copied in.
const defaultDebounce = 500 * time.Millisecond

// WatcherConfig configures a directory watcher.
type WatcherConfig struct {
	// Dir is the directory to watch for new documents.
	Dir string

	// Pool receives an ingestion job per settled file.
	Pool *Pool

	// Docstore registers each settled file before it is enqueued.
	Docstore docstore.Driver

	// Debounce overrides the default quiet period. Mainly for tests.
	Debounce time.Duration

	Logger *slog.Logger
}

// Watcher ingests files dropped into a directory. Create and write events
// are debounced per path so a file being copied in is processed once.
type Watcher struct {
	dir      string
	pool     *Pool
	store    docstore.Driver
	logger   *slog.Logger
	debounce time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher validates the watcher configuration.
func NewWatcher(c *WatcherConfig) (*Watcher, error) {
	if c.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if c.Pool == nil {
		return nil, errors.New("worker pool is required")
	}
	if c.Docstore == nil {
		return nil, errors.New("document store is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	debounce := c.Debounce
	if debounce == 0 {
		debounce = defaultDebounce
	}

	return &Watcher{
		dir:      c.Dir,
		pool:     c.Pool,
		store:    c.Docstore,
		logger:   c.Logger,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Run watches the directory until ctx is done. Only files with supported
// extensions are picked up, which also keeps the watcher away from the
// document store's own JSON and temp files when it shares the directory.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.logger.Info("watching directory for documents", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-watcher.Events:
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !parser.Supported(filepath.Ext(event.Name)) {
				continue
			}
			w.schedule(event.Name)
		case err := <-watcher.Errors:
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// schedule arms (or re-arms) the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.ingest(path)
	})
}

// ingest registers the settled file and hands it to the pool.
func (w *Watcher) ingest(path string) {
	doc := newPendingDocument(path)

	if err := w.store.Create(context.Background(), doc); err != nil {
		w.logger.Error("failed to register watched document",
			"path", path,
			"error", err,
		)
		return
	}

	if !w.pool.Enqueue(Job{Document: doc}) {
		w.logger.Error("watched file dropped, ingestion queue full", "path", path)
	}
}

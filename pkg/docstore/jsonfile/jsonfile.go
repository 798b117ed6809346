// Package jsonfile provides a document store backed by a single JSON file on
// disk. Every mutation rewrites the file, so the store is always durable and
// needs no external services.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/folio/pkg/docstore"
)

// Driver implements docstore.Driver using an in-memory map mirrored to a JSON
// file.
type Driver struct {
	mu     sync.RWMutex
	path   string
	docs   map[string]*docstore.Document
	logger *slog.Logger
}

// Config holds the jsonfile driver configuration.
type Config struct {
	// Path is the JSON file location. Parent directories are created on
	// the first save.
	Path string
}

// NewDriver creates a JSON-file-backed document store, loading any existing
// state from disk. A file that cannot be parsed is discarded with a logged
// warning and the store starts empty.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	if c.Path == "" {
		return nil, errors.New("document store path is required")
	}

	d := &Driver{
		path:   c.Path,
		docs:   make(map[string]*docstore.Document),
		logger: logger,
	}
	d.load()

	return d, nil
}

func (d *Driver) load() {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if !os.IsNotExist(err) {
			d.logger.Warn("failed to read document store, starting empty",
				"path", d.path,
				"error", err,
			)
		}
		return
	}

	var docs map[string]*docstore.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		d.logger.Warn("discarding unreadable document store, starting empty",
			"path", d.path,
			"error", err,
		)
		return
	}

	if docs != nil {
		d.docs = docs
	}
}

// save writes the full document map to disk. Callers must hold the write
// lock.
func (d *Driver) save() error {
	data, err := json.MarshalIndent(d.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("failed to create document store directory: %w", err)
	}

	// Write to a temp file then rename so a crash mid-write never leaves a
	// truncated store behind.
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write document store: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		return fmt.Errorf("failed to replace document store: %w", err)
	}

	return nil
}

// Create registers a new document and persists the store.
func (d *Driver) Create(_ context.Context, doc *docstore.Document) error {
	if doc == nil {
		return errors.New("cannot store nil document")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.docs[doc.DocumentID]; ok {
		return fmt.Errorf("document %s already exists", doc.DocumentID)
	}

	cp := *doc
	d.docs[doc.DocumentID] = &cp

	return d.save()
}

// Get retrieves a document by id.
func (d *Driver) Get(_ context.Context, id string) (*docstore.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	doc, ok := d.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}

	cp := *doc
	return &cp, nil
}

// List returns all documents ordered by upload time.
func (d *Driver) List(_ context.Context) ([]*docstore.Document, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	docs := make([]*docstore.Document, 0, len(d.docs))
	for _, doc := range d.docs {
		cp := *doc
		docs = append(docs, &cp)
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].UploadedAt.Equal(docs[j].UploadedAt) {
			return docs[i].DocumentID < docs[j].DocumentID
		}
		return docs[i].UploadedAt.Before(docs[j].UploadedAt)
	})

	return docs, nil
}

// SetProcessing marks a document as being ingested.
func (d *Driver) SetProcessing(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}

	doc.Status = docstore.StatusProcessing

	return d.save()
}

// SetCompleted marks a document as fully indexed.
func (d *Driver) SetCompleted(_ context.Context, id string, chunkCount int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}

	now := time.Now().UTC()
	doc.Status = docstore.StatusCompleted
	doc.ChunkCount = chunkCount
	doc.ProcessedAt = &now

	return d.save()
}

// SetFailed marks a document as failed with the given reason.
func (d *Driver) SetFailed(_ context.Context, id string, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.docs[id]
	if !ok {
		return fmt.Errorf("%w: %s", docstore.ErrNotFound, id)
	}

	doc.Status = docstore.StatusFailed
	doc.Error = reason

	return d.save()
}

// Delete removes a document record. Returns false if the id was unknown.
func (d *Driver) Delete(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.docs[id]; !ok {
		return false, nil
	}

	delete(d.docs, id)

	if err := d.save(); err != nil {
		return false, err
	}

	return true, nil
}

// Count returns the number of tracked documents.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.docs), nil
}

// Close is a no-op; the store persists on every mutation.
func (d *Driver) Close() error {
	return nil
}

var _ docstore.Driver = (*Driver)(nil)

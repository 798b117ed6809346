// Package inmemory provides a document store backed by an in-memory map.
// State is lost on restart; it exists for tests and ephemeral runs.
package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/papercomputeco/folio/pkg/docstore"
)

// Driver implements docstore.Driver using an in-memory map.
type Driver struct {
	// mu guards the document map.
	mu sync.RWMutex

	// docs maps document id to its record.
	docs map[string]*docstore.Document
}

// NewDriver creates a new in-memory document store.
func NewDriver() *Driver {
	return &Driver{
		docs: make(map[string]*docstore.Document),
	}
}

// Create registers a new document.
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

	return nil
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

	return nil
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

	return nil
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

	return nil
}

// Delete removes a document record. Returns false if the id was unknown.
func (d *Driver) Delete(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.docs[id]; !ok {
		return false, nil
	}

	delete(d.docs, id)

	return true, nil
}

// Count returns the number of tracked documents.
func (d *Driver) Count(_ context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.docs), nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

var _ docstore.Driver = (*Driver)(nil)

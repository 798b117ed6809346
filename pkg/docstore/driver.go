package docstore

import "context"

// Driver is the interface document store backends implement. Drivers persist
// every mutation before returning so that state survives a restart.
type Driver interface {
	// Create registers a new document. The document's id must be unique.
	Create(ctx context.Context, doc *Document) error

	// Get retrieves a document by id. Returns ErrNotFound if it does not
	// exist.
	Get(ctx context.Context, id string) (*Document, error)

	// List returns all documents ordered by upload time.
	List(ctx context.Context) ([]*Document, error)

	// SetProcessing marks a document as being ingested.
	SetProcessing(ctx context.Context, id string) error

	// SetCompleted marks a document as fully indexed, recording the chunk
	// count and the completion time.
	SetCompleted(ctx context.Context, id string, chunkCount int) error

	// SetFailed marks a document as failed with the given reason.
	SetFailed(ctx context.Context, id string, reason string) error

	// Delete removes a document record. Returns true if a record was
	// removed, false if the id was unknown.
	Delete(ctx context.Context, id string) (bool, error)

	// Count returns the number of tracked documents.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

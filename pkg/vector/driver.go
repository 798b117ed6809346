// Package vector provides interfaces and implementations for chunk embedding
// storage and similarity search.
package vector

import "context"

// ChunkRecord is the durable metadata for one embedded chunk. Its link to the
// stored embedding is maintained by the driver; positions are an internal
// implementation detail and never exposed as identifiers.
type ChunkRecord struct {
	// DocumentID is the owning document identifier.
	DocumentID string `json:"document_id"`

	// Filename is the original name of the owning document.
	Filename string `json:"filename"`

	// ChunkIndex is the zero-based sequence number within the document.
	ChunkIndex int `json:"chunk_index"`

	// Content is the chunk text.
	Content string `json:"content"`

	// StartChar and EndChar are offsets into the cleaned document text.
	StartChar int `json:"start_char"`
	EndChar   int `json:"end_char"`
}

// SearchResult pairs a stored record with its similarity score.
type SearchResult struct {
	ChunkRecord

	// Score is the cosine similarity to the query (higher = more similar).
	Score float32 `json:"score"`
}

// SearchOptions controls a similarity search.
type SearchOptions struct {
	// TopK is the maximum number of results to return.
	TopK int

	// DocumentIDs restricts results to the given documents when non-empty.
	DocumentIDs []string

	// Threshold drops candidates scoring below it.
	Threshold float32
}

// Driver stores chunk embeddings and serves similarity searches over them.
type Driver interface {
	// Add stores embeddings with their parallel records. Embeddings are
	// unit-normalized before storage. Empty input is a no-op; mismatched
	// lengths or dimensions reject the call with the index unchanged.
	Add(ctx context.Context, embeddings [][]float32, records []ChunkRecord) error

	// Search returns up to TopK records most similar to the query embedding,
	// in descending score order, honoring the document filter and threshold.
	Search(ctx context.Context, embedding []float32, opts SearchOptions) ([]SearchResult, error)

	// DeleteDocument removes every chunk owned by the document. It reports
	// false when the document is unknown.
	DeleteDocument(ctx context.Context, documentID string) (bool, error)

	// Chunks returns the stored records for a document in chunk order.
	Chunks(ctx context.Context, documentID string) ([]ChunkRecord, error)

	// ChunkCount returns the total number of stored chunks.
	ChunkCount(ctx context.Context) (int, error)

	// DocumentCount returns the number of distinct documents.
	DocumentCount(ctx context.Context) (int, error)

	// DocumentChunkCount returns the number of chunks owned by a document.
	DocumentChunkCount(ctx context.Context, documentID string) (int, error)

	// Ready reports whether the driver can accept queries and mutations.
	Ready(ctx context.Context) bool

	// Save persists the index. The caller controls durability points; drivers
	// whose writes are already durable treat this as a no-op.
	Save(ctx context.Context) error

	// Load restores persisted state. Missing or corrupt state degrades to an
	// empty index rather than failing startup.
	Load(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}

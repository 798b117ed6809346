// Package docstore tracks the lifecycle of uploaded documents: registration,
// processing state, and removal. Chunk content and embeddings live in
// pkg/vector; the docstore holds only per-document metadata.
package docstore

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Status is the processing state of a document.
type Status string

const (
	// StatusPending means the document is registered but not yet processed.
	StatusPending Status = "pending"

	// StatusProcessing means ingestion is underway.
	StatusProcessing Status = "processing"

	// StatusCompleted means the document was chunked and indexed.
	StatusCompleted Status = "completed"

	// StatusFailed means ingestion failed; Document.Error holds the reason.
	StatusFailed Status = "failed"
)

// Document is the stored metadata for one uploaded document.
type Document struct {
	// DocumentID uniquely identifies the document.
	DocumentID string `json:"document_id"`

	// Filename is the original upload name.
	Filename string `json:"filename"`

	// FilePath is where the uploaded bytes live on disk.
	FilePath string `json:"file_path"`

	// FileType is the lowercase file extension, including the dot.
	FileType string `json:"file_type"`

	// Status is the current processing state.
	Status Status `json:"status"`

	// ChunkCount is the number of chunks indexed for this document.
	ChunkCount int `json:"chunk_count"`

	// UploadedAt is when the document was registered.
	UploadedAt time.Time `json:"uploaded_at"`

	// ProcessedAt is set once processing completes.
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	// Error is the failure reason when Status is StatusFailed.
	Error string `json:"error,omitempty"`
}

// NewDocumentID returns a fresh document identifier of the form doc_<12 hex>.
func NewDocumentID() string {
	b := make([]byte, 6)
	// rand.Read never fails on supported platforms
	_, _ = rand.Read(b)

	return "doc_" + hex.EncodeToString(b)
}

// Package api provides the HTTP API server for the folio document library:
// uploads, background ingestion, retrieval-augmented question answering,
// and library management.
package api

import (
	"log/slog"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/eventstream"
	"github.com/papercomputeco/folio/pkg/ingest"
	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/metrics"
	"github.com/papercomputeco/folio/pkg/vector"
)

// Config is the API server configuration. Collaborators are injected so the
// server can share them with the watcher and the CLI's local mode.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Docstore tracks uploaded documents.
	Docstore docstore.Driver

	// VectorDriver stores chunk embeddings and serves similarity search.
	VectorDriver vector.Driver

	// Embedder converts question text to vectors for retrieval.
	Embedder embeddings.Embedder

	// Generator produces grounded answers. Without one the ask endpoints
	// report the service as unavailable; search still works.
	Generator llm.Generator

	// Pool runs document ingestion off the upload hot path.
	Pool *ingest.Pool

	// Metrics aggregates per-query measurements for the metrics endpoint.
	Metrics *metrics.Aggregator

	// Publisher emits document lifecycle events. Optional.
	Publisher eventstream.Publisher

	// UploadDir is where uploaded files are written.
	UploadDir string

	// MaxFileMB caps the accepted upload size in megabytes.
	MaxFileMB uint

	// DefaultTopK is the chunk count used when a request omits top_k.
	DefaultTopK uint

	// ScoreThreshold drops retrieved chunks scoring below it.
	ScoreThreshold float32

	// MCP mounts the MCP endpoint at /mcp when true.
	MCP bool

	// Logger is the configured logger.
	Logger *slog.Logger
}

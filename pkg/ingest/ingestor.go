// Package ingest turns uploaded documents into indexed chunks. The pipeline
// parses a file, chunks the text, embeds every chunk, and adds the whole
// batch to the vector index in a single call, so a failure at any stage
// leaves the index without any trace of the document.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/papercomputeco/folio/pkg/chunker"
	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/eventstream"
	"github.com/papercomputeco/folio/pkg/parser"
	"github.com/papercomputeco/folio/pkg/vector"
)

// minUsableText is the minimum length of the trimmed parsed text. Anything
// shorter is not worth indexing.
const minUsableText = 10

// These messages are recorded verbatim as the document's failure reason and
// surface in the status API.
var (
	errNoUsableText = errors.New("Document contains no usable text content")
	errNoChunks     = errors.New("No chunks created from document")
)

// Config carries the collaborators the ingestion pipeline needs. All fields
// are required.
type Config struct {
	Docstore  docstore.Driver
	Vector    vector.Driver
	Embedder  embeddings.Embedder
	Chunker   *chunker.Chunker
	Publisher eventstream.Publisher
	Logger    *slog.Logger
}

// Ingestor runs the document processing pipeline.
type Ingestor struct {
	config *Config
	logger *slog.Logger
}

// NewIngestor validates the configured collaborators.
func NewIngestor(c *Config) (*Ingestor, error) {
	if c.Docstore == nil {
		return nil, errors.New("document store is required")
	}
	if c.Vector == nil {
		return nil, errors.New("vector driver is required")
	}
	if c.Embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if c.Chunker == nil {
		return nil, errors.New("chunker is required")
	}
	if c.Publisher == nil {
		return nil, errors.New("event publisher is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	return &Ingestor{
		config: c,
		logger: c.Logger,
	}, nil
}

// Process runs the pipeline for an already-registered document. A pipeline
// failure is recorded on the document and returned; the index never holds a
// partial document.
func (i *Ingestor) Process(ctx context.Context, doc *docstore.Document) error {
	log := i.logger.With("document_id", doc.DocumentID, "filename", doc.Filename)
	log.Info("processing document")

	if err := i.config.Docstore.SetProcessing(ctx, doc.DocumentID); err != nil {
		return fmt.Errorf("failed to mark document processing: %w", err)
	}

	chunkCount, err := i.run(ctx, doc)
	if err != nil {
		log.Error("document processing failed", "error", err)
		if updateErr := i.config.Docstore.SetFailed(ctx, doc.DocumentID, failureReason(err)); updateErr != nil {
			log.Error("failed to record failure", "error", updateErr)
		}
		i.publish(ctx, doc.DocumentID, eventstream.EventTypeDocumentIngestFailed)
		return err
	}

	if err := i.config.Docstore.SetCompleted(ctx, doc.DocumentID, chunkCount); err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}

	log.Info("document processed", "chunks", chunkCount)
	i.publish(ctx, doc.DocumentID, eventstream.EventTypeDocumentIngested)

	return nil
}

// run executes parse, chunk, embed, and index. It touches the vector index
// only at the very end, once every chunk has an embedding.
func (i *Ingestor) run(ctx context.Context, doc *docstore.Document) (int, error) {
	text, err := parser.Parse(doc.FilePath)
	if err != nil {
		return 0, err
	}

	if len(strings.TrimSpace(text)) < minUsableText {
		return 0, errNoUsableText
	}

	chunks := i.config.Chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, errNoChunks
	}

	contents := make([]string, len(chunks))
	for idx, ch := range chunks {
		contents[idx] = ch.Content
	}

	vectors, err := i.config.Embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return 0, err
	}

	records := make([]vector.ChunkRecord, len(chunks))
	for idx, ch := range chunks {
		records[idx] = vector.ChunkRecord{
			DocumentID: doc.DocumentID,
			Filename:   doc.Filename,
			ChunkIndex: ch.Index,
			Content:    ch.Content,
			StartChar:  ch.StartChar,
			EndChar:    ch.EndChar,
		}
	}

	if err := i.config.Vector.Add(ctx, vectors, records); err != nil {
		return 0, err
	}

	if err := i.config.Vector.Save(ctx); err != nil {
		return 0, err
	}

	return len(chunks), nil
}

// ProcessFile registers path as a new document and runs the pipeline on it
// synchronously. The returned document reflects the final status.
func (i *Ingestor) ProcessFile(ctx context.Context, path string) (*docstore.Document, error) {
	doc := newPendingDocument(path)
	if err := i.config.Docstore.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	err := i.Process(ctx, doc)

	final, getErr := i.config.Docstore.Get(ctx, doc.DocumentID)
	if getErr != nil {
		return doc, err
	}

	return final, err
}

// ProcessBatch ingests every supported file under paths, descending into
// directories. Unsupported extensions are counted as skipped.
func (i *Ingestor) ProcessBatch(ctx context.Context, paths []string) *Result {
	result := &Result{}

	for _, root := range paths {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			if err != nil {
				i.logger.Error("cannot read path", "path", path, "error", err)
				result.Failed++
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !parser.Supported(filepath.Ext(path)) {
				result.Skipped++
				return nil
			}

			doc, procErr := i.ProcessFile(ctx, path)
			if procErr != nil {
				result.Failed++
				return nil
			}

			result.Processed++
			result.TotalChunks += doc.ChunkCount
			return nil
		})
	}

	return result
}

// publish emits a lifecycle event carrying the document's current record.
// Event delivery is best effort and never fails ingestion.
func (i *Ingestor) publish(ctx context.Context, id, eventType string) {
	doc, err := i.config.Docstore.Get(ctx, id)
	if err != nil {
		i.logger.Warn("failed to load document for event",
			"document_id", id,
			"error", err,
		)
		return
	}

	event := eventstream.NewDocumentEvent(eventType, "ingest", *doc)
	if err := i.config.Publisher.PublishDocument(ctx, event); err != nil {
		i.logger.Warn("failed to publish document event",
			"event_type", eventType,
			"document_id", id,
			"error", err,
		)
	}
}

// failureReason renders err the way it is recorded on the document. Known
// pipeline failures keep their message; anything unexpected gets a generic
// processing prefix.
func failureReason(err error) string {
	switch {
	case errors.Is(err, errNoUsableText),
		errors.Is(err, errNoChunks),
		errors.Is(err, parser.ErrUnsupported),
		errors.Is(err, parser.ErrNoContent),
		errors.Is(err, vector.ErrEmbedding),
		errors.Is(err, vector.ErrLengthMismatch),
		errors.Is(err, vector.ErrDimensionMismatch),
		errors.Is(err, vector.ErrConnection):
		return err.Error()
	default:
		return fmt.Sprintf("Processing failed: %v", err)
	}
}

// newPendingDocument builds the pending record for a local file.
func newPendingDocument(path string) *docstore.Document {
	filename := filepath.Base(path)
	return &docstore.Document{
		DocumentID: docstore.NewDocumentID(),
		Filename:   filename,
		FilePath:   path,
		FileType:   strings.ToLower(filepath.Ext(filename)),
		Status:     docstore.StatusPending,
		UploadedAt: time.Now().UTC(),
	}
}

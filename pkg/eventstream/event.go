package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/utils"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDocumentIngested is emitted after a document has been
	// chunked, embedded, and added to the vector index.
	EventTypeDocumentIngested = "folio.document.ingested"

	// EventTypeDocumentIngestFailed is emitted when document processing
	// fails at any stage.
	EventTypeDocumentIngestFailed = "folio.document.ingest_failed"

	// EventTypeDocumentDeleted is emitted after a document and its chunks
	// have been removed from the library.
	EventTypeDocumentDeleted = "folio.document.deleted"
)

// DocumentEvent is a transport-neutral event payload for a document
// lifecycle change.
type DocumentEvent struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	EventID       string            `json:"event_id"`
	EmittedAt     time.Time         `json:"emitted_at"`
	Source        EventSource       `json:"source"`
	Document      docstore.Document `json:"document"`
}

// EventSource identifies the producer of a document event.
type EventSource struct {
	Component string `json:"component,omitempty"`
	Version   string `json:"version,omitempty"`
}

// NewDocumentEvent wraps a document record in a v1 event envelope. The
// document is copied at emit time so later store mutations do not leak
// into the published payload.
func NewDocumentEvent(eventType, component string, doc docstore.Document) *DocumentEvent {
	return &DocumentEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     eventType,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source: EventSource{
			Component: component,
			Version:   utils.Version,
		},
		Document: doc,
	}
}

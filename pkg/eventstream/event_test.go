package eventstream_test

import (
	"encoding/json"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/eventstream"
)

func TestEventstream(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Eventstream Suite")
}

var _ = Describe("Event", func() {
	It("marshals DocumentEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		processed := now
		event := eventstream.DocumentEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeDocumentIngested,
			EventID:       "evt_123",
			EmittedAt:     now,
			Source: eventstream.EventSource{
				Component: "api",
				Version:   "dev",
			},
			Document: docstore.Document{
				DocumentID:  "doc_a1b2c3d4e5f6",
				Filename:    "guide.pdf",
				FilePath:    "uploads/doc_a1b2c3d4e5f6_guide.pdf",
				FileType:    ".pdf",
				Status:      docstore.StatusCompleted,
				ChunkCount:  12,
				UploadedAt:  now.Add(-2 * time.Second),
				ProcessedAt: &processed,
			},
		}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("document"))
	})

	It("stamps new events with envelope metadata", func() {
		doc := docstore.Document{
			DocumentID: "doc_ffeeddccbbaa",
			Filename:   "notes.txt",
			Status:     docstore.StatusFailed,
			Error:      "no chunks created from document",
		}

		event := eventstream.NewDocumentEvent(eventstream.EventTypeDocumentIngestFailed, "ingest", doc)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeDocumentIngestFailed))
		Expect(event.EventID).NotTo(BeEmpty())
		Expect(event.EmittedAt).To(BeTemporally("~", time.Now(), time.Minute))
		Expect(event.Source.Component).To(Equal("ingest"))
		Expect(event.Document.DocumentID).To(Equal("doc_ffeeddccbbaa"))
		Expect(event.Document.Error).To(Equal("no chunks created from document"))
	})

	It("assigns a distinct event ID per event", func() {
		doc := docstore.Document{DocumentID: "doc_001122334455"}

		first := eventstream.NewDocumentEvent(eventstream.EventTypeDocumentDeleted, "api", doc)
		second := eventstream.NewDocumentEvent(eventstream.EventTypeDocumentDeleted, "api", doc)

		Expect(first.EventID).NotTo(Equal(second.EventID))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeDocumentIngested).To(Equal("folio.document.ingested"))
		Expect(eventstream.EventTypeDocumentIngestFailed).To(Equal("folio.document.ingest_failed"))
		Expect(eventstream.EventTypeDocumentDeleted).To(Equal("folio.document.deleted"))
	})

	It("provides ErrNilDocumentEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilDocumentEvent).NotTo(BeNil())
		Expect(eventstream.ErrNilDocumentEvent).To(MatchError("nil document event"))
	})
})

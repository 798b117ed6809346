package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/docstore/inmemory"
	"github.com/papercomputeco/folio/pkg/eventstream"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
	"github.com/papercomputeco/folio/pkg/vector"
)

var _ = Describe("document endpoints", func() {
	var (
		server       *Server
		store        *inmemory.Driver
		vectorDriver *testutils.MockVectorDriver
		publisher    *testutils.MockPublisher
		uploadDir    string
		ctx          context.Context
	)

	BeforeEach(func() {
		store = inmemory.NewDriver()
		vectorDriver = testutils.NewMockVectorDriver()
		publisher = testutils.NewMockPublisher()
		ctx = context.Background()

		cfg := newTestConfig(store, vectorDriver, testutils.NewMockEmbedder(), testutils.NewMockGenerator())
		cfg.Publisher = publisher
		uploadDir = cfg.UploadDir

		var err error
		server, err = NewServer(cfg)
		Expect(err).NotTo(HaveOccurred())
	})

	// seedDocument registers a document record directly in the store.
	seedDocument := func(id string, status docstore.Status, chunkCount int, reason string) *docstore.Document {
		doc := &docstore.Document{
			DocumentID: id,
			Filename:   id + ".txt",
			FilePath:   filepath.Join(uploadDir, id+"_"+id+".txt"),
			FileType:   ".txt",
			Status:     status,
			ChunkCount: chunkCount,
			UploadedAt: time.Now().UTC(),
			Error:      reason,
		}
		Expect(store.Create(ctx, doc)).To(Succeed())
		return doc
	}

	Describe("listing documents", func() {
		It("returns an empty list when nothing is uploaded", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/documents", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var docs []docstore.Document
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &docs)).To(Succeed())
			Expect(docs).To(BeEmpty())
		})

		It("returns every registered document", func() {
			seedDocument("doc_one", docstore.StatusCompleted, 4, "")
			seedDocument("doc_two", docstore.StatusPending, 0, "")

			req, err := http.NewRequest(http.MethodGet, "/api/v1/documents", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var docs []docstore.Document
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &docs)).To(Succeed())

			Expect(docs).To(HaveLen(2))
			Expect(docs[0].Status).To(Equal(docstore.StatusCompleted))
			Expect(docs[0].ChunkCount).To(Equal(4))
		})
	})

	Describe("document status", func() {
		It("returns 404 for an unknown document", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/documents/doc_missing/status", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Document not found"))
		})

		DescribeTable("renders the processing state",
			func(status docstore.Status, chunkCount int, reason, message string) {
				seedDocument("doc_state", status, chunkCount, reason)

				req, err := http.NewRequest(http.MethodGet, "/api/v1/documents/doc_state/status", nil)
				Expect(err).NotTo(HaveOccurred())

				resp, err := server.app.Test(req)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var out DocumentStatusResponse
				body, err := io.ReadAll(resp.Body)
				Expect(err).NotTo(HaveOccurred())
				Expect(json.Unmarshal(body, &out)).To(Succeed())

				Expect(out.DocumentID).To(Equal("doc_state"))
				Expect(out.Status).To(Equal(string(status)))
				Expect(out.ChunkCount).To(Equal(chunkCount))
				Expect(out.Message).To(Equal(message))
			},
			Entry("pending", docstore.StatusPending, 0, "", "Document is queued for processing"),
			Entry("processing", docstore.StatusProcessing, 0, "", "Document is being processed..."),
			Entry("completed", docstore.StatusCompleted, 7, "", "Processing complete. Created 7 chunks."),
			Entry("failed with a reason", docstore.StatusFailed, 0, "PDF is encrypted", "Processing failed: PDF is encrypted"),
			Entry("failed without a reason", docstore.StatusFailed, 0, "", "Processing failed: Unknown error"),
		)
	})

	Describe("document chunks", func() {
		It("returns 404 for an unknown document", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/documents/doc_missing/chunks", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns only the document's chunks", func() {
			seedDocument("doc_mine", docstore.StatusCompleted, 2, "")
			vectorDriver.Records = []vector.ChunkRecord{
				{DocumentID: "doc_mine", Filename: "doc_mine.txt", ChunkIndex: 0, Content: "first"},
				{DocumentID: "doc_mine", Filename: "doc_mine.txt", ChunkIndex: 1, Content: "second"},
				{DocumentID: "doc_other", Filename: "other.txt", ChunkIndex: 0, Content: "elsewhere"},
			}

			req, err := http.NewRequest(http.MethodGet, "/api/v1/documents/doc_mine/chunks", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out struct {
				DocumentID string               `json:"document_id"`
				Chunks     []vector.ChunkRecord `json:"chunks"`
				Count      int                  `json:"count"`
			}
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &out)).To(Succeed())

			Expect(out.DocumentID).To(Equal("doc_mine"))
			Expect(out.Count).To(Equal(2))
			Expect(out.Chunks[0].Content).To(Equal("first"))
			Expect(out.Chunks[1].Content).To(Equal("second"))
		})
	})

	Describe("deleting a document", func() {
		It("returns 404 for an unknown document", func() {
			req, err := http.NewRequest(http.MethodDelete, "/api/v1/documents/doc_missing", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("removes the record, the chunks, and the stored file", func() {
			doc := seedDocument("doc_gone", docstore.StatusCompleted, 1, "")
			Expect(os.WriteFile(doc.FilePath, []byte("stored content"), 0o644)).To(Succeed())

			vectorDriver.Records = []vector.ChunkRecord{
				{DocumentID: "doc_gone", Filename: doc.Filename, ChunkIndex: 0, Content: "stored content"},
				{DocumentID: "doc_kept", Filename: "kept.txt", ChunkIndex: 0, Content: "still here"},
			}

			req, err := http.NewRequest(http.MethodDelete, "/api/v1/documents/doc_gone", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Document doc_gone deleted successfully"))

			_, err = store.Get(ctx, "doc_gone")
			Expect(err).To(MatchError(docstore.ErrNotFound))

			Expect(vectorDriver.Records).To(HaveLen(1))
			Expect(vectorDriver.Records[0].DocumentID).To(Equal("doc_kept"))
			Expect(vectorDriver.SaveCalls).To(Equal(1))

			_, err = os.Stat(doc.FilePath)
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("tolerates a missing file on disk", func() {
			seedDocument("doc_nofile", docstore.StatusCompleted, 1, "")

			req, err := http.NewRequest(http.MethodDelete, "/api/v1/documents/doc_nofile", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("publishes a deletion event", func() {
			seedDocument("doc_event", docstore.StatusCompleted, 1, "")

			req, err := http.NewRequest(http.MethodDelete, "/api/v1/documents/doc_event", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].EventType).To(Equal(eventstream.EventTypeDocumentDeleted))
			Expect(events[0].Document.DocumentID).To(Equal("doc_event"))
		})
	})
})

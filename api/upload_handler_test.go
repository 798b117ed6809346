package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/docstore/inmemory"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
)

// newUploadRequest builds a multipart upload with a single file part.
func newUploadRequest(filename string, content []byte) *http.Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	Expect(err).NotTo(HaveOccurred())
	_, err = part.Write(content)
	Expect(err).NotTo(HaveOccurred())
	Expect(w.Close()).To(Succeed())

	req, err := http.NewRequest(http.MethodPost, "/api/v1/upload", &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())

	return req
}

var _ = Describe("handleUpload", func() {
	var (
		server       *Server
		store        *inmemory.Driver
		vectorDriver *testutils.MockVectorDriver
		cfg          Config
		ctx          context.Context
	)

	BeforeEach(func() {
		store = inmemory.NewDriver()
		vectorDriver = testutils.NewMockVectorDriver()
		ctx = context.Background()

		cfg = newTestConfig(store, vectorDriver, testutils.NewMockEmbedder(), testutils.NewMockGenerator())

		var err error
		server, err = NewServer(cfg)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("when the file part is missing", func() {
		It("returns 400", func() {
			req, err := http.NewRequest(http.MethodPost, "/api/v1/upload", strings.NewReader("no file here"))
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("file field is required"))
		})
	})

	Context("when the file format is not supported", func() {
		It("returns 400 naming the extension", func() {
			req := newUploadRequest("report.docx", []byte("binary junk"))

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Unsupported file format: .docx"))
			Expect(string(body)).To(ContainSubstring(".txt"))
		})

		It("returns 400 for a file without an extension", func() {
			req := newUploadRequest("README", []byte("plain content"))

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Context("when the file is empty", func() {
		It("returns 400", func() {
			req := newUploadRequest("empty.txt", []byte{})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Empty file uploaded"))
		})
	})

	Context("when the file exceeds the size limit", func() {
		It("returns 400 naming the limit", func() {
			cfg.MaxFileMB = 1
			small, err := NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())

			req := newUploadRequest("big.txt", bytes.Repeat([]byte("a"), 1024*1024+1))

			resp, err := small.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("File size exceeds 1MB limit"))
		})
	})

	Context("when a valid document is uploaded", func() {
		It("queues it and completes ingestion in the background", func() {
			content := strings.Repeat("Cosimo kept the library catalog in perfect order. ", 20)
			req := newUploadRequest("library-notes.txt", []byte(content))

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var upload UploadResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &upload)).To(Succeed())

			Expect(upload.DocumentID).To(HavePrefix("doc_"))
			Expect(upload.Filename).To(Equal("library-notes.txt"))
			Expect(upload.Status).To(Equal("pending"))
			Expect(upload.Message).To(Equal("Document uploaded and queued for processing"))

			Eventually(func() docstore.Status {
				doc, err := store.Get(ctx, upload.DocumentID)
				if err != nil {
					return ""
				}
				return doc.Status
			}).WithTimeout(3 * time.Second).Should(Equal(docstore.StatusCompleted))

			doc, err := store.Get(ctx, upload.DocumentID)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.ChunkCount).To(BeNumerically(">", 0))
			Expect(doc.FilePath).To(ContainSubstring(upload.DocumentID + "_library-notes.txt"))

			_, err = os.Stat(doc.FilePath)
			Expect(err).NotTo(HaveOccurred())

			Expect(vectorDriver.Records).NotTo(BeEmpty())
			Expect(vectorDriver.Records[0].DocumentID).To(Equal(upload.DocumentID))
		})

		It("surfaces an ingestion failure through the status endpoint", func() {
			// Three spaces: passes the upload checks, yields no usable text.
			req := newUploadRequest("blank.txt", []byte("   "))

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var upload UploadResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &upload)).To(Succeed())

			Eventually(func() docstore.Status {
				doc, err := store.Get(ctx, upload.DocumentID)
				if err != nil {
					return ""
				}
				return doc.Status
			}).WithTimeout(3 * time.Second).Should(Equal(docstore.StatusFailed))

			statusReq, err := http.NewRequest(http.MethodGet, "/api/v1/documents/"+upload.DocumentID+"/status", nil)
			Expect(err).NotTo(HaveOccurred())

			statusResp, err := server.app.Test(statusReq)
			Expect(err).NotTo(HaveOccurred())
			Expect(statusResp.StatusCode).To(Equal(fiber.StatusOK))

			var status DocumentStatusResponse
			statusBody, err := io.ReadAll(statusResp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(statusBody, &status)).To(Succeed())

			Expect(status.Status).To(Equal("failed"))
			Expect(status.Message).To(Equal("Processing failed: Document contains no usable text content"))
			Expect(vectorDriver.Records).To(BeEmpty())
		})
	})
})

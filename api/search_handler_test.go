package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/api/retrieve"
	"github.com/papercomputeco/folio/pkg/docstore/inmemory"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
	"github.com/papercomputeco/folio/pkg/vector"
)

var _ = Describe("handleSearch", func() {
	var (
		server       *Server
		vectorDriver *testutils.MockVectorDriver
		embedder     *testutils.MockEmbedder
	)

	BeforeEach(func() {
		vectorDriver = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()

		cfg := newTestConfig(inmemory.NewDriver(), vectorDriver, embedder, testutils.NewMockGenerator())

		var err error
		server, err = NewServer(cfg)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("when query parameter is missing", func() {
		It("returns 400", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/search", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("query parameter is required"))
		})
	})

	Context("when top_k is invalid", func() {
		It("returns 400 for non-integer top_k", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/search?query=test&top_k=abc", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("top_k must be a positive integer"))
		})

		It("returns 400 for zero top_k", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/search?query=test&top_k=0", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 for negative top_k", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/search?query=test&top_k=-1", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Context("when score_threshold is invalid", func() {
		It("returns 400", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/search?query=test&score_threshold=warm", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("score_threshold must be a number"))
		})
	})

	Context("when search succeeds with no results", func() {
		It("returns 200 with empty results", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/search?query=hello", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var output retrieve.SearchOutput
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &output)).To(Succeed())

			Expect(output.Query).To(Equal("hello"))
			Expect(output.Count).To(BeZero())
			Expect(output.Results).To(BeEmpty())
		})
	})

	Context("when search succeeds with results", func() {
		BeforeEach(func() {
			vectorDriver.Results = []vector.SearchResult{
				{
					ChunkRecord: vector.ChunkRecord{
						DocumentID: "doc_b2",
						Filename:   "charter.md",
						ChunkIndex: 3,
						Content:    "Membership is open to all residents.",
						StartChar:  120,
						EndChar:    156,
					},
					Score: 0.9,
				},
				{
					ChunkRecord: vector.ChunkRecord{
						DocumentID: "doc_b2",
						Filename:   "charter.md",
						ChunkIndex: 4,
						Content:    "Dues are collected each spring.",
					},
					Score: 0.5,
				},
			}
		})

		It("returns the scored citations", func() {
			query := url.QueryEscape("who can join?")
			req, err := http.NewRequest(http.MethodGet, "/api/v1/search?query="+query, nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var output retrieve.SearchOutput
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &output)).To(Succeed())

			Expect(output.Query).To(Equal("who can join?"))
			Expect(output.Count).To(Equal(2))
			Expect(output.Results).To(HaveLen(2))

			first := output.Results[0]
			Expect(first.DocumentID).To(Equal("doc_b2"))
			Expect(first.Filename).To(Equal("charter.md"))
			Expect(first.ChunkIndex).To(Equal(3))
			Expect(first.Content).To(Equal("Membership is open to all residents."))
			Expect(first.SimilarityScore).To(Equal(0.9))

			Expect(output.Results[1].SimilarityScore).To(Equal(0.5))
		})

		It("honors top_k", func() {
			req, err := http.NewRequest(http.MethodGet, "/api/v1/search?query=membership&top_k=1", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var output retrieve.SearchOutput
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &output)).To(Succeed())

			Expect(output.Count).To(Equal(1))
		})
	})

	Context("when the embedder fails", func() {
		It("returns 500", func() {
			embedder.FailOn = "doomed query"

			query := url.QueryEscape("doomed query")
			req, err := http.NewRequest(http.MethodGet, "/api/v1/search?query="+query, nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("failed to embed"))
		})
	})
})

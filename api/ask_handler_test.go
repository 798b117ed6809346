package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/folio/api/retrieve"
	"github.com/papercomputeco/folio/pkg/docstore/inmemory"
	"github.com/papercomputeco/folio/pkg/metrics"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
	"github.com/papercomputeco/folio/pkg/vector"
)

// newAskRequest builds a JSON POST to the given ask endpoint.
func newAskRequest(path string, body any) *http.Request {
	data, err := json.Marshal(body)
	Expect(err).NotTo(HaveOccurred())

	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return req
}

// indexedChunks puts enough records in the mock index to pass the
// empty-index check and supplies the search results for the question.
func indexedChunks(driver *testutils.MockVectorDriver) {
	driver.Records = []vector.ChunkRecord{
		{DocumentID: "doc_a1", Filename: "guide.txt", ChunkIndex: 0, Content: "The annex holds the rare manuscripts."},
		{DocumentID: "doc_a1", Filename: "guide.txt", ChunkIndex: 1, Content: "Reading room hours are nine to five."},
	}
	driver.Results = []vector.SearchResult{
		{ChunkRecord: driver.Records[0], Score: 0.9},
		{ChunkRecord: driver.Records[1], Score: 0.8},
	}
}

var _ = Describe("handleAsk", func() {
	var (
		server       *Server
		vectorDriver *testutils.MockVectorDriver
		embedder     *testutils.MockEmbedder
		generator    *testutils.MockGenerator
		aggregator   *metrics.Aggregator
		cfg          Config
	)

	BeforeEach(func() {
		vectorDriver = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		generator = testutils.NewMockGenerator()

		cfg = newTestConfig(inmemory.NewDriver(), vectorDriver, embedder, generator)
		aggregator = cfg.Metrics

		var err error
		server, err = NewServer(cfg)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("request validation", func() {
		It("returns 400 for a malformed body", func() {
			req, err := http.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader("{not json"))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("invalid request body"))
		})

		It("returns 400 for a question that is too short", func() {
			req := newAskRequest("/api/v1/ask", AskRequest{Question: "hi"})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("question must be between 5 and 500 characters"))
		})

		It("returns 400 for a question that is too long", func() {
			req := newAskRequest("/api/v1/ask", AskRequest{Question: strings.Repeat("q", 501)})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("counts runes, not bytes, for question length", func() {
			indexedChunks(vectorDriver)

			// Four runes spanning twelve bytes: too short.
			req := newAskRequest("/api/v1/ask", AskRequest{Question: "図書館は"})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			// Five hundred runes spanning a thousand bytes: accepted.
			req = newAskRequest("/api/v1/ask", AskRequest{Question: strings.Repeat("é", 500)})

			resp, err = server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})

		It("returns 400 when top_k is out of range", func() {
			req := newAskRequest("/api/v1/ask", AskRequest{Question: "where are the manuscripts?", TopK: 21})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("top_k must be between 1 and 20"))
		})

		It("returns 400 when no documents have been indexed", func() {
			req := newAskRequest("/api/v1/ask", AskRequest{Question: "where are the manuscripts?"})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("No documents have been processed yet. Please upload documents first."))
		})

		It("returns 503 when no generator is configured", func() {
			cfg.Generator = nil
			noGen, err := NewServer(cfg)
			Expect(err).NotTo(HaveOccurred())

			req := newAskRequest("/api/v1/ask", AskRequest{Question: "where are the manuscripts?"})

			resp, err := noGen.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusServiceUnavailable))
		})
	})

	Context("when the question matches indexed chunks", func() {
		BeforeEach(func() {
			indexedChunks(vectorDriver)
		})

		It("answers with sources and metrics", func() {
			generator.Answer = "The rare manuscripts are kept in the annex."

			req := newAskRequest("/api/v1/ask", AskRequest{Question: "where are the manuscripts?"})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var answer retrieve.Answer
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &answer)).To(Succeed())

			Expect(answer.Answer).To(Equal("The rare manuscripts are kept in the annex."))
			Expect(answer.Sources).To(HaveLen(2))
			Expect(answer.Sources[0].DocumentID).To(Equal("doc_a1"))
			Expect(answer.Sources[0].SimilarityScore).To(Equal(0.9))

			Expect(answer.Metrics.ChunksRetrieved).To(Equal(2))
			Expect(answer.Metrics.AvgSimilarityScore).To(Equal(0.85))
			Expect(answer.Metrics.MaxSimilarityScore).To(Equal(0.9))
			Expect(answer.Metrics.MinSimilarityScore).To(Equal(0.8))
			Expect(answer.Metrics.Timestamp).NotTo(BeEmpty())

			Expect(generator.LastQuestion).To(Equal("where are the manuscripts?"))
			Expect(generator.LastSources).To(HaveLen(2))
		})

		It("records the query in the aggregator", func() {
			req := newAskRequest("/api/v1/ask", AskRequest{Question: "where are the manuscripts?"})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			snapshot := aggregator.Snapshot()
			Expect(snapshot.TotalQueries).To(Equal(int64(1)))
			Expect(snapshot.NoResultQueries).To(BeZero())
			Expect(snapshot.Recent).To(HaveLen(1))
		})
	})

	Context("when retrieval finds nothing", func() {
		BeforeEach(func() {
			vectorDriver.Records = []vector.ChunkRecord{
				{DocumentID: "doc_a1", Filename: "guide.txt", Content: "unrelated"},
			}
			vectorDriver.Results = nil
		})

		It("answers without invoking the generator", func() {
			req := newAskRequest("/api/v1/ask", AskRequest{Question: "what is the meaning of life?"})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var answer retrieve.Answer
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &answer)).To(Succeed())

			Expect(answer.Answer).To(ContainSubstring("couldn't find relevant information"))
			Expect(answer.Sources).To(BeEmpty())
			Expect(answer.Metrics.ChunksRetrieved).To(BeZero())
			Expect(answer.Metrics.GenerationLatencyMs).To(BeZero())
			Expect(generator.LastQuestion).To(BeEmpty())

			snapshot := aggregator.Snapshot()
			Expect(snapshot.NoResultQueries).To(Equal(int64(1)))
		})
	})

	Context("when a pipeline stage fails", func() {
		BeforeEach(func() {
			indexedChunks(vectorDriver)
		})

		It("maps embedding failures", func() {
			embedder.FailOn = "where are the manuscripts?"

			req := newAskRequest("/api/v1/ask", AskRequest{Question: "where are the manuscripts?"})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Embedding error:"))
		})

		It("maps generation failures", func() {
			generator.FailOn = "where are the manuscripts?"

			req := newAskRequest("/api/v1/ask", AskRequest{Question: "where are the manuscripts?"})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("LLM error:"))
		})

		It("maps any other failure as a processing error", func() {
			vectorDriver.FailSearch = true

			req := newAskRequest("/api/v1/ask", AskRequest{Question: "where are the manuscripts?"})

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Processing error:"))
		})
	})
})

var _ = Describe("handleAskStream", func() {
	var (
		server       *Server
		vectorDriver *testutils.MockVectorDriver
		generator    *testutils.MockGenerator
		aggregator   *metrics.Aggregator
	)

	BeforeEach(func() {
		vectorDriver = testutils.NewMockVectorDriver()
		generator = testutils.NewMockGenerator()

		cfg := newTestConfig(inmemory.NewDriver(), vectorDriver, testutils.NewMockEmbedder(), generator)
		aggregator = cfg.Metrics

		var err error
		server, err = NewServer(cfg)
		Expect(err).NotTo(HaveOccurred())
	})

	It("validates the request like the non-streaming endpoint", func() {
		req := newAskRequest("/api/v1/ask/stream", AskRequest{Question: "hi"})

		resp, err := server.app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
	})

	It("streams meta, delta, and done events", func() {
		indexedChunks(vectorDriver)
		generator.Answer = "The annex."

		req := newAskRequest("/api/v1/ask/stream", AskRequest{Question: "where are the manuscripts?"})

		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		Expect(resp.Header.Get(fiber.HeaderContentType)).To(Equal("text/event-stream"))

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		text := string(body)
		Expect(text).To(ContainSubstring("event: meta"))
		Expect(text).To(ContainSubstring(`"chunks_retrieved":2`))
		Expect(text).To(ContainSubstring("event: delta"))
		Expect(text).To(ContainSubstring("event: done"))

		// The mock generator streams the answer in two halves.
		Expect(text).To(ContainSubstring(`"text":"The a"`))
		Expect(text).To(ContainSubstring(`"text":"nnex."`))

		snapshot := aggregator.Snapshot()
		Expect(snapshot.TotalQueries).To(Equal(int64(1)))
	})

	It("streams the canned answer when retrieval finds nothing", func() {
		vectorDriver.Records = []vector.ChunkRecord{
			{DocumentID: "doc_a1", Filename: "guide.txt", Content: "unrelated"},
		}
		vectorDriver.Results = nil

		req := newAskRequest("/api/v1/ask/stream", AskRequest{Question: "what is the meaning of life?"})

		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		text := string(body)
		Expect(text).To(ContainSubstring("event: meta"))
		Expect(text).To(ContainSubstring("event: delta"))
		Expect(text).To(ContainSubstring("couldn't find relevant information"))
		Expect(text).To(ContainSubstring("event: done"))
	})

	It("emits an error event when generation fails", func() {
		indexedChunks(vectorDriver)
		generator.FailOn = "where are the manuscripts?"

		req := newAskRequest("/api/v1/ask/stream", AskRequest{Question: "where are the manuscripts?"})

		resp, err := server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		text := string(body)
		Expect(text).To(ContainSubstring("event: error"))
		Expect(text).To(ContainSubstring("LLM error:"))
		Expect(text).NotTo(ContainSubstring("event: done"))
	})
})

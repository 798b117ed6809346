package mcp

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/folio/api/retrieve"
	foliologger "github.com/papercomputeco/folio/pkg/logger"
	testutils "github.com/papercomputeco/folio/pkg/utils/test"
	"github.com/papercomputeco/folio/pkg/vector"
)

func chunkResult(docID string, index int, content string, score float32) vector.SearchResult {
	return vector.SearchResult{
		ChunkRecord: vector.ChunkRecord{
			DocumentID: docID,
			Filename:   docID + ".md",
			ChunkIndex: index,
			Content:    content,
		},
		Score: score,
	}
}

var _ = Describe("folio tools", func() {
	var (
		server       *Server
		vectorDriver *testutils.MockVectorDriver
		embedder     *testutils.MockEmbedder
		generator    *testutils.MockGenerator
		ctx          context.Context
	)

	BeforeEach(func() {
		vectorDriver = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		generator = testutils.NewMockGenerator()
		ctx = context.Background()

		var err error
		server, err = NewServer(Config{
			VectorDriver: vectorDriver,
			Embedder:     embedder,
			Generator:    generator,
			DefaultTopK:  5,
			Logger:       foliologger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("handleSearch", func() {
		It("returns the scored citations with a JSON text block", func() {
			vectorDriver.Results = []vector.SearchResult{
				chunkResult("doc_1", 0, "The archive opens at noon.", 0.9),
				chunkResult("doc_2", 1, "Closed on public holidays.", 0.8),
			}

			res, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "opening hours"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			Expect(out.Query).To(Equal("opening hours"))
			Expect(out.Count).To(Equal(2))
			Expect(out.Results[0].DocumentID).To(Equal("doc_1"))
			Expect(out.Results[0].SimilarityScore).To(Equal(0.9))

			Expect(res.Content).To(HaveLen(1))
			text, ok := res.Content[0].(*sdk.TextContent)
			Expect(ok).To(BeTrue())

			var echoed retrieve.SearchOutput
			Expect(json.Unmarshal([]byte(text.Text), &echoed)).To(Succeed())
			Expect(echoed.Count).To(Equal(2))
		})

		It("falls back to the configured default top_k", func() {
			for i := 0; i < 8; i++ {
				vectorDriver.Results = append(vectorDriver.Results, chunkResult("doc_1", i, "chunk", 0.5))
			}

			_, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "everything"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Count).To(Equal(5))
		})

		It("reports pipeline failures as tool errors", func() {
			embedder.FailOn = "doomed"

			res, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "doomed"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())

			text, ok := res.Content[0].(*sdk.TextContent)
			Expect(ok).To(BeTrue())
			Expect(text.Text).To(ContainSubstring("Search failed:"))
		})
	})

	Describe("handleAsk", func() {
		It("answers with sources and metrics", func() {
			vectorDriver.Results = []vector.SearchResult{
				chunkResult("doc_1", 0, "Returns are accepted within thirty days.", 0.9),
			}
			generator.Answer = "Returns are accepted within thirty days."

			res, out, err := server.handleAsk(ctx, nil, AskInput{Question: "what is the returns policy?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			Expect(out.Answer).To(Equal("Returns are accepted within thirty days."))
			Expect(out.Sources).To(HaveLen(1))
			Expect(out.Metrics.ChunksRetrieved).To(Equal(1))
		})

		It("returns the canned answer when nothing matches", func() {
			_, out, err := server.handleAsk(ctx, nil, AskInput{Question: "unrelated question?"})
			Expect(err).NotTo(HaveOccurred())

			Expect(out.Answer).To(ContainSubstring("couldn't find relevant information"))
			Expect(out.Sources).To(BeEmpty())
			Expect(generator.LastQuestion).To(BeEmpty())
		})

		It("reports generation failures as tool errors", func() {
			vectorDriver.Results = []vector.SearchResult{
				chunkResult("doc_1", 0, "content", 0.9),
			}
			generator.FailOn = "doomed question?"

			res, _, err := server.handleAsk(ctx, nil, AskInput{Question: "doomed question?"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())

			text, ok := res.Content[0].(*sdk.TextContent)
			Expect(ok).To(BeTrue())
			Expect(text.Text).To(ContainSubstring("Ask failed:"))
		})
	})
})

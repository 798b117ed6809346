// Package retrieve implements the retrieval pipeline shared by the REST
// endpoints, the MCP tools, and the CLI's local mode: embed the question,
// search the index, and optionally generate a grounded answer with source
// citations and per-stage timings.
package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/metrics"
	"github.com/papercomputeco/folio/pkg/vector"
)

// DefaultTopK is the number of chunks retrieved when the caller does not
// specify one.
const DefaultTopK = 5

// citationLimit is the maximum chunk length carried in a citation. Longer
// chunks are truncated with an ellipsis; the full text stays in the index.
const citationLimit = 500

// Options controls one retrieval pass.
type Options struct {
	// TopK is the number of chunks to retrieve. Zero means DefaultTopK.
	TopK int

	// DocumentIDs restricts the search to the given documents when non-empty.
	DocumentIDs []string

	// Threshold drops chunks scoring below it.
	Threshold float32
}

// SourceChunk is the citation view of a retrieved chunk.
type SourceChunk struct {
	DocumentID      string  `json:"document_id"`
	Filename        string  `json:"filename"`
	ChunkIndex      int     `json:"chunk_index"`
	Content         string  `json:"content"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Retrieval is the outcome of embedding a question and searching the index.
// Results carries the full chunk text for prompt construction; Sources is
// the truncated citation view returned to callers.
type Retrieval struct {
	Results []vector.SearchResult
	Sources []SourceChunk

	EmbeddingLatencyMs float64
	RetrievalLatencyMs float64

	AvgScore float64
	MaxScore float64
	MinScore float64
}

// Answer is a complete question-answering result.
type Answer struct {
	Answer  string               `json:"answer"`
	Sources []SourceChunk        `json:"sources"`
	Metrics metrics.QueryMetrics `json:"metrics"`
}

// SearchOutput is the result of a retrieval-only search.
type SearchOutput struct {
	Query   string        `json:"query"`
	Results []SourceChunk `json:"results"`
	Count   int           `json:"count"`
}

// Retrieve embeds the question and searches the index, timing both stages.
func Retrieve(
	ctx context.Context,
	question string,
	opts Options,
	embedder embeddings.Embedder,
	driver vector.Driver,
	logger *slog.Logger,
) (*Retrieval, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	logger.Debug("retrieval request",
		"question", question,
		"top_k", topK,
		"document_ids", len(opts.DocumentIDs),
	)

	embedStart := time.Now()
	queryEmbedding, err := embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	embeddingMs := metrics.LatencyMs(time.Since(embedStart))

	searchStart := time.Now()
	results, err := driver.Search(ctx, queryEmbedding, vector.SearchOptions{
		TopK:        topK,
		DocumentIDs: opts.DocumentIDs,
		Threshold:   opts.Threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}
	retrievalMs := metrics.LatencyMs(time.Since(searchStart))

	scores := make([]float32, len(results))
	for i, r := range results {
		scores[i] = r.Score
	}
	avg, max, min := metrics.ScoreStats(scores)

	return &Retrieval{
		Results:            results,
		Sources:            BuildSources(results),
		EmbeddingLatencyMs: embeddingMs,
		RetrievalLatencyMs: retrievalMs,
		AvgScore:           avg,
		MaxScore:           max,
		MinScore:           min,
	}, nil
}

// Ask runs the full pipeline: retrieve, then generate a grounded answer.
// With no retrieved chunks the canned no-results answer is returned without
// calling the generator, and the generation latency is reported as zero.
func Ask(
	ctx context.Context,
	question string,
	opts Options,
	embedder embeddings.Embedder,
	driver vector.Driver,
	generator llm.Generator,
	logger *slog.Logger,
) (*Answer, error) {
	totalStart := time.Now()

	ret, err := Retrieve(ctx, question, opts, embedder, driver, logger)
	if err != nil {
		return nil, err
	}

	var answer string
	generationMs := float64(0)

	if len(ret.Results) == 0 {
		answer = llm.NoResultsAnswer(question)
	} else {
		genStart := time.Now()
		answer, err = generator.Generate(ctx, question, ret.Results)
		if err != nil {
			return nil, err
		}
		generationMs = metrics.LatencyMs(time.Since(genStart))
	}

	return &Answer{
		Answer:  answer,
		Sources: ret.Sources,
		Metrics: ret.QueryMetrics(generationMs, metrics.LatencyMs(time.Since(totalStart))),
	}, nil
}

// Search runs a retrieval-only pass and shapes it for the search endpoint
// and the MCP search tool.
func Search(
	ctx context.Context,
	query string,
	opts Options,
	embedder embeddings.Embedder,
	driver vector.Driver,
	logger *slog.Logger,
) (*SearchOutput, error) {
	ret, err := Retrieve(ctx, query, opts, embedder, driver, logger)
	if err != nil {
		return nil, err
	}

	return &SearchOutput{
		Query:   query,
		Results: ret.Sources,
		Count:   len(ret.Sources),
	}, nil
}

// QueryMetrics assembles the full per-query metrics record from the
// retrieval timings plus the caller-measured generation and total times.
func (r *Retrieval) QueryMetrics(generationMs, totalMs float64) metrics.QueryMetrics {
	return metrics.QueryMetrics{
		TotalLatencyMs:      totalMs,
		EmbeddingLatencyMs:  r.EmbeddingLatencyMs,
		RetrievalLatencyMs:  r.RetrievalLatencyMs,
		GenerationLatencyMs: generationMs,
		ChunksRetrieved:     len(r.Results),
		AvgSimilarityScore:  r.AvgScore,
		MaxSimilarityScore:  r.MaxScore,
		MinSimilarityScore:  r.MinScore,
		Timestamp:           time.Now().UTC().Format(time.RFC3339),
	}
}

// BuildSources converts raw search results into citation form.
func BuildSources(results []vector.SearchResult) []SourceChunk {
	sources := make([]SourceChunk, 0, len(results))
	for _, r := range results {
		sources = append(sources, SourceChunk{
			DocumentID:      r.DocumentID,
			Filename:        r.Filename,
			ChunkIndex:      r.ChunkIndex,
			Content:         truncateContent(r.Content),
			SimilarityScore: round4(float64(r.Score)),
		})
	}

	return sources
}

// truncateContent caps citation content at citationLimit runes.
func truncateContent(s string) string {
	runes := []rune(s)
	if len(runes) <= citationLimit {
		return s
	}

	return string(runes[:citationLimit]) + "..."
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

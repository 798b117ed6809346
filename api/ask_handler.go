package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/papercomputeco/folio/api/retrieve"
	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/metrics"
	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	questionMinChars = 5
	questionMaxChars = 500

	askTopKMin = 1
	askTopKMax = 20
)

// AskRequest is the body of the ask endpoints.
type AskRequest struct {
	Question    string   `json:"question"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
}

// StreamMeta opens the ask stream with the citations and retrieval timings.
// The answer text follows as delta events.
type StreamMeta struct {
	Sources            []retrieve.SourceChunk `json:"sources"`
	ChunksRetrieved    int                    `json:"chunks_retrieved"`
	EmbeddingLatencyMs float64                `json:"embedding_latency_ms"`
	RetrievalLatencyMs float64                `json:"retrieval_latency_ms"`
}

// StreamDelta is one incremental answer fragment on the ask stream.
type StreamDelta struct {
	Text string `json:"text"`
}

// parseAskRequest validates the shared request shape of the ask endpoints.
// On failure it writes the error response and returns a nil call.
func (s *Server) parseAskRequest(c *fiber.Ctx) (string, retrieve.Options, error) {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return "", retrieve.Options{}, c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "invalid request body",
		})
	}

	question := strings.TrimSpace(req.Question)
	if n := utf8.RuneCountInString(question); n < questionMinChars || n > questionMaxChars {
		return "", retrieve.Options{}, c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: fmt.Sprintf("question must be between %d and %d characters", questionMinChars, questionMaxChars),
		})
	}

	topK := req.TopK
	if topK == 0 {
		topK = int(s.config.DefaultTopK)
	}
	if topK < askTopKMin || topK > askTopKMax {
		return "", retrieve.Options{}, c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: fmt.Sprintf("top_k must be between %d and %d", askTopKMin, askTopKMax),
		})
	}

	if s.config.Generator == nil {
		return "", retrieve.Options{}, c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{
			Error: "ask is not configured: an LLM generator is required",
		})
	}

	count, err := s.config.VectorDriver.ChunkCount(c.Context())
	if err != nil {
		return "", retrieve.Options{}, c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: fmt.Sprintf("Processing error: %v", err),
		})
	}
	if count == 0 {
		return "", retrieve.Options{}, c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "No documents have been processed yet. Please upload documents first.",
		})
	}

	opts := retrieve.Options{
		TopK:        topK,
		DocumentIDs: req.DocumentIDs,
		Threshold:   s.config.ScoreThreshold,
	}

	return question, opts, nil
}

// askErrorMessage classifies a pipeline failure for the response body.
func askErrorMessage(err error) string {
	switch {
	case errors.Is(err, vector.ErrEmbedding):
		return fmt.Sprintf("Embedding error: %v", err)
	case errors.Is(err, llm.ErrGeneration):
		return fmt.Sprintf("LLM error: %v", err)
	default:
		return fmt.Sprintf("Processing error: %v", err)
	}
}

// handleAsk answers a question from the indexed documents in one shot.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	question, opts, err := s.parseAskRequest(c)
	if question == "" {
		return err
	}

	answer, err := retrieve.Ask(
		c.Context(),
		question,
		opts,
		s.config.Embedder,
		s.config.VectorDriver,
		s.config.Generator,
		s.logger,
	)
	if err != nil {
		s.logger.Error("ask failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: askErrorMessage(err),
		})
	}

	s.config.Metrics.RecordQuery(answer.Metrics)

	return c.JSON(answer)
}

// handleAskStream answers a question as a server-sent event stream: a meta
// event with the citations, delta events carrying answer text, and a done
// event with the query metrics.
func (s *Server) handleAskStream(c *fiber.Ctx) error {
	question, opts, err := s.parseAskRequest(c)
	if question == "" {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	// The stream writer runs after this handler returns, when the fiber
	// context is no longer valid. Capture everything it needs up front.
	embedder := s.config.Embedder
	driver := s.config.VectorDriver
	generator := s.config.Generator
	aggregator := s.config.Metrics
	logger := s.logger

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx := context.Background()
		totalStart := time.Now()

		ret, err := retrieve.Retrieve(ctx, question, opts, embedder, driver, logger)
		if err != nil {
			logger.Error("ask stream retrieval failed", "error", err)
			_ = writeSSE(w, "error", llm.ErrorResponse{Error: askErrorMessage(err)})
			return
		}

		meta := StreamMeta{
			Sources:            ret.Sources,
			ChunksRetrieved:    len(ret.Results),
			EmbeddingLatencyMs: ret.EmbeddingLatencyMs,
			RetrievalLatencyMs: ret.RetrievalLatencyMs,
		}
		if err := writeSSE(w, "meta", meta); err != nil {
			return
		}

		generationMs := float64(0)

		if len(ret.Results) == 0 {
			if err := writeSSE(w, "delta", StreamDelta{Text: llm.NoResultsAnswer(question)}); err != nil {
				return
			}
		} else {
			genStart := time.Now()
			err := generator.Stream(ctx, question, ret.Results, func(delta string) error {
				return writeSSE(w, "delta", StreamDelta{Text: delta})
			})
			if err != nil {
				logger.Error("ask stream generation failed", "error", err)
				_ = writeSSE(w, "error", llm.ErrorResponse{Error: askErrorMessage(err)})
				return
			}
			generationMs = metrics.LatencyMs(time.Since(genStart))
		}

		m := ret.QueryMetrics(generationMs, metrics.LatencyMs(time.Since(totalStart)))
		aggregator.RecordQuery(m)

		_ = writeSSE(w, "done", m)
	}))

	return nil
}

// writeSSE writes one server-sent event and flushes it to the client.
func writeSSE(w *bufio.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}

package api

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/folio/api/retrieve"
	"github.com/papercomputeco/folio/pkg/llm"
)

// handleSearch runs a retrieval-only query over the indexed chunks. No
// answer is generated; callers get the scored citations directly.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := c.Query("query")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
			Error: "query parameter is required",
		})
	}

	topK := int(s.config.DefaultTopK)
	if raw := c.Query("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
				Error: "top_k must be a positive integer",
			})
		}
		topK = parsed
	}

	threshold := s.config.ScoreThreshold
	if raw := c.Query("score_threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
				Error: "score_threshold must be a number",
			})
		}
		threshold = float32(parsed)
	}

	var docIDs []string
	if raw := c.Query("document_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				docIDs = append(docIDs, id)
			}
		}
	}

	opts := retrieve.Options{
		TopK:        topK,
		DocumentIDs: docIDs,
		Threshold:   threshold,
	}

	out, err := retrieve.Search(c.Context(), query, opts, s.config.Embedder, s.config.VectorDriver, s.logger)
	if err != nil {
		s.logger.Error("search failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(out)
}

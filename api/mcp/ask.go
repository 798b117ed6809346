package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/folio/api/retrieve"
)

var (
	askToolName    = "ask_folio"
	askDescription = "Ask a question about the folio document library. Retrieves the most relevant chunks and generates an answer with source citations and timing metrics."
)

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	Question    string   `json:"question" jsonschema:"the question to answer from the document library"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default: 5)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict retrieval to these document ids"`
}

// handleAsk processes an ask request.
func (s *Server) handleAsk(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, retrieve.Answer, error) {
	logger := s.config.Logger

	// Default topK if not specified
	topK := input.TopK
	if topK <= 0 {
		topK = int(s.config.DefaultTopK)
	}

	logger.Debug("MCP ask request",
		"question", input.Question,
		"top_k", topK,
	)

	opts := retrieve.Options{
		TopK:        topK,
		DocumentIDs: input.DocumentIDs,
		Threshold:   s.config.ScoreThreshold,
	}

	answer, err := retrieve.Ask(ctx, input.Question, opts, s.config.Embedder, s.config.VectorDriver, s.config.Generator, logger)
	if err != nil {
		logger.Error("MCP ask failed", "error", err)
		return toolError(fmt.Sprintf("Ask failed: %v", err)), retrieve.Answer{}, nil
	}

	return toolResult(logger, *answer)
}

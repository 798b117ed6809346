package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/folio/api/retrieve"
)

var (
	searchToolName    = "search_folio"
	searchDescription = "Search the folio document library using semantic search. Returns the most relevant chunks with document citations and similarity scores."
)

// SearchInput represents the input arguments for the search tool.
type SearchInput struct {
	Query       string   `json:"query" jsonschema:"the search query text to find relevant document chunks"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"number of results to return (default: 5)"`
	DocumentIDs []string `json:"document_ids,omitempty" jsonschema:"restrict the search to these document ids"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, retrieve.SearchOutput, error) {
	logger := s.config.Logger

	// Default topK if not specified
	topK := input.TopK
	if topK <= 0 {
		topK = int(s.config.DefaultTopK)
	}

	logger.Debug("MCP search request",
		"query", input.Query,
		"top_k", topK,
	)

	opts := retrieve.Options{
		TopK:        topK,
		DocumentIDs: input.DocumentIDs,
		Threshold:   s.config.ScoreThreshold,
	}

	out, err := retrieve.Search(ctx, input.Query, opts, s.config.Embedder, s.config.VectorDriver, logger)
	if err != nil {
		logger.Error("MCP search failed", "error", err)
		return toolError(fmt.Sprintf("Search failed: %v", err)), retrieve.SearchOutput{}, nil
	}

	return toolResult(logger, *out)
}

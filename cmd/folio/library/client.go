package librarycmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/papercomputeco/folio/pkg/docstore"
	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/vector"
)

// libraryClient talks to the document endpoints of a running folio server.
type libraryClient struct {
	apiTarget string
	http      *http.Client
}

func newLibraryClient(apiTarget string) *libraryClient {
	return &libraryClient{
		apiTarget: apiTarget,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *libraryClient) listDocuments(ctx context.Context) ([]docstore.Document, error) {
	body, err := c.get(ctx, "/api/v1/documents")
	if err != nil {
		return nil, err
	}

	var documents []docstore.Document
	if err := json.Unmarshal(body, &documents); err != nil {
		return nil, fmt.Errorf("parsing documents response: %w", err)
	}
	return documents, nil
}

// chunksResponse matches the document chunks endpoint payload.
type chunksResponse struct {
	DocumentID string               `json:"document_id"`
	Chunks     []vector.ChunkRecord `json:"chunks"`
	Count      int                  `json:"count"`
}

func (c *libraryClient) documentChunks(ctx context.Context, documentID string) ([]vector.ChunkRecord, error) {
	body, err := c.get(ctx, "/api/v1/documents/"+url.PathEscape(documentID)+"/chunks")
	if err != nil {
		return nil, err
	}

	var resp chunksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing chunks response: %w", err)
	}
	return resp.Chunks, nil
}

func (c *libraryClient) deleteDocument(ctx context.Context, documentID string) error {
	target, err := c.resolve("/api/v1/documents/" + url.PathEscape(documentID))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return fmt.Errorf("creating delete request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to folio API at %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return apiError("delete", resp.StatusCode, body)
	}
	return nil
}

func (c *libraryClient) get(ctx context.Context, path string) ([]byte, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to folio API at %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("request", resp.StatusCode, body)
	}
	return body, nil
}

func (c *libraryClient) resolve(path string) (string, error) {
	base, err := url.Parse(c.apiTarget)
	if err != nil {
		return "", fmt.Errorf("invalid API target URL: %w", err)
	}
	base.Path = path
	return base.String(), nil
}

func apiError(op string, status int, body []byte) error {
	var apiErr llm.ErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("%s failed (HTTP %d): %s", op, status, apiErr.Error)
	}
	return fmt.Errorf("%s failed (HTTP %d): %s", op, status, string(body))
}

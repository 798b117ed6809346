// Package gemini implements pkg/embeddings' Embedder client for the Gemini
// embedContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/folio/pkg/embeddings"
	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	// DefaultEmbeddingModel is the default model used for embeddings.
	DefaultEmbeddingModel = "models/embedding-001"

	// DefaultBaseURL is the Gemini API URL.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// taskTypeDocument marks ingest-side embeddings, taskTypeQuery the
	// retrieval side. Gemini tunes the vector per task.
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"

	// batchDelay spaces sequential batch calls to stay under rate limits.
	batchDelay = 50 * time.Millisecond

	// DefaultMaxRetries is the attempt cap per request.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base backoff, doubling each retry.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Embedder wraps the Gemini embedContent API.
type Embedder struct {
	baseURL    string
	model      string
	apiKey     string
	maxRetries int
	retryDelay time.Duration
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the Gemini embedder.
type EmbedderConfig struct {
	// BaseURL overrides the Gemini API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the embedding model, with or without the "models/" prefix.
	// Defaults to DefaultEmbeddingModel if empty.
	Model string

	// APIKey authenticates the request. Required.
	APIKey string

	// MaxRetries caps attempts per request on rate-limit and server
	// errors. Defaults to DefaultMaxRetries if zero.
	MaxRetries int

	// RetryDelay is the base backoff between attempts. Defaults to
	// DefaultRetryDelay if zero.
	RetryDelay time.Duration
}

type embedRequest struct {
	Model    string  `json:"model"`
	Content  content `json:"content"`
	TaskType string  `json:"taskType"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// NewEmbedder creates a new embedder using the Gemini embedContent API.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}

	return &Embedder{
		baseURL:    baseURL,
		model:      model,
		apiKey:     cfg.APIKey,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

// Embed converts a query text into a vector embedding.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, taskTypeQuery)
}

// EmbedBatch embeds document texts one call at a time with a small spacing
// delay. The whole batch fails on the first error, reporting the index it
// stopped at.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, 0, len(texts))
	for i, text := range texts {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(batchDelay):
			}
		}

		embedding, err := e.embed(ctx, text, taskTypeDocument)
		if err != nil {
			return nil, fmt.Errorf("batch embedding failed at index %d: %w", i, err)
		}
		results = append(results, embedding)
	}

	return results, nil
}

func (e *Embedder) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	jsonBody, err := json.Marshal(embedRequest{
		Model:    e.model,
		Content:  content{Parts: []part{{Text: text}}},
		TaskType: taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", vector.ErrEmbedding, err)
	}

	url := fmt.Sprintf("%s/%s:embedContent", e.baseURL, e.model)

	var lastErr error
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := e.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		values, retryable, err := e.doEmbed(ctx, url, jsonBody)
		if err == nil {
			return values, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// doEmbed performs one request. The second return reports whether the
// failure is retryable (rate limit or server-side).
func (e *Embedder) doEmbed(ctx context.Context, url string, jsonBody []byte) ([]float32, bool, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, false, fmt.Errorf("%w: creating request: %v", vector.ErrEmbedding, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: sending request: %v", vector.ErrEmbedding, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("%w: gemini returned status %d: %s", vector.ErrEmbedding, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, false, fmt.Errorf("%w: decoding response: %v", vector.ErrEmbedding, err)
	}

	if len(embedResp.Embedding.Values) == 0 {
		return nil, false, fmt.Errorf("%w: no embedding returned", vector.ErrEmbedding)
	}

	return embedResp.Embedding.Values, false, nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*Embedder)(nil)

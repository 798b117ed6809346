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

	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/sse"
	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	// DefaultModel is the default generation model.
	DefaultModel = "gemini-1.5-flash"

	// DefaultBaseURL is the Gemini API URL.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultMaxRetries is the attempt cap per request.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base backoff, doubling each retry.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Generator wraps the Gemini generateContent API.
type Generator struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
	httpClient  *http.Client
}

// Config holds configuration for the Gemini generator.
type Config struct {
	// BaseURL overrides the Gemini API URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the generation model, with or without the "models/"
	// prefix. Defaults to DefaultModel if empty.
	Model string

	// APIKey authenticates the request. Required.
	APIKey string

	// Temperature controls sampling. Defaults to llm.DefaultTemperature
	// if zero.
	Temperature float64

	// MaxTokens caps the answer length. Defaults to llm.DefaultMaxTokens
	// if zero.
	MaxTokens int

	// MaxRetries caps attempts per request on rate-limit and server
	// errors. Defaults to DefaultMaxRetries if zero.
	MaxRetries int

	// RetryDelay is the base backoff between attempts. Defaults to
	// DefaultRetryDelay if zero.
	RetryDelay time.Duration
}

// NewGenerator creates a new generator using the Gemini generateContent API.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = llm.DefaultTemperature
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}

	retryDelay := cfg.RetryDelay
	if retryDelay == 0 {
		retryDelay = DefaultRetryDelay
	}

	return &Generator{
		baseURL:     baseURL,
		model:       model,
		apiKey:      cfg.APIKey,
		temperature: temperature,
		maxTokens:   maxTokens,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
		httpClient: &http.Client{
			// Generous enough for streamed answers from a busy API.
			Timeout: 5 * time.Minute,
		},
	}, nil
}

// Generate returns a complete answer grounded in the provided sources.
func (g *Generator) Generate(ctx context.Context, question string, sources []vector.SearchResult) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: empty question", llm.ErrGeneration)
	}
	if len(sources) == 0 {
		return llm.EmptyContextAnswer, nil
	}

	jsonBody, err := g.marshalRequest(question, sources)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			if err := g.backoff(ctx, attempt); err != nil {
				return "", err
			}
		}

		answer, retryable, err := g.doGenerate(ctx, url, jsonBody)
		if err == nil {
			return answer, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}

	return "", lastErr
}

// Stream generates the answer incrementally, invoking fn for each text delta.
func (g *Generator) Stream(ctx context.Context, question string, sources []vector.SearchResult, fn func(delta string) error) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: empty question", llm.ErrGeneration)
	}
	if len(sources) == 0 {
		return fn(llm.EmptyContextAnswer)
	}

	jsonBody, err := g.marshalRequest(question, sources)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse", g.baseURL, g.model)

	// Retry only the stream open; once deltas have been delivered the
	// stream cannot be replayed.
	var (
		body    io.ReadCloser
		lastErr error
	)
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			if err := g.backoff(ctx, attempt); err != nil {
				return err
			}
		}

		var retryable bool
		body, retryable, lastErr = g.openStream(ctx, url, jsonBody)
		if lastErr == nil {
			break
		}
		if !retryable {
			return lastErr
		}
	}
	if lastErr != nil {
		return lastErr
	}
	defer body.Close()

	reader := sse.NewReader(body)
	for {
		event, err := reader.Next()
		if err != nil {
			return fmt.Errorf("%w: reading stream: %v", llm.ErrGeneration, err)
		}
		if event == nil {
			return nil
		}

		var chunk generateResponse
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			return fmt.Errorf("%w: decoding stream chunk: %v", llm.ErrGeneration, err)
		}

		if delta := chunk.text(); delta != "" {
			if err := fn(delta); err != nil {
				return err
			}
		}
	}
}

func (g *Generator) marshalRequest(question string, sources []vector.SearchResult) ([]byte, error) {
	prompt := llm.BuildPrompt(question, llm.BuildContext(sources))

	jsonBody, err := json.Marshal(generateRequest{
		SystemInstruction: &generateContent{Parts: []part{{Text: llm.SystemPrompt}}},
		Contents: []generateTurn{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     g.temperature,
			MaxOutputTokens: g.maxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", llm.ErrGeneration, err)
	}

	return jsonBody, nil
}

func (g *Generator) backoff(ctx context.Context, attempt int) error {
	delay := g.retryDelay * time.Duration(1<<(attempt-1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// doGenerate performs one request. The second return reports whether the
// failure is retryable (rate limit or server-side).
func (g *Generator) doGenerate(ctx context.Context, url string, jsonBody []byte) (string, bool, error) {
	resp, err := g.post(ctx, url, jsonBody)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryable, err := statusError(resp)
		return "", retryable, err
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", false, fmt.Errorf("%w: decoding response: %v", llm.ErrGeneration, err)
	}

	answer := genResp.text()
	if answer == "" {
		return "", false, fmt.Errorf("%w: empty response from model", llm.ErrGeneration)
	}

	return answer, false, nil
}

func (g *Generator) openStream(ctx context.Context, url string, jsonBody []byte) (io.ReadCloser, bool, error) {
	resp, err := g.post(ctx, url, jsonBody)
	if err != nil {
		return nil, false, err
	}

	if resp.StatusCode != http.StatusOK {
		retryable, err := statusError(resp)
		resp.Body.Close()
		return nil, retryable, err
	}

	return resp.Body, false, nil
}

func (g *Generator) post(ctx context.Context, url string, jsonBody []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", llm.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", llm.ErrGeneration, err)
	}

	return resp, nil
}

func statusError(resp *http.Response) (bool, error) {
	body, _ := io.ReadAll(resp.Body)
	retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return retryable, fmt.Errorf("%w: gemini returned status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body))
}

// Close releases resources held by the generator.
func (g *Generator) Close() error {
	return nil
}

var _ llm.Generator = (*Generator)(nil)

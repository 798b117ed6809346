package openai

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
	DefaultModel = "gpt-4o-mini"

	// DefaultBaseURL is the OpenAI API URL.
	DefaultBaseURL = "https://api.openai.com/v1"

	// doneMarker terminates an OpenAI SSE stream.
	doneMarker = "[DONE]"
)

// Generator wraps the OpenAI chat completions API.
type Generator struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// Config holds configuration for the OpenAI generator.
type Config struct {
	// BaseURL overrides the OpenAI API URL. Defaults to DefaultBaseURL.
	// Pointing it at a compatible server (vLLM, LM Studio) works as well.
	BaseURL string

	// Model is the generation model. Defaults to DefaultModel if empty.
	Model string

	// APIKey authenticates the request. Required.
	APIKey string

	// Temperature controls sampling. Defaults to llm.DefaultTemperature
	// if zero.
	Temperature float64

	// MaxTokens caps the answer length. Defaults to llm.DefaultMaxTokens
	// if zero.
	MaxTokens int
}

// NewGenerator creates a new generator using the OpenAI chat completions API.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = llm.DefaultTemperature
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = llm.DefaultMaxTokens
	}

	return &Generator{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       model,
		apiKey:      cfg.APIKey,
		temperature: temperature,
		maxTokens:   maxTokens,
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

	resp, err := g.chat(ctx, question, sources, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", llm.ErrGeneration, err)
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty response from model", llm.ErrGeneration)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Stream generates the answer incrementally, invoking fn for each SSE delta.
func (g *Generator) Stream(ctx context.Context, question string, sources []vector.SearchResult, fn func(delta string) error) error {
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("%w: empty question", llm.ErrGeneration)
	}
	if len(sources) == 0 {
		return fn(llm.EmptyContextAnswer)
	}

	resp, err := g.chat(ctx, question, sources, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := sse.NewReader(resp.Body)
	for {
		event, err := reader.Next()
		if err != nil {
			return fmt.Errorf("%w: reading stream: %v", llm.ErrGeneration, err)
		}
		if event == nil {
			return nil
		}
		if event.Data == doneMarker {
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			return fmt.Errorf("%w: decoding stream chunk: %v", llm.ErrGeneration, err)
		}

		if len(chunk.Choices) == 0 {
			continue
		}

		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := fn(delta); err != nil {
				return err
			}
		}
	}
}

func (g *Generator) chat(ctx context.Context, question string, sources []vector.SearchResult, stream bool) (*http.Response, error) {
	prompt := llm.BuildPrompt(question, llm.BuildContext(sources))

	jsonBody, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: llm.SystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", llm.ErrGeneration, err)
	}

	url := g.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", llm.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", llm.ErrGeneration, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: openai returned status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body))
	}

	return resp, nil
}

// Close releases resources held by the generator.
func (g *Generator) Close() error {
	return nil
}

var _ llm.Generator = (*Generator)(nil)

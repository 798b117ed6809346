package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/vector"
)

const (
	// DefaultModel is the default generation model.
	DefaultModel = "llama3.2"

	// DefaultBaseURL is the default Ollama server URL.
	DefaultBaseURL = "http://localhost:11434"
)

// Generator wraps the Ollama /api/chat API.
type Generator struct {
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// Config holds configuration for the Ollama generator.
type Config struct {
	// BaseURL overrides the Ollama server URL. Defaults to DefaultBaseURL.
	BaseURL string

	// Model is the generation model. Defaults to DefaultModel if empty.
	Model string

	// Temperature controls sampling. Defaults to llm.DefaultTemperature
	// if zero.
	Temperature float64

	// MaxTokens caps the answer length. Defaults to llm.DefaultMaxTokens
	// if zero.
	MaxTokens int
}

// NewGenerator creates a new generator backed by a local Ollama server.
func NewGenerator(cfg Config) (*Generator, error) {
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
		temperature: temperature,
		maxTokens:   maxTokens,
		httpClient: &http.Client{
			// Local models can be slow to load and generate.
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

	if chatResp.Message.Content == "" {
		return "", fmt.Errorf("%w: empty response from model", llm.ErrGeneration)
	}

	return chatResp.Message.Content, nil
}

// Stream generates the answer incrementally, invoking fn for each text delta
// parsed from the NDJSON response lines.
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

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("%w: decoding stream chunk: %v", llm.ErrGeneration, err)
		}

		if chunk.Message.Content != "" {
			if err := fn(chunk.Message.Content); err != nil {
				return err
			}
		}

		if chunk.Done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading stream: %v", llm.ErrGeneration, err)
	}

	return nil
}

func (g *Generator) chat(ctx context.Context, question string, sources []vector.SearchResult, stream bool) (*http.Response, error) {
	prompt := llm.BuildPrompt(question, llm.BuildContext(sources))

	jsonBody, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: llm.SystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Stream: stream,
		Options: chatOptions{
			Temperature: g.temperature,
			NumPredict:  g.maxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", llm.ErrGeneration, err)
	}

	url := g.baseURL + "/api/chat"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", llm.ErrGeneration, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", llm.ErrGeneration, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: ollama returned status %d: %s", llm.ErrGeneration, resp.StatusCode, string(body))
	}

	return resp, nil
}

// Close releases resources held by the generator.
func (g *Generator) Close() error {
	return nil
}

var _ llm.Generator = (*Generator)(nil)

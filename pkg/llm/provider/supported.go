package provider

import (
	"fmt"

	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/llm/provider/gemini"
	"github.com/papercomputeco/folio/pkg/llm/provider/ollama"
	"github.com/papercomputeco/folio/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Gemini = "gemini"
	OpenAI = "openai"
	Ollama = "ollama"
)

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Gemini, OpenAI, Ollama}
}

type NewGeneratorOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Temperature  float64
	MaxTokens    int
}

// NewGenerator creates a generator client for the given provider type.
// Returns an error if the provider type is not recognized.
func NewGenerator(o *NewGeneratorOpts) (llm.Generator, error) {
	switch o.ProviderType {
	case Gemini:
		return gemini.NewGenerator(gemini.Config{
			BaseURL:     o.TargetURL,
			Model:       o.Model,
			APIKey:      o.APIKey,
			Temperature: o.Temperature,
			MaxTokens:   o.MaxTokens,
		})
	case OpenAI:
		return openai.NewGenerator(openai.Config{
			BaseURL:     o.TargetURL,
			Model:       o.Model,
			APIKey:      o.APIKey,
			Temperature: o.Temperature,
			MaxTokens:   o.MaxTokens,
		})
	case Ollama:
		return ollama.NewGenerator(ollama.Config{
			BaseURL:     o.TargetURL,
			Model:       o.Model,
			Temperature: o.Temperature,
			MaxTokens:   o.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", o.ProviderType, SupportedProviders())
	}
}

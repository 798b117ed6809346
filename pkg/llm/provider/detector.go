// Package provider
package provider

import "strings"

// DetectProvider returns the provider type implied by a model name. Model
// names carry strong provider markers: gemini models are Google's, gpt/o*
// models are OpenAI's. Anything unrecognized maps to ollama, which serves
// arbitrary local model names.
func DetectProvider(model string) string {
	m := strings.ToLower(strings.TrimPrefix(model, "models/"))

	switch {
	case strings.HasPrefix(m, "gemini"),
		strings.HasPrefix(m, "embedding-"),
		strings.HasPrefix(m, "text-embedding-0"):
		return Gemini
	case strings.HasPrefix(m, "gpt-"),
		strings.HasPrefix(m, "chatgpt"),
		strings.HasPrefix(m, "o1"),
		strings.HasPrefix(m, "o3"),
		strings.HasPrefix(m, "o4"),
		strings.HasPrefix(m, "text-embedding-3"),
		strings.HasPrefix(m, "text-embedding-ada"):
		return OpenAI
	default:
		return Ollama
	}
}

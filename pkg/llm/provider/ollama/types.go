// Package ollama
package ollama

import "github.com/papercomputeco/folio/pkg/llm"

// chatRequest represents Ollama's /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

// chatResponse represents Ollama's /api/chat response format. In streaming
// mode each NDJSON line is one chatResponse with a partial message.
type chatResponse struct {
	Model      string      `json:"model"`
	Message    llm.Message `json:"message"`
	Done       bool        `json:"done"`
	DoneReason string      `json:"done_reason,omitempty"`
}

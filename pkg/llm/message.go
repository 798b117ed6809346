// Package llm provides grounded answer generation over retrieved document
// context. Provider clients live under provider/; this package holds the
// shared types and the prompt construction they all use.
package llm

// Chat roles shared by the generator providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a chat exchange with a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrorResponse is the JSON error envelope returned by the HTTP API.
type ErrorResponse struct {
	Error string `json:"error"`
}

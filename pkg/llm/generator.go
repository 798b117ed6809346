package llm

import (
	"context"

	"github.com/papercomputeco/folio/pkg/vector"
)

// Default generation parameters. Answers should stay close to the retrieved
// context, so the temperature is kept low.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 1024
)

// Generator produces grounded answers from retrieved context.
type Generator interface {
	// Generate returns a complete answer to the question using the
	// provided sources as context. With no sources it returns
	// EmptyContextAnswer without calling the provider.
	Generate(ctx context.Context, question string, sources []vector.SearchResult) (string, error)

	// Stream generates the answer incrementally, invoking fn for each text
	// delta as it arrives. An error returned by fn aborts the stream.
	Stream(ctx context.Context, question string, sources []vector.SearchResult, fn func(delta string) error) error

	// Close releases any resources held by the generator.
	Close() error
}

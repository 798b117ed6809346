// Package embeddings
package embeddings

import "context"

// Embedder provides text embedding capabilities. Embed is the query-side
// call; EmbedBatch is the ingest-side call and preserves input order, so
// providers that distinguish query and document embeddings key off the
// method used.
type Embedder interface {
	// Embed converts a query text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts document texts into embeddings, one per input,
	// in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

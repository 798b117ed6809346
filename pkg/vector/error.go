package vector

import "errors"

var (
	// ErrLengthMismatch is returned when embeddings and records differ in length.
	ErrLengthMismatch = errors.New("embeddings and records length mismatch")

	// ErrDimensionMismatch is returned when an embedding does not match the
	// index dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)

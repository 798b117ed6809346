package llm

import "errors"

// ErrGeneration is returned when answer generation fails.
var ErrGeneration = errors.New("llm generation failed")

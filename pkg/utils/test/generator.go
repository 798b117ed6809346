package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/folio/pkg/llm"
	"github.com/papercomputeco/folio/pkg/vector"
)

// MockGenerator is a test answer generator with a fixed response.
type MockGenerator struct {
	// Answer is returned by Generate. Defaults to a canned response.
	Answer string

	// FailOn causes Generate to return an error when the question matches.
	FailOn string

	// LastQuestion and LastSources record the most recent call.
	LastQuestion string
	LastSources  []vector.SearchResult
}

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{
		Answer: "mock answer",
	}
}

func (m *MockGenerator) Generate(_ context.Context, question string, sources []vector.SearchResult) (string, error) {
	if m.FailOn != "" && question == m.FailOn {
		return "", fmt.Errorf("%w: mock failure for: %s", llm.ErrGeneration, question)
	}
	m.LastQuestion = question
	m.LastSources = sources
	return m.Answer, nil
}

func (m *MockGenerator) Stream(ctx context.Context, question string, sources []vector.SearchResult, fn func(delta string) error) error {
	answer, err := m.Generate(ctx, question, sources)
	if err != nil {
		return err
	}
	half := len(answer) / 2
	if err := fn(answer[:half]); err != nil {
		return err
	}
	return fn(answer[half:])
}

func (m *MockGenerator) Close() error {
	return nil
}

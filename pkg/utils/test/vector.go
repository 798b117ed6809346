package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/folio/pkg/vector"
)

// MockVectorDriver is a test vector driver backed by a flat record slice.
// Search results are supplied by the test via the Results field.
type MockVectorDriver struct {
	Records []vector.ChunkRecord
	Results []vector.SearchResult

	// FailAdd causes Add to return an error.
	FailAdd bool

	// FailSearch causes Search to return an error.
	FailSearch bool

	SaveCalls int
	LoadCalls int
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Records: make([]vector.ChunkRecord, 0),
		Results: make([]vector.SearchResult, 0),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, embeddings [][]float32, records []vector.ChunkRecord) error {
	if m.FailAdd {
		return fmt.Errorf("mock add failure")
	}
	if len(embeddings) != len(records) {
		return vector.ErrLengthMismatch
	}
	m.Records = append(m.Records, records...)
	return nil
}

func (m *MockVectorDriver) Search(_ context.Context, _ []float32, opts vector.SearchOptions) ([]vector.SearchResult, error) {
	if m.FailSearch {
		return nil, fmt.Errorf("mock search failure")
	}
	if opts.TopK > 0 && len(m.Results) > opts.TopK {
		return m.Results[:opts.TopK], nil
	}
	return m.Results, nil
}

func (m *MockVectorDriver) DeleteDocument(_ context.Context, documentID string) (bool, error) {
	kept := m.Records[:0]
	found := false
	for _, rec := range m.Records {
		if rec.DocumentID == documentID {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	m.Records = kept
	return found, nil
}

func (m *MockVectorDriver) Chunks(_ context.Context, documentID string) ([]vector.ChunkRecord, error) {
	var out []vector.ChunkRecord
	for _, rec := range m.Records {
		if rec.DocumentID == documentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MockVectorDriver) ChunkCount(_ context.Context) (int, error) {
	return len(m.Records), nil
}

func (m *MockVectorDriver) DocumentCount(_ context.Context) (int, error) {
	seen := make(map[string]struct{})
	for _, rec := range m.Records {
		seen[rec.DocumentID] = struct{}{}
	}
	return len(seen), nil
}

func (m *MockVectorDriver) DocumentChunkCount(_ context.Context, documentID string) (int, error) {
	count := 0
	for _, rec := range m.Records {
		if rec.DocumentID == documentID {
			count++
		}
	}
	return count, nil
}

func (m *MockVectorDriver) Ready(_ context.Context) bool {
	return true
}

func (m *MockVectorDriver) Save(_ context.Context) error {
	m.SaveCalls++
	return nil
}

func (m *MockVectorDriver) Load(_ context.Context) error {
	m.LoadCalls++
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/papercomputeco/folio/pkg/eventstream"
)

// MockPublisher is a test eventstream publisher that records every event it
// receives.
type MockPublisher struct {
	mu     sync.Mutex
	events []*eventstream.DocumentEvent

	// FailPublish causes PublishDocument to return an error.
	FailPublish bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishDocument(_ context.Context, event *eventstream.DocumentEvent) error {
	if event == nil {
		return eventstream.ErrNilDocumentEvent
	}
	if m.FailPublish {
		return fmt.Errorf("mock publish failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Events returns a copy of the events published so far.
func (m *MockPublisher) Events() []*eventstream.DocumentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*eventstream.DocumentEvent, len(m.events))
	copy(out, m.events)
	return out
}

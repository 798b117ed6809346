// Package eventstream defines document lifecycle events and the publisher
// contract for emitting them to an event stream backend. Events are emitted
// after the corresponding store and index mutations have committed, so
// consumers observe the library's state changes but never gate them.
package eventstream

import "context"

// Publisher publishes document events to an event stream backend.
type Publisher interface {
	PublishDocument(ctx context.Context, event *DocumentEvent) error
	Close() error
}

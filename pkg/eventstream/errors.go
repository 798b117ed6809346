package eventstream

import "errors"

// ErrNilDocumentEvent indicates a nil document event payload was provided to a
// publisher.
var ErrNilDocumentEvent = errors.New("nil document event")

package parser

import "errors"

var (
	// ErrUnsupported indicates the file extension has no parser.
	ErrUnsupported = errors.New("unsupported file format")

	// ErrNoContent indicates the file parsed but yielded no usable text.
	ErrNoContent = errors.New("no text content")
)

package parser

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// parseText reads a plain-text file, accepting UTF-8 and falling back to
// Windows-1252 for legacy encodings.
func parseText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}

	content := decodeText(data)
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("%w: empty text file", ErrNoContent)
	}

	return content, nil
}

// decodeText returns the input as UTF-8 when valid. Anything else decodes
// as Windows-1252, which accepts every byte and covers the Latin-1 range.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

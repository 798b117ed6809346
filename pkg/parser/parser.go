// Package parser extracts text content from uploaded documents.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SupportedExtensions lists the file extensions Parse accepts.
var SupportedExtensions = []string{".pdf", ".txt", ".md"}

// Supported reports whether the extension (with leading dot, any case) has
// a parser.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supported := range SupportedExtensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// Parse extracts the text content of the file at path, dispatching on its
// extension.
func Parse(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf":
		return parsePDF(path)
	case ".txt", ".md":
		return parseText(path)
	default:
		return "", fmt.Errorf("%w: %s (supported: %s)", ErrUnsupported, ext, strings.Join(SupportedExtensions, ", "))
	}
}

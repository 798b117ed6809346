package parser

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// parsePDF extracts text page by page, skipping pages that fail to decode
// or carry no text. Pages join with a blank line so page boundaries read as
// paragraph breaks downstream.
func parsePDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, text)
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("%w: no text found in pdf", ErrNoContent)
	}

	return strings.Join(pages, "\n\n"), nil
}

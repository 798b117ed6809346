// Package chunker splits cleaned document text into ordered, overlapping
// segments bounded by a target size, preferring semantic separators.
package chunker

import (
	"errors"
	"regexp"
	"strings"
)

// separators is the split preference order: paragraph break, line break,
// sentence terminators, clause terminators, single space, then per-character.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", "; ", ", ", " ", ""}

var (
	spaceRuns   = regexp.MustCompile(` +`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// ErrOverlap is returned by New when the overlap leaves no room for new
// content in each chunk.
var ErrOverlap = errors.New("chunk overlap must be smaller than chunk size")

// Chunk is a contiguous span of a document's cleaned text.
type Chunk struct {
	// Content is the chunk text, non-empty after trimming.
	Content string

	// Index is the zero-based sequence number within the document.
	Index int

	// StartChar and EndChar are best-effort offsets into the cleaned text.
	StartChar int
	EndChar   int
}

// Chunker produces overlapping chunks of at most size bytes each, seeding
// every chunk after the first with the tail of its predecessor.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. It fails if overlap is negative or does not leave
// room for new content (overlap >= size).
func New(size, overlap int) (*Chunker, error) {
	if overlap < 0 || overlap >= size {
		return nil, ErrOverlap
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into ordered overlapping chunks. Empty or whitespace-only
// input yields an empty result, never an error.
func (c *Chunker) Chunk(text string) []Chunk {
	cleaned := cleanText(text)
	if cleaned == "" {
		return nil
	}

	fragments := c.split(cleaned, separators)
	contents := c.merge(fragments)

	chunks := make([]Chunk, 0, len(contents))
	cursor := 0
	for i, content := range contents {
		// Re-anchor by locating the chunk's leading characters from a
		// monotonically advancing cursor. Overlap duplication can defeat
		// the search; fall back to the cursor.
		probe := content
		if len(probe) > 50 {
			probe = probe[:50]
		}
		start := cursor
		if idx := strings.Index(cleaned[cursor:], probe); idx >= 0 {
			start = cursor + idx
		}
		end := start + len(content)

		chunks = append(chunks, Chunk{
			Content:   content,
			Index:     i,
			StartChar: start,
			EndChar:   end,
		})

		// Advance past the non-overlapping region, always moving forward
		// even when the overlap math would stall.
		cursor = max(end-c.overlap, cursor+1)
	}

	return chunks
}

// cleanText collapses space runs to one, collapses 3+ newlines to exactly two
// (preserving paragraph breaks), and trims the ends.
func cleanText(text string) string {
	text = spaceRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// split recursively divides text on the separator preference list, descending
// to a finer separator only for fragments still longer than the target size.
// Leaves are trimmed; empty fragments are dropped.
func (c *Chunker) split(text string, seps []string) []string {
	if len(seps) == 0 || seps[0] == "" {
		runes := []rune(text)
		out := make([]string, 0, len(runes))
		for _, r := range runes {
			out = append(out, string(r))
		}
		return out
	}

	var out []string
	for _, part := range strings.Split(text, seps[0]) {
		trimmed := strings.TrimSpace(part)
		switch {
		case len(part) <= c.size && trimmed != "":
			out = append(out, trimmed)
		case part != "":
			out = append(out, c.split(part, seps[1:])...)
		}
	}
	return out
}

// merge greedily joins fragments into chunks, accumulating while the running
// length (fragment lengths plus one joiner space per append) stays within the
// target size. A closed chunk seeds its successor with an overlap tail.
func (c *Chunker) merge(fragments []string) []string {
	var chunks []string
	var current []string
	length := 0

	for _, frag := range fragments {
		if length+len(frag)+1 > c.size && len(current) > 0 {
			chunk := strings.Join(current, " ")
			chunks = append(chunks, chunk)

			tail := c.overlapTail(chunk)
			if tail != "" {
				current = []string{tail, frag}
				length = len(tail) + len(frag) + 1
			} else {
				current = []string{frag}
				length = len(frag)
			}
			continue
		}
		current = append(current, frag)
		length += len(frag) + 1
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// overlapTail returns the final overlap characters of chunk, advanced to the
// first space boundary so the tail never starts mid-word. When no space falls
// inside the window the raw tail is used verbatim.
func (c *Chunker) overlapTail(chunk string) string {
	if c.overlap <= 0 {
		return ""
	}
	if len(chunk) <= c.overlap {
		return chunk
	}

	window := chunk[len(chunk)-c.overlap:]
	if idx := strings.Index(window, " "); idx >= 0 {
		return window[idx+1:]
	}
	return window
}

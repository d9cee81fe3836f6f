// Package chunker splits documents into overlapping fixed-size character windows.
package chunker

import (
	"fmt"
	"strings"

	"github.com/hyperjump/pdfqa/internal/fileid"
	"github.com/hyperjump/pdfqa/internal/models"
)

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Chunker splits text into windows of size characters that advance by size-overlap.
// Characters are runes, so multi-byte text is never cut inside a code point.
type Chunker struct {
	size    int
	overlap int
}

// New returns a chunker. size must be positive and overlap in [0, size).
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in characters.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of characters shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks every document in order. Blank documents produce no chunks.
func (c *Chunker) Split(docs []models.Document) []models.Chunk {
	var out []models.Chunk
	for _, d := range docs {
		out = append(out, c.SplitDocument(d)...)
	}
	return out
}

// SplitDocument chunks one document. A document no longer than the window yields
// exactly one chunk; the final window ends at the last character.
func (c *Chunker) SplitDocument(doc models.Document) []models.Chunk {
	if IsBlank(doc.Text) {
		return nil
	}
	runes := []rune(doc.Text)
	step := c.size - c.overlap
	var chunks []models.Chunk
	for start := 0; ; start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		meta := doc.Metadata
		meta.Position = len(chunks)
		text := string(runes[start:end])
		chunks = append(chunks, models.Chunk{
			ID:       fileid.ChunkID(meta, text),
			Text:     text,
			Metadata: meta,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// IsBlank reports whether s has no non-whitespace characters.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

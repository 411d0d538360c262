package storage

import (
	"fmt"
	"strings"

	"github.com/hyperjump/reposync/internal/models"
)

// Chunker splits text into overlapping character windows. Window boundaries are
// moved back to the nearest line break when one falls in the second half of a window.
type Chunker struct {
	maxChars     int
	overlapChars int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = 1
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = 0
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}
}

// Chunk splits text into DocumentChunks. Chunk IDs are "<docID>_<index>".
func (c *Chunker) Chunk(docID, text string) []*models.DocumentChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []*models.DocumentChunk
	for start := 0; start < len(runes); {
		end := start + c.maxChars
		if end >= len(runes) {
			end = len(runes)
		} else if nl := lastNewline(runes[start:end]); nl > c.maxChars/2 {
			end = start + nl + 1
		}
		chunks = append(chunks, &models.DocumentChunk{
			ID:         fmt.Sprintf("%s_%d", docID, len(chunks)),
			DocumentID: docID,
			Content:    string(runes[start:end]),
			ChunkIndex: len(chunks),
		})
		if end == len(runes) {
			break
		}
		next := end - c.overlapChars
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

func lastNewline(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] == '\n' {
			return i
		}
	}
	return -1
}

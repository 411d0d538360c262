// Package keyword provides the full-text chunk index that backs store-side ingestion.
package keyword

import (
	"context"

	"github.com/hyperjump/reposync/internal/models"
)

// Index is the write side of the chunk index that SQLite ingestion feeds.
type Index interface {
	// IndexChunks adds or replaces chunks. path is stored alongside each chunk.
	IndexChunks(ctx context.Context, path string, chunks []*models.DocumentChunk) error
	// DeleteDocument removes every chunk belonging to docID.
	DeleteDocument(ctx context.Context, docID string) error
}

var _ Index = (*BleveIndex)(nil)

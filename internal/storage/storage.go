// Package storage defines the document store port and its backends.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/reposync/internal/models"
)

// ErrNotFound is returned by Read when the document does not exist.
var ErrNotFound = errors.New("document not found")

// Status values reported by the bundled backends.
const (
	StatusQueued    = "queued"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store is a content-addressed document store with attribute lookup and
// asynchronous ingestion status.
type Store interface {
	// CreateOrReplace stores content under id and returns the store's document ID.
	CreateOrReplace(ctx context.Context, id string, content []byte, attrs models.Attributes) (string, error)
	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error
	// List returns every document with its ingestion status, ordered by ID.
	List(ctx context.Context) ([]models.DocumentSummary, error)
	// Read returns a document's content and attributes, or ErrNotFound.
	Read(ctx context.Context, id string) (*models.Document, error)
	// FindByAttributes returns the first document whose attributes contain all of attrs.
	FindByAttributes(ctx context.Context, attrs models.Attributes) (string, bool, error)

	Close() error
}

// PathIndex groups a listing by normalized "path" attribute.
func PathIndex(files []models.DocumentSummary, normalize func(string) string) map[string][]string {
	out := make(map[string][]string)
	for _, f := range files {
		p := normalize(f.Attributes.Path())
		if p == "" {
			continue
		}
		out[p] = append(out[p], f.ID)
	}
	return out
}

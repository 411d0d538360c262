// Package indexer keeps the document store in sync with the tracked files of a git
// repository: initial indexing, incremental updates between commits and full reloads.
package indexer

import (
	"context"

	"github.com/hyperjump/reposync/internal/models"
	"github.com/hyperjump/reposync/internal/projectstate"
)

// Repository reads commits, file lists, contents and diffs.
type Repository interface {
	HeadCommit(ctx context.Context) (string, error)
	ListTrackedFiles(ctx context.Context) ([]string, error)
	ReadWorkingTreeFile(ctx context.Context, path string) ([]byte, error)
	ListTrackedFilesAt(ctx context.Context, commit string) ([]string, error)
	ReadFileAt(ctx context.Context, commit, path string) ([]byte, error)
	Diff(ctx context.Context, from, to string) ([]models.ChangeEntry, error)
}

// MetadataStore persists the project metadata record.
type MetadataStore interface {
	GetOrCreate(ctx context.Context) (*projectstate.State, error)
	Read(ctx context.Context) (*projectstate.State, bool, error)
	Save(ctx context.Context, metadata *models.ProjectMetadata) (*projectstate.State, error)
}

// IngestionWaiter blocks until uploaded documents are processed by the store.
type IngestionWaiter interface {
	Wait(ctx context.Context, docs map[string]string, onTick func(models.IngestionStatus)) (models.IngestionStatus, error)
}

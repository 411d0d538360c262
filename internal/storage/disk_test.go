package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/reposync/internal/models"
)

func TestDiskUsageBytes(t *testing.T) {
	dir := t.TempDir()
	single := filepath.Join(dir, "store.db")
	if err := os.WriteFile(single, []byte("hello"), 0600); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(dir, "bleve", "seg")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "a"), []byte("abc"), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		paths []string
		want  int64
	}{
		{"file", []string{single}, 5},
		{"nested dir", []string{filepath.Join(dir, "bleve")}, 3},
		{"file and dir", []string{single, filepath.Join(dir, "bleve")}, 8},
		{"missing path", []string{filepath.Join(dir, "missing"), single}, 5},
		{"empty path", []string{"", single}, 5},
		{"none", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskUsageBytes(tt.paths...)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDiskUsageBytes_fileSystemStore(t *testing.T) {
	root := filepath.Join(t.TempDir(), "docs")
	store := NewFileSystemStore(root)
	if _, err := store.CreateOrReplace(context.Background(), "doc-1", []byte("0123456789"), models.Attributes{"path": "a.go"}); err != nil {
		t.Fatal(err)
	}
	got, err := DiskUsageBytes(root)
	if err != nil {
		t.Fatal(err)
	}
	// Content plus the attributes sidecar.
	if got <= 10 {
		t.Errorf("got %d, want more than the content size", got)
	}
}

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/reposync/internal/models"
)

func TestFileSystemStore_CreateReadList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	store := NewFileSystemStore(dir)
	ctx := context.Background()

	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 0 {
		t.Errorf("missing root should list nothing, got %d", len(list))
	}

	attrs := models.Attributes{"type": "code", "subtype": "other", "path": "main.go"}
	if _, err := store.CreateOrReplace(ctx, "repo_b", []byte("package main"), attrs); err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateOrReplace(ctx, "repo_a", []byte("x"), models.Attributes{"path": "x.md"}); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, "repo_b.attrs.json")); err != nil {
		t.Errorf("sidecar missing: %v", err)
	}

	doc, err := store.Read(ctx, "repo_b")
	if err != nil {
		t.Fatal(err)
	}
	if string(doc.Content) != "package main" || doc.Attributes["type"] != "code" {
		t.Errorf("got %+v", doc)
	}

	list, err = store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "repo_a" || list[1].ID != "repo_b" {
		t.Fatalf("list = %+v", list)
	}
	if list[1].SizeBytes != 12 || list[1].Status != StatusCompleted {
		t.Errorf("summary = %+v", list[1])
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileSystemStore_DeleteAndFind(t *testing.T) {
	store := NewFileSystemStore(t.TempDir())
	ctx := context.Background()

	_, _ = store.CreateOrReplace(ctx, "doc1", []byte("a"), models.Attributes{"path": "a.md", "type": "documentation"})
	_, _ = store.CreateOrReplace(ctx, "doc2", []byte("b"), models.Attributes{"path": "b.md", "type": "documentation"})

	id, ok, err := store.FindByAttributes(ctx, models.Attributes{"path": "b.md"})
	if err != nil || !ok || id != "doc2" {
		t.Errorf("FindByAttributes = %q, %v, %v", id, ok, err)
	}

	if err := store.Delete(ctx, "doc2"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.FindByAttributes(ctx, models.Attributes{"path": "b.md"}); ok {
		t.Error("deleted document still found")
	}
	if _, err := store.Read(ctx, "doc2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	// Deleting twice is fine.
	if err := store.Delete(ctx, "doc2"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestFileSystemStore_InvalidID(t *testing.T) {
	store := NewFileSystemStore(t.TempDir())
	ctx := context.Background()

	for _, id := range []string{"", "../escape", "a/b", "sp ace", ".."} {
		if _, err := store.CreateOrReplace(ctx, id, nil, nil); !errors.Is(err, ErrInvalidID) {
			t.Errorf("CreateOrReplace(%q) err = %v, want ErrInvalidID", id, err)
		}
	}
	if _, err := store.Read(ctx, "a/b"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Read err = %v", err)
	}
}

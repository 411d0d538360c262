package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/reposync/internal/models"
)

func chunksFor(docID string, texts ...string) []*models.DocumentChunk {
	out := make([]*models.DocumentChunk, len(texts))
	for i, text := range texts {
		out[i] = &models.DocumentChunk{
			ID:         docID + "_" + string(rune('a'+i)),
			DocumentID: docID,
			Content:    text,
			ChunkIndex: i,
		}
	}
	return out
}

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()

	ctx := context.Background()
	chunks := chunksFor("repo_abc", "package main calls StartInitialIndex", "unrelated words here")
	if err := idx.IndexChunks(ctx, "cmd/main.go", chunks); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}

	// Standard analyzer lowercases, so the query matches regardless of case.
	results, err := idx.Search(ctx, "startinitialindex", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ChunkID != "repo_abc_a" {
		t.Errorf("ChunkID = %q, want repo_abc_a", results[0].ChunkID)
	}
	if results[0].DocumentID != "repo_abc" {
		t.Errorf("DocumentID = %q, want repo_abc", results[0].DocumentID)
	}
	if results[0].Path != "cmd/main.go" {
		t.Errorf("Path = %q, want cmd/main.go", results[0].Path)
	}
}

func TestBleveIndex_DeleteDocument(t *testing.T) {
	idx, err := NewBleveIndex(filepath.Join(t.TempDir(), "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()
	ctx := context.Background()

	if err := idx.IndexChunks(ctx, "a.go", chunksFor("doc1", "alpha", "beta", "gamma")); err != nil {
		t.Fatal(err)
	}
	if err := idx.IndexChunks(ctx, "b.go", chunksFor("doc2", "alpha")); err != nil {
		t.Fatal(err)
	}
	if n, _ := idx.DocCount(); n != 4 {
		t.Fatalf("DocCount = %d, want 4", n)
	}

	if err := idx.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if n, _ := idx.DocCount(); n != 1 {
		t.Errorf("DocCount after delete = %d, want 1", n)
	}
	results, err := idx.Search(ctx, "alpha", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].DocumentID != "doc2" {
		t.Errorf("expected only doc2 to remain, got %+v", results)
	}

	// Deleting an unknown document is a no-op.
	if err := idx.DeleteDocument(ctx, "missing"); err != nil {
		t.Errorf("DeleteDocument(missing): %v", err)
	}
}

func TestBleveIndex_ReopenKeepsChunks(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "bleve")

	idx1, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	ctx := context.Background()
	if err := idx1.IndexChunks(ctx, "x.md", chunksFor("doc1", "uniqueword")); err != nil {
		t.Fatalf("IndexChunks: %v", err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx2, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex (reopen): %v", err)
	}
	defer func() {
		_ = idx2.Close()
	}()
	results, err := idx2.Search(ctx, "uniqueword", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("expected chunk to survive reopen, got %d results", len(results))
	}
}

func TestNewBleveIndex_createsDir(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "nested", "bleve")
	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()
	if _, err := os.Stat(indexPath); err != nil {
		t.Errorf("index dir not created: %v", err)
	}
}

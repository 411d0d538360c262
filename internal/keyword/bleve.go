package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hyperjump/reposync/internal/models"
)

// deleteBatchSize bounds how many chunk IDs are fetched per delete round.
const deleteBatchSize = 500

type chunkDoc struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Content    string `json:"content"`
	ChunkIndex int    `json:"chunk_index"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase + tokenize, no stemming, so identifiers match as written.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", text)

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keywordanalyzer.Name
	docMapping.AddFieldMappingsAt("document_id", exact)
	docMapping.AddFieldMappingsAt("path", exact)

	docMapping.AddFieldMappingsAt("chunk_index", bleve.NewNumericFieldMapping())

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// IndexChunks indexes chunks in a single batch.
func (b *BleveIndex) IndexChunks(ctx context.Context, path string, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := chunkDoc{
			DocumentID: c.DocumentID,
			Path:       path,
			Content:    c.Content,
			ChunkIndex: c.ChunkIndex,
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return fmt.Errorf("failed to add chunk %s to batch: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index chunks: %w", err)
	}
	return nil
}

// DeleteDocument removes all chunks of docID.
func (b *BleveIndex) DeleteDocument(ctx context.Context, docID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		q := bleve.NewTermQuery(docID)
		q.SetField("document_id")
		req := bleve.NewSearchRequest(q)
		req.Size = deleteBatchSize
		res, err := b.index.Search(req)
		if err != nil {
			return fmt.Errorf("failed to find chunks of %s: %w", docID, err)
		}
		if len(res.Hits) == 0 {
			return nil
		}
		batch := b.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("failed to delete chunks of %s: %w", docID, err)
		}
	}
}

// Result is a single keyword search hit.
type Result struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Path       string  `json:"path"`
	Score      float64 `json:"score"`
}

// Search runs a match query over chunk content and returns up to limit hits. It is
// not part of Index: reposync serves no queries, and Search is only used to check
// what ingestion indexed.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("content")
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"document_id", "path"}
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(res.Hits))
	for i, hit := range res.Hits {
		r := &Result{ChunkID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["document_id"].(string); ok {
			r.DocumentID = v
		}
		if v, ok := hit.Fields["path"].(string); ok {
			r.Path = v
		}
		out[i] = r
	}
	return out, nil
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/extract"
	"github.com/hyperjump/reposync/internal/keyword"
	"github.com/hyperjump/reposync/internal/models"
)

const (
	defaultIngestInterval = 500 * time.Millisecond
	ingestBatchSize       = 32
)

// SQLiteStore implements Store using SQLite. Documents are written with status
// "queued"; a background worker chunks them, feeds the keyword index and marks
// them "completed" (or "failed").
type SQLiteStore struct {
	db       *sql.DB
	keywords keyword.Index
	chunker  *Chunker
	logger   *zap.Logger
	interval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithKeywordIndex indexes document chunks into idx during ingestion.
// The store does not close idx.
func WithKeywordIndex(idx keyword.Index) SQLiteOption {
	return func(s *SQLiteStore) { s.keywords = idx }
}

// WithIngestInterval sets how often the worker looks for queued documents.
// A non-positive interval disables the worker; call ProcessPending instead.
func WithIngestInterval(d time.Duration) SQLiteOption {
	return func(s *SQLiteStore) { s.interval = d }
}

// WithChunking sets the chunk size and overlap in characters.
func WithChunking(maxChars, overlapChars int) SQLiteOption {
	return func(s *SQLiteStore) { s.chunker = NewChunker(maxChars, overlapChars) }
}

// WithSQLiteLogger sets the logger.
func WithSQLiteLogger(logger *zap.Logger) SQLiteOption {
	return func(s *SQLiteStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSQLiteStore opens or creates a SQLite database at dbPath, initializes the schema
// and starts the ingestion worker. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{
		db:       db,
		chunker:  NewChunker(12000, 800),
		logger:   zap.NewNop(),
		interval: defaultIngestInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.interval > 0 {
		s.wg.Add(1)
		go s.run(ctx)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		content BLOB NOT NULL,
		attributes TEXT,
		status TEXT NOT NULL,
		error TEXT,
		revision INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

	CREATE TABLE IF NOT EXISTS document_chunks (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON document_chunks(document_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_document_chunk ON document_chunks(document_id, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateOrReplace upserts the document and queues it for ingestion.
func (s *SQLiteStore) CreateOrReplace(ctx context.Context, id string, content []byte, attrs models.Attributes) (string, error) {
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attributes: %w", err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (id, content, attributes, status, error, revision, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', 0, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   content = excluded.content,
		   attributes = excluded.attributes,
		   status = excluded.status,
		   error = '',
		   revision = documents.revision + 1,
		   updated_at = excluded.updated_at`,
		id, content, string(attrsJSON), StatusQueued, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert document %s: %w", id, err)
	}
	return id, nil
}

// Delete removes a document, its chunks and its keyword index entries.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if s.keywords != nil {
		if err := s.keywords.DeleteDocument(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// List returns all documents ordered by ID.
func (s *SQLiteStore) List(ctx context.Context) ([]models.DocumentSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, length(content), attributes, status FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.DocumentSummary, 0)
	for rows.Next() {
		var sum models.DocumentSummary
		var attrsJSON sql.NullString
		if err := rows.Scan(&sum.ID, &sum.SizeBytes, &attrsJSON, &sum.Status); err != nil {
			return nil, err
		}
		if attrsJSON.Valid && attrsJSON.String != "" {
			_ = json.Unmarshal([]byte(attrsJSON.String), &sum.Attributes)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Read returns a document by ID, or ErrNotFound.
func (s *SQLiteStore) Read(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	var attrsJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content, attributes FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Content, &attrsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if attrsJSON.Valid && attrsJSON.String != "" {
		if err := json.Unmarshal([]byte(attrsJSON.String), &doc.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}
	return &doc, nil
}

// FindByAttributes returns the lowest document ID whose attributes contain attrs.
func (s *SQLiteStore) FindByAttributes(ctx context.Context, attrs models.Attributes) (string, bool, error) {
	files, err := s.List(ctx)
	if err != nil {
		return "", false, err
	}
	for _, f := range files {
		if f.Attributes.Matches(attrs) {
			return f.ID, true, nil
		}
	}
	return "", false, nil
}

// CountChunks returns the total number of stored chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&count)
	return count, err
}

// GetChunksByDocumentID returns all chunks for a document ordered by chunk_index.
func (s *SQLiteStore) GetChunksByDocumentID(ctx context.Context, docID string) ([]*models.DocumentChunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, content, chunk_index
		 FROM document_chunks WHERE document_id = ? ORDER BY chunk_index`,
		docID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.DocumentChunk
	for rows.Next() {
		var chunk models.DocumentChunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.ChunkIndex); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) run(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ProcessPending(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("ingestion pass failed", zap.Error(err))
			}
		}
	}
}

type queuedDoc struct {
	id       string
	content  []byte
	path     string
	revision int64
}

// ProcessPending ingests up to one batch of queued documents and returns how many
// were handled. The background worker calls it on every tick.
func (s *SQLiteStore) ProcessPending(ctx context.Context) (int, error) {
	queued, err := s.queued(ctx)
	if err != nil {
		return 0, err
	}
	for _, q := range queued {
		status, msg := StatusCompleted, ""
		if err := s.ingest(ctx, q); err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			status, msg = StatusFailed, err.Error()
			s.logger.Warn("document ingestion failed", zap.String("id", q.id), zap.Error(err))
		} else {
			s.logger.Debug("document ingested", zap.String("id", q.id), zap.String("path", q.path))
		}
		// A concurrent replace bumps the revision and leaves the new content queued.
		if _, err := s.db.ExecContext(ctx,
			`UPDATE documents SET status = ?, error = ? WHERE id = ? AND revision = ?`,
			status, msg, q.id, q.revision,
		); err != nil {
			return 0, fmt.Errorf("failed to update status of %s: %w", q.id, err)
		}
	}
	return len(queued), nil
}

func (s *SQLiteStore) queued(ctx context.Context) ([]queuedDoc, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, attributes, revision FROM documents
		 WHERE status = ? ORDER BY updated_at LIMIT ?`,
		StatusQueued, ingestBatchSize,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []queuedDoc
	for rows.Next() {
		var q queuedDoc
		var attrsJSON sql.NullString
		if err := rows.Scan(&q.id, &q.content, &attrsJSON, &q.revision); err != nil {
			return nil, err
		}
		var attrs models.Attributes
		if attrsJSON.Valid && attrsJSON.String != "" {
			_ = json.Unmarshal([]byte(attrsJSON.String), &attrs)
		}
		q.path = attrs.Path()
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ingest(ctx context.Context, q queuedDoc) error {
	text, err := extract.Text(q.path, q.content)
	if err != nil {
		return err
	}
	chunks := s.chunker.Chunk(q.id, text)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id = ?`, q.id); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO document_chunks (id, document_id, content, chunk_index, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content, chunk.ChunkIndex, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if s.keywords == nil {
		return nil
	}
	if err := s.keywords.DeleteDocument(ctx, q.id); err != nil {
		return err
	}
	return s.keywords.IndexChunks(ctx, q.path, chunks)
}

// Close stops the ingestion worker and closes the database connection.
func (s *SQLiteStore) Close() error {
	s.cancel()
	s.wg.Wait()
	return s.db.Close()
}

package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/config"
	"github.com/hyperjump/reposync/internal/gitrepo"
	"github.com/hyperjump/reposync/internal/indexer"
	"github.com/hyperjump/reposync/internal/ingestion"
	"github.com/hyperjump/reposync/internal/keyword"
	"github.com/hyperjump/reposync/internal/lock"
	"github.com/hyperjump/reposync/internal/projectstate"
	"github.com/hyperjump/reposync/internal/storage"
)

// components is the wired engine and its collaborators for one process.
type components struct {
	cfg      *config.Config
	repo     *gitrepo.Repo
	store    storage.Store
	keywords *keyword.BleveIndex
	metadata *projectstate.Coordinator
	engine   *indexer.Engine
	lock     *lock.DataDirLock
}

// newComponents takes the data directory lock, opens the store and builds the engine.
func newComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	l := lock.New(cfg.LockPath())
	if err := l.TryLock(); err != nil {
		return nil, err
	}
	c := &components{cfg: cfg, lock: l}

	store, keywords, err := openStore(ctx, cfg, logger, true)
	if err != nil {
		_ = l.Unlock()
		return nil, err
	}
	c.store = store
	c.keywords = keywords

	c.repo = gitrepo.New(cfg.Project.RepoPath)
	c.metadata = projectstate.NewCoordinator(store, cfg.ProjectInfo(), projectstate.WithLogger(logger))
	tracker := ingestion.NewTracker(store,
		ingestion.WithPollInterval(cfg.Indexing.PollInterval.Std()),
		ingestion.WithTimeout(cfg.Indexing.IngestionTimeout.Std()),
		ingestion.WithLogger(logger),
	)
	c.engine = indexer.NewEngine(c.repo, store, c.metadata,
		indexer.WithLogger(logger),
		indexer.WithStepDelay(cfg.Indexing.ProgressStepDelay.Std()),
		indexer.WithIngestionWaiter(tracker),
	)
	logger.Info("components ready",
		zap.String("repo", cfg.Project.RepoPath),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("store_location", cfg.StoreLocation()),
	)
	return c, nil
}

// Close stops the engine, closes the store and releases the lock.
func (c *components) Close() {
	if c.engine != nil {
		_ = c.engine.Close()
	}
	if c.store != nil {
		_ = c.store.Close()
	}
	if c.keywords != nil {
		_ = c.keywords.Close()
	}
	if c.lock != nil {
		_ = c.lock.Unlock()
	}
}

// openStore opens the configured backend. ingest controls whether the SQLite
// ingestion worker runs; read-only callers turn it off.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger, ingest bool) (storage.Store, *keyword.BleveIndex, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil, nil
	case config.BackendFilesystem:
		return storage.NewFileSystemStore(cfg.Store.FilesystemPath), nil, nil
	case config.BackendSQLite:
		sqliteOpts := []storage.SQLiteOption{
			storage.WithChunking(cfg.Indexing.MaxChunkChars, cfg.Indexing.ChunkOverlapChars),
			storage.WithSQLiteLogger(logger),
			storage.WithIngestInterval(0),
		}
		// The keyword index is single-writer; only ingesting processes open it.
		var keywords *keyword.BleveIndex
		if ingest {
			var err error
			keywords, err = keyword.NewBleveIndex(cfg.Store.KeywordIndexPath)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to initialize keyword index: %w", err)
			}
			sqliteOpts = append(sqliteOpts,
				storage.WithKeywordIndex(keywords),
				storage.WithIngestInterval(cfg.Store.IngestInterval.Std()),
			)
		}
		store, err := storage.NewSQLiteStore(cfg.Store.DatabasePath, sqliteOpts...)
		if err != nil {
			if keywords != nil {
				_ = keywords.Close()
			}
			return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, keywords, nil
	case config.BackendS3:
		s3 := cfg.Store.S3
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:  s3.Endpoint,
			Bucket:    s3.Bucket,
			Prefix:    s3.Prefix,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			UseSSL:    s3.UseSSL,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		return store, nil, nil
	}
	return nil, nil, errors.New("unknown store backend " + cfg.Store.Backend)
}

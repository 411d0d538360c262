package config

import (
	"path/filepath"
	"time"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "/usr/local/var/reposync/data"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Project.RepoPath == "" {
		cfg.Project.RepoPath = "."
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendFilesystem
	}
	if cfg.Store.FilesystemPath == "" {
		cfg.Store.FilesystemPath = filepath.Join(cfg.DataDir, "store")
	}
	if cfg.Store.DatabasePath == "" {
		cfg.Store.DatabasePath = filepath.Join(cfg.DataDir, "db", "documents.db")
	}
	if cfg.Store.KeywordIndexPath == "" {
		cfg.Store.KeywordIndexPath = filepath.Join(cfg.DataDir, "indices", "bleve")
	}
	if cfg.Store.IngestInterval == 0 {
		cfg.Store.IngestInterval = Duration(500 * time.Millisecond)
	}
	if cfg.Store.S3.Prefix == "" {
		cfg.Store.S3.Prefix = "reposync"
	}
	if cfg.Indexing.PollInterval == 0 {
		cfg.Indexing.PollInterval = Duration(time.Second)
	}
	if cfg.Indexing.IngestionTimeout == 0 {
		cfg.Indexing.IngestionTimeout = Duration(60 * time.Second)
	}
	if cfg.Indexing.MaxChunkChars == 0 {
		cfg.Indexing.MaxChunkChars = 12000
	}
	if cfg.Indexing.ChunkOverlapChars == 0 {
		cfg.Indexing.ChunkOverlapChars = 800
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = Duration(2 * time.Second)
	}
}

// Package config provides configuration loading and structs for the reposync server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/reposync/internal/models"
)

// Store backends.
const (
	BackendFilesystem = "filesystem"
	BackendSQLite     = "sqlite"
	BackendS3         = "s3"
	BackendMemory     = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	DataDir  string         `yaml:"data_dir"`
	Server   ServerConfig   `yaml:"server"`
	Project  ProjectConfig  `yaml:"project"`
	Store    StoreConfig    `yaml:"store"`
	Indexing IndexingConfig `yaml:"indexing"`
	Watch    WatchConfig    `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ProjectConfig identifies the repository being indexed.
type ProjectConfig struct {
	Name       string `yaml:"name"`
	RepoPath   string `yaml:"repo_path"`
	GithubRepo string `yaml:"github_repo"`
}

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Backend          string   `yaml:"backend"`
	FilesystemPath   string   `yaml:"filesystem_path"`
	DatabasePath     string   `yaml:"database_path"`
	KeywordIndexPath string   `yaml:"keyword_index_path"`
	IngestInterval   Duration `yaml:"ingest_interval"`
	S3               S3Config `yaml:"s3"`
}

// S3Config holds S3-compatible object storage settings.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// IndexingConfig holds index job and ingestion settings.
type IndexingConfig struct {
	PollInterval      Duration `yaml:"poll_interval"`
	IngestionTimeout  Duration `yaml:"ingestion_timeout"`
	ProgressStepDelay Duration `yaml:"progress_step_delay"`
	MaxChunkChars     int      `yaml:"max_chunk_chars"`
	ChunkOverlapChars int      `yaml:"chunk_overlap_chars"`
}

// WatchConfig controls automatic updates when the repository HEAD moves.
type WatchConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Debounce Duration `yaml:"debounce"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if cfg.DataDir != "" {
		cfg.DataDir = expandPath(cfg.DataDir, configDir)
	}
	ApplyDefaults(&cfg)

	cfg.Project.RepoPath = expandPath(cfg.Project.RepoPath, configDir)
	cfg.Store.FilesystemPath = expandPath(cfg.Store.FilesystemPath, configDir)
	cfg.Store.DatabasePath = expandPath(cfg.Store.DatabasePath, configDir)
	cfg.Store.KeywordIndexPath = expandPath(cfg.Store.KeywordIndexPath, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFilesystem, BackendSQLite, BackendMemory:
	case BackendS3:
		if c.Store.S3.Endpoint == "" || c.Store.S3.Bucket == "" {
			return fmt.Errorf("store.s3.endpoint and store.s3.bucket are required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Indexing.ChunkOverlapChars >= c.Indexing.MaxChunkChars {
		return fmt.Errorf("indexing.chunk_overlap_chars must be smaller than indexing.max_chunk_chars")
	}
	return nil
}

// ProjectInfo returns the settings used to seed project metadata.
func (c *Config) ProjectInfo() *models.ProjectConfig {
	return &models.ProjectConfig{
		Name:          c.Project.Name,
		RepoPath:      c.Project.RepoPath,
		GithubRepo:    c.Project.GithubRepo,
		StoreBackend:  c.Store.Backend,
		StoreLocation: c.StoreLocation(),
	}
}

// StoreLocation describes where the configured backend keeps documents.
func (c *Config) StoreLocation() string {
	switch c.Store.Backend {
	case BackendFilesystem:
		return c.Store.FilesystemPath
	case BackendSQLite:
		return c.Store.DatabasePath
	case BackendS3:
		return strings.TrimSuffix(c.Store.S3.Endpoint, "/") + "/" + c.Store.S3.Bucket
	}
	return ""
}

// LocalStorePaths lists the files and directories a local backend keeps its data in.
// Remote and in-memory backends have none.
func (c *Config) LocalStorePaths() []string {
	switch c.Store.Backend {
	case BackendFilesystem:
		return []string{c.Store.FilesystemPath}
	case BackendSQLite:
		return []string{c.Store.DatabasePath, c.Store.KeywordIndexPath}
	}
	return nil
}

// LockPath is the lock file guarding the data directory against concurrent writers.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "reposync.lock")
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

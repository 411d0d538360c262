package models

import (
	"path/filepath"
	"strings"
)

// CurrentSchemaVersion is the metadata shape written by this version of reposync.
const CurrentSchemaVersion = 2

const (
	defaultMaxChunkChars     = 12000
	defaultChunkOverlapChars = 800
)

// ProjectConfig is the subset of the project configuration used to seed metadata.
type ProjectConfig struct {
	Name          string
	RepoPath      string
	GithubRepo    string
	StoreBackend  string
	StoreLocation string
}

// ProjectMetadata is the single persisted record describing the indexed project.
type ProjectMetadata struct {
	SchemaVersion       int                  `json:"schemaVersion"`
	Project             *ProjectInfo         `json:"project,omitempty"`
	Store               *StoreSettings       `json:"store,omitempty"`
	Indexing            *IndexingSettings    `json:"indexing,omitempty"`
	ClassificationRules []ClassificationRule `json:"classificationRules,omitempty"`
	PathToDocumentIDs   map[string][]string  `json:"pathToDocumentIds,omitempty"`
}

// ProjectMetadataV1 is the flat record written before schema version 2.
type ProjectMetadataV1 struct {
	SchemaVersion     int                 `json:"schemaVersion"`
	LastIndexedCommit string              `json:"lastIndexedCommit,omitempty"`
	PathToFileIDs     map[string][]string `json:"pathToFileIds,omitempty"`
}

// ProjectInfo identifies the project.
type ProjectInfo struct {
	Name     string `json:"name,omitempty"`
	RepoRoot string `json:"repoRoot,omitempty"`
}

// StoreSettings records which store backend holds the documents.
type StoreSettings struct {
	Backend  string `json:"backend,omitempty"`
	Location string `json:"location,omitempty"`
}

// IndexingSettings holds the last indexed commit and chunking parameters.
type IndexingSettings struct {
	LastIndexedCommit string `json:"lastIndexedCommit,omitempty"`
	MaxChunkChars     int    `json:"maxChunkChars"`
	ChunkOverlapChars int    `json:"chunkOverlapChars"`
}

// ClassificationRule maps a path prefix to a document type and subtype.
type ClassificationRule struct {
	PathPrefix string `json:"pathPrefix"`
	Type       string `json:"type"`
	Subtype    string `json:"subtype"`
}

// DefaultClassificationRules returns the rules used when metadata has none.
func DefaultClassificationRules() []ClassificationRule {
	return []ClassificationRule{
		{PathPrefix: "spec/", Type: "documentation", Subtype: "spec"},
		{PathPrefix: "docs/", Type: "documentation", Subtype: "docs"},
		{PathPrefix: "README.md", Type: "documentation", Subtype: "readme"},
		{PathPrefix: "cmd/", Type: "code", Subtype: "entrypoint"},
		{PathPrefix: "internal/", Type: "code", Subtype: "business_logic"},
		{PathPrefix: "pkg/", Type: "code", Subtype: "library"},
		{PathPrefix: "configs/", Type: "code", Subtype: "configuration"},
		{PathPrefix: "test/", Type: "code", Subtype: "test"},
	}
}

// InitialMetadata builds a fresh record. cfg may be nil.
func InitialMetadata(cfg *ProjectConfig) *ProjectMetadata {
	return &ProjectMetadata{
		SchemaVersion:       CurrentSchemaVersion,
		Project:             defaultProjectInfo(cfg),
		Store:               defaultStoreSettings(cfg),
		Indexing:            defaultIndexingSettings(""),
		ClassificationRules: DefaultClassificationRules(),
		PathToDocumentIDs:   map[string][]string{},
	}
}

// MetadataFromV1 migrates a version 1 record to the current shape. v1 and cfg may be nil.
func MetadataFromV1(v1 *ProjectMetadataV1, cfg *ProjectConfig) *ProjectMetadata {
	m := InitialMetadata(cfg)
	if v1 == nil {
		return m
	}
	m.Indexing = defaultIndexingSettings(trimOptional(v1.LastIndexedCommit))
	m.PathToDocumentIDs = copyPathMap(v1.PathToFileIDs)
	return m
}

// WithIndexingUpdate returns a copy with a new last indexed commit and path map.
// Chunk settings and rules are kept; missing ones are defaulted.
func (m *ProjectMetadata) WithIndexingUpdate(commit string, pathToDocumentIDs map[string][]string) *ProjectMetadata {
	indexing := defaultIndexingSettings(trimOptional(commit))
	if m.Indexing != nil {
		indexing.MaxChunkChars = m.Indexing.MaxChunkChars
		indexing.ChunkOverlapChars = m.Indexing.ChunkOverlapChars
	}
	return &ProjectMetadata{
		SchemaVersion:       CurrentSchemaVersion,
		Project:             m.Project,
		Store:               m.Store,
		Indexing:            indexing,
		ClassificationRules: m.ClassificationRulesOrDefault(),
		PathToDocumentIDs:   copyPathMap(pathToDocumentIDs),
	}
}

// LastIndexedCommit returns the trimmed last indexed commit, or "".
func (m *ProjectMetadata) LastIndexedCommit() string {
	if m == nil || m.Indexing == nil {
		return ""
	}
	return strings.TrimSpace(m.Indexing.LastIndexedCommit)
}

// PathToDocumentIDsOrEmpty never returns nil.
func (m *ProjectMetadata) PathToDocumentIDsOrEmpty() map[string][]string {
	if m == nil || m.PathToDocumentIDs == nil {
		return map[string][]string{}
	}
	return m.PathToDocumentIDs
}

// ClassificationRulesOrDefault returns the configured rules, or the defaults when empty.
func (m *ProjectMetadata) ClassificationRulesOrDefault() []ClassificationRule {
	if m == nil || len(m.ClassificationRules) == 0 {
		return DefaultClassificationRules()
	}
	return m.ClassificationRules
}

// ChunkSettings returns max chunk chars and overlap, defaulted when unset.
func (m *ProjectMetadata) ChunkSettings() (maxChars, overlap int) {
	maxChars, overlap = defaultMaxChunkChars, defaultChunkOverlapChars
	if m != nil && m.Indexing != nil {
		if m.Indexing.MaxChunkChars > 0 {
			maxChars = m.Indexing.MaxChunkChars
		}
		if m.Indexing.ChunkOverlapChars >= 0 {
			overlap = m.Indexing.ChunkOverlapChars
		}
	}
	return maxChars, overlap
}

// Normalize fills fields missing from records written by older builds of the current schema.
func (m *ProjectMetadata) Normalize() {
	m.SchemaVersion = CurrentSchemaVersion
	if m.Indexing == nil {
		m.Indexing = defaultIndexingSettings("")
	}
	if m.Indexing.MaxChunkChars <= 0 {
		m.Indexing.MaxChunkChars = defaultMaxChunkChars
	}
	if len(m.ClassificationRules) == 0 {
		m.ClassificationRules = DefaultClassificationRules()
	}
	if m.PathToDocumentIDs == nil {
		m.PathToDocumentIDs = map[string][]string{}
	}
}

func defaultProjectInfo(cfg *ProjectConfig) *ProjectInfo {
	if cfg == nil {
		return nil
	}
	repoRoot := trimOptional(cfg.RepoPath)
	name := trimOptional(cfg.Name)
	if name == "" && repoRoot != "" {
		base := filepath.Base(filepath.Clean(repoRoot))
		if base != "." && base != string(filepath.Separator) {
			name = base
		}
	}
	if name == "" {
		if repo := trimOptional(cfg.GithubRepo); repo != "" {
			repo = strings.TrimSuffix(repo, "/")
			if i := strings.LastIndex(repo, "/"); i >= 0 {
				repo = repo[i+1:]
			}
			name = repo
		}
	}
	if name == "" && repoRoot == "" {
		return nil
	}
	return &ProjectInfo{Name: name, RepoRoot: repoRoot}
}

func defaultStoreSettings(cfg *ProjectConfig) *StoreSettings {
	if cfg == nil {
		return nil
	}
	backend := trimOptional(cfg.StoreBackend)
	location := trimOptional(cfg.StoreLocation)
	if backend == "" && location == "" {
		return nil
	}
	return &StoreSettings{Backend: backend, Location: location}
}

func defaultIndexingSettings(lastIndexedCommit string) *IndexingSettings {
	return &IndexingSettings{
		LastIndexedCommit: lastIndexedCommit,
		MaxChunkChars:     defaultMaxChunkChars,
		ChunkOverlapChars: defaultChunkOverlapChars,
	}
}

func copyPathMap(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for path, ids := range in {
		out[path] = append([]string(nil), ids...)
	}
	return out
}

func trimOptional(s string) string {
	return strings.TrimSpace(s)
}

// Package projectstate persists the project metadata record inside the document store.
package projectstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/models"
	"github.com/hyperjump/reposync/internal/storage"
)

// MetadataDocumentID is the store document that holds the metadata record.
const MetadataDocumentID = "metadata.json"

// State is a metadata record together with the store document it was read from.
type State struct {
	DocumentID string                  `json:"document_id"`
	Metadata   *models.ProjectMetadata `json:"metadata"`
	Attributes models.Attributes       `json:"attributes"`
}

// Coordinator reads, migrates and writes the metadata record.
type Coordinator struct {
	store   storage.Store
	project *models.ProjectConfig
	logger  *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a coordinator. project seeds new and migrated records and may be nil.
func NewCoordinator(store storage.Store, project *models.ProjectConfig, opts ...Option) *Coordinator {
	c := &Coordinator{store: store, project: project, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func metadataAttributes() models.Attributes {
	return models.Attributes{
		models.AttrType:    "documentation",
		models.AttrSubtype: "metadata",
		models.AttrPath:    MetadataDocumentID,
	}
}

func legacyMetadataAttributes() models.Attributes {
	return models.Attributes{
		models.AttrType:    "documentation",
		models.AttrSubtype: "metadata",
	}
}

// GetOrCreate returns the stored record, creating an initial one when none exists.
func (c *Coordinator) GetOrCreate(ctx context.Context) (*State, error) {
	state, ok, err := c.Read(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return state, nil
	}
	c.logger.Info("creating initial project metadata")
	return c.Save(ctx, models.InitialMetadata(c.project))
}

// Read looks the record up by attributes, falling back to the legacy attribute set.
// A version 1 record is migrated and saved back before it is returned.
func (c *Coordinator) Read(ctx context.Context) (*State, bool, error) {
	id, ok, err := c.store.FindByAttributes(ctx, metadataAttributes())
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up metadata: %w", err)
	}
	if !ok {
		id, ok, err = c.store.FindByAttributes(ctx, legacyMetadataAttributes())
		if err != nil {
			return nil, false, fmt.Errorf("failed to look up legacy metadata: %w", err)
		}
	}
	if !ok {
		return nil, false, nil
	}

	doc, err := c.store.Read(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		c.logger.Warn("metadata document disappeared before it could be read", zap.String("id", id))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read metadata: %w", err)
	}

	metadata, migrated, err := c.decode(doc.Content)
	if err != nil {
		return nil, false, err
	}
	if migrated {
		c.logger.Info("migrated project metadata", zap.Int("schema_version", models.CurrentSchemaVersion))
		state, err := c.Save(ctx, metadata)
		if err != nil {
			return nil, false, err
		}
		return state, true, nil
	}
	return &State{DocumentID: doc.ID, Metadata: metadata, Attributes: doc.Attributes}, true, nil
}

// Save writes metadata with the current schema version.
func (c *Coordinator) Save(ctx context.Context, metadata *models.ProjectMetadata) (*State, error) {
	if metadata == nil {
		metadata = models.InitialMetadata(c.project)
	}
	metadata.SchemaVersion = models.CurrentSchemaVersion
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	attrs := metadataAttributes()
	id, err := c.store.CreateOrReplace(ctx, MetadataDocumentID, data, attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to write metadata: %w", err)
	}
	return &State{DocumentID: id, Metadata: metadata, Attributes: attrs}, nil
}

type versionProbe struct {
	SchemaVersion *int `json:"schemaVersion"`
}

func (c *Coordinator) decode(content []byte) (*models.ProjectMetadata, bool, error) {
	var probe versionProbe
	if err := json.Unmarshal(content, &probe); err != nil {
		return nil, false, fmt.Errorf("failed to parse metadata: %w", err)
	}
	version := 1
	if probe.SchemaVersion != nil {
		version = *probe.SchemaVersion
	}

	if version < models.CurrentSchemaVersion {
		var v1 models.ProjectMetadataV1
		if err := json.Unmarshal(content, &v1); err != nil {
			return nil, false, fmt.Errorf("failed to parse v1 metadata: %w", err)
		}
		return models.MetadataFromV1(&v1, c.project), true, nil
	}

	var metadata models.ProjectMetadata
	if err := json.Unmarshal(content, &metadata); err != nil {
		return nil, false, fmt.Errorf("failed to parse metadata: %w", err)
	}
	metadata.Normalize()
	return &metadata, false, nil
}

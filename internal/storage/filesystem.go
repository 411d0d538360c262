package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hyperjump/reposync/internal/models"
)

const attrsSuffix = ".attrs.json"

// ErrInvalidID is returned for document IDs that are not safe file names.
var ErrInvalidID = errors.New("invalid document id")

var validID = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// FileSystemStore keeps each document as "<id>" next to an "<id>.attrs.json" sidecar.
// Ingestion is synchronous, so every listed document reports "completed".
type FileSystemStore struct {
	root string
}

// NewFileSystemStore returns a store rooted at dir. The directory is created on first write.
func NewFileSystemStore(dir string) *FileSystemStore {
	return &FileSystemStore{root: dir}
}

// Root returns the store directory.
func (s *FileSystemStore) Root() string { return s.root }

// CreateOrReplace writes content and attributes through temp files renamed into place.
func (s *FileSystemStore) CreateOrReplace(_ context.Context, id string, content []byte, attrs models.Attributes) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return "", fmt.Errorf("failed to create store directory: %w", err)
	}
	if attrs == nil {
		attrs = models.Attributes{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal attributes: %w", err)
	}
	if err := s.writeAtomic(id, content); err != nil {
		return "", err
	}
	if err := s.writeAtomic(id+attrsSuffix, attrsJSON); err != nil {
		return "", err
	}
	return id, nil
}

func (s *FileSystemStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.root, strings.ReplaceAll(name, ".", "_")+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.root, name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}
	return nil
}

// Delete removes the document and its sidecar. Missing files are ignored.
func (s *FileSystemStore) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	for _, name := range []string{id, id + attrsSuffix} {
		if err := os.Remove(filepath.Join(s.root, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
	}
	return nil
}

// List returns documents that have both content and sidecar, ordered by ID.
func (s *FileSystemStore) List(_ context.Context) ([]models.DocumentSummary, error) {
	ids, err := s.ids()
	if err != nil {
		return nil, err
	}
	out := make([]models.DocumentSummary, 0, len(ids))
	for _, id := range ids {
		info, err := os.Stat(filepath.Join(s.root, id))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		attrs, err := s.readAttrs(id)
		if err != nil {
			return nil, err
		}
		out = append(out, models.DocumentSummary{
			ID:         id,
			SizeBytes:  info.Size(),
			Attributes: attrs,
			Status:     StatusCompleted,
		})
	}
	return out, nil
}

// Read returns the document, or ErrNotFound when content or sidecar is missing.
func (s *FileSystemStore) Read(_ context.Context, id string) (*models.Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(filepath.Join(s.root, id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", id, err)
	}
	attrs, err := s.readAttrs(id)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &models.Document{ID: id, Content: content, Attributes: attrs}, nil
}

// FindByAttributes returns the lowest ID whose sidecar contains attrs.
func (s *FileSystemStore) FindByAttributes(_ context.Context, attrs models.Attributes) (string, bool, error) {
	ids, err := s.ids()
	if err != nil {
		return "", false, err
	}
	for _, id := range ids {
		got, err := s.readAttrs(id)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", false, err
		}
		if got.Matches(attrs) {
			return id, true, nil
		}
	}
	return "", false, nil
}

// Close implements Store.
func (s *FileSystemStore) Close() error { return nil }

func (s *FileSystemStore) ids() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list store directory: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, attrsSuffix) {
			continue
		}
		id := strings.TrimSuffix(name, attrsSuffix)
		if validID.MatchString(id) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *FileSystemStore) readAttrs(id string) (models.Attributes, error) {
	data, err := os.ReadFile(filepath.Join(s.root, id+attrsSuffix))
	if err != nil {
		return nil, err
	}
	var attrs models.Attributes
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("failed to parse attributes of %s: %w", id, err)
	}
	return attrs, nil
}

func validateID(id string) error {
	if !validID.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/hyperjump/reposync/internal/models"
)

// MemoryStore is an in-process Store. Documents report status "completed" unless a
// StatusFunc is set, which lets tests simulate slow or failing ingestion.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*models.Document
	calls MemoryCalls

	// StatusFunc, when set, returns the ingestion status reported by List.
	StatusFunc func(doc *models.Document) string
}

// MemoryCalls counts mutating calls, for assertions in tests.
type MemoryCalls struct {
	Creates int
	Deletes int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*models.Document)}
}

// CreateOrReplace implements Store.
func (m *MemoryStore) CreateOrReplace(_ context.Context, id string, content []byte, attrs models.Attributes) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = &models.Document{
		ID:         id,
		Content:    append([]byte(nil), content...),
		Attributes: attrs.Clone(),
	}
	m.calls.Creates++
	return id, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	m.calls.Deletes++
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]models.DocumentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.DocumentSummary, 0, len(m.docs))
	for _, doc := range m.docs {
		status := StatusCompleted
		if m.StatusFunc != nil {
			status = m.StatusFunc(doc)
		}
		out = append(out, models.DocumentSummary{
			ID:         doc.ID,
			SizeBytes:  int64(len(doc.Content)),
			Attributes: doc.Attributes.Clone(),
			Status:     status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Read implements Store.
func (m *MemoryStore) Read(_ context.Context, id string) (*models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &models.Document{
		ID:         doc.ID,
		Content:    append([]byte(nil), doc.Content...),
		Attributes: doc.Attributes.Clone(),
	}, nil
}

// FindByAttributes implements Store. Ties are broken by lowest ID.
func (m *MemoryStore) FindByAttributes(ctx context.Context, attrs models.Attributes) (string, bool, error) {
	files, err := m.List(ctx)
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

// Calls returns the number of creates and deletes performed so far.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

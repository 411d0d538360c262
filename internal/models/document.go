// Package models defines core data structures for store documents, git changes,
// project metadata and index jobs.
package models

// Attribute keys set on every document uploaded to the store.
const (
	AttrType    = "type"
	AttrSubtype = "subtype"
	AttrPath    = "path"
)

// Attributes are the string key/value pairs attached to a store document.
type Attributes map[string]string

// Path returns the "path" attribute or "".
func (a Attributes) Path() string {
	if a == nil {
		return ""
	}
	return a[AttrPath]
}

// Matches reports whether every key in required has the same value in a.
// An empty required set matches anything.
func (a Attributes) Matches(required Attributes) bool {
	for k, v := range required {
		got, ok := a[k]
		if !ok || got != v {
			return false
		}
	}
	return true
}

// Clone returns a copy of a.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Document is a stored document with its raw content.
type Document struct {
	ID         string     `json:"id"`
	Content    []byte     `json:"-"`
	Attributes Attributes `json:"attributes"`
}

// DocumentSummary is one entry of a store listing.
type DocumentSummary struct {
	ID         string     `json:"id"`
	SizeBytes  int64      `json:"size_bytes"`
	Attributes Attributes `json:"attributes"`
	Status     string     `json:"status"`
}

// DocumentChunk is a slice of a document's text, used by stores that index content.
type DocumentChunk struct {
	ID         string `json:"id" db:"id"`
	DocumentID string `json:"document_id" db:"document_id"`
	Content    string `json:"content" db:"content"`
	ChunkIndex int    `json:"chunk_index" db:"chunk_index"`
}

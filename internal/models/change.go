package models

// ChangeKind is the kind of a git change entry.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "ADDED"
	ChangeModified ChangeKind = "MODIFIED"
	ChangeDeleted  ChangeKind = "DELETED"
	ChangeRenamed  ChangeKind = "RENAMED"
)

// ChangeEntry is one line of a name-status diff between two commits.
// PreviousPath is only set for renames (and copies).
type ChangeEntry struct {
	Kind         ChangeKind `json:"kind"`
	Path         string     `json:"path"`
	PreviousPath string     `json:"previous_path,omitempty"`
}

// DiffPlan is the set of paths to upload and delete for one sync run.
// Both slices are normalized, de-duplicated and keep first-seen order.
type DiffPlan struct {
	Upload []string `json:"upload"`
	Delete []string `json:"delete"`
}

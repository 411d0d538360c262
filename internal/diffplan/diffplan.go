// Package diffplan turns git change entries into the paths to upload and delete.
package diffplan

import (
	"strings"

	"github.com/hyperjump/reposync/internal/fileid"
	"github.com/hyperjump/reposync/internal/models"
)

// Build computes the DiffPlan for entries. A rename is a delete of the old path plus an
// upload of the new one, never an in-place move. Entries with an unknown kind or a blank
// path are skipped.
func Build(entries []models.ChangeEntry) models.DiffPlan {
	upload := newOrderedSet()
	del := newOrderedSet()
	for _, e := range entries {
		switch e.Kind {
		case models.ChangeAdded, models.ChangeModified:
			upload.add(e.Path)
		case models.ChangeDeleted:
			del.add(e.Path)
		case models.ChangeRenamed:
			del.add(e.PreviousPath)
			upload.add(e.Path)
		}
	}
	return models.DiffPlan{Upload: upload.items, Delete: del.items}
}

// RemovedPaths returns the paths of previous that are not keys of current, in the order of
// previous. Full reloads use it to find paths that disappeared.
func RemovedPaths(previous []string, current map[string][]string) []string {
	removed := newOrderedSet()
	for _, p := range previous {
		if _, ok := current[fileid.Normalize(p)]; ok {
			continue
		}
		removed.add(p)
	}
	return removed.items
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(path string) {
	normalized := fileid.Normalize(path)
	if strings.TrimSpace(normalized) == "" {
		return
	}
	if _, ok := s.seen[normalized]; ok {
		return
	}
	s.seen[normalized] = struct{}{}
	s.items = append(s.items, normalized)
}

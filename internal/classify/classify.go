// Package classify decides whether a tracked file is indexed and with which attributes.
package classify

import (
	"path"
	"strings"

	"github.com/hyperjump/reposync/internal/fileid"
	"github.com/hyperjump/reposync/internal/models"
)

// Fallback attributes for files that match no rule but have a known extension.
const (
	FallbackType    = "code"
	FallbackSubtype = "other"
)

var knownExtensions = map[string]struct{}{
	"go": {}, "mod": {}, "java": {}, "kt": {}, "kts": {}, "scala": {}, "py": {}, "rb": {}, "rs": {},
	"c": {}, "h": {}, "cc": {}, "cpp": {}, "hpp": {}, "cs": {}, "swift": {}, "php": {},
	"js": {}, "mjs": {}, "ts": {}, "tsx": {}, "jsx": {}, "vue": {}, "css": {}, "scss": {}, "html": {},
	"xml": {}, "yml": {}, "yaml": {}, "toml": {}, "json": {}, "properties": {}, "proto": {}, "graphql": {},
	"sql": {}, "sh": {}, "bash": {}, "ps1": {}, "bat": {}, "md": {}, "txt": {}, "rst": {},
}

// Classifier applies prefix rules, then the extension allow-list.
// It is pure: the same rules and path always give the same result.
type Classifier struct {
	rules []models.ClassificationRule
}

// New returns a classifier over rules. An empty rule list means the default rules.
func New(rules []models.ClassificationRule) *Classifier {
	if len(rules) == 0 {
		rules = models.DefaultClassificationRules()
	}
	return &Classifier{rules: append([]models.ClassificationRule(nil), rules...)}
}

// Classify returns the attributes for repoRelativePath, or false when the file must be skipped.
func (c *Classifier) Classify(repoRelativePath string) (models.Attributes, bool) {
	if strings.TrimSpace(repoRelativePath) == "" {
		return nil, false
	}
	normalized := fileid.Normalize(repoRelativePath)
	for _, rule := range c.rules {
		prefix := fileid.Normalize(rule.PathPrefix)
		if strings.TrimSpace(prefix) == "" {
			continue
		}
		if strings.HasPrefix(normalized, prefix) {
			return attributes(rule.Type, rule.Subtype, normalized), true
		}
	}
	if IsKnownExtension(normalized) {
		return attributes(FallbackType, FallbackSubtype, normalized), true
	}
	return nil, false
}

// IsKnownExtension reports whether the file extension is in the allow-list (case-insensitive).
func IsKnownExtension(p string) bool {
	ext := path.Ext(p)
	if len(ext) < 2 {
		return false
	}
	_, ok := knownExtensions[strings.ToLower(ext[1:])]
	return ok
}

func attributes(typ, subtype, p string) models.Attributes {
	return models.Attributes{
		models.AttrType:    typ,
		models.AttrSubtype: subtype,
		models.AttrPath:    p,
	}
}

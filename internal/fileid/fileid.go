// Package fileid normalizes repo-relative paths and derives stable store document IDs from them.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const prefix = "repo_"

// Normalize converts backslashes to forward slashes and strips every leading "./".
// Normalize(Normalize(p)) == Normalize(p) for every p.
func Normalize(path string) string {
	normalized := strings.ReplaceAll(path, "\\", "/")
	for strings.HasPrefix(normalized, "./") {
		normalized = normalized[2:]
	}
	return normalized
}

// DocumentID returns a stable document ID for a repo-relative path.
// The ID depends on the normalized path only, never on content, so re-uploading
// a path overwrites the same logical slot in the store.
func DocumentID(repoRelativePath string) string {
	hash := sha256.Sum256([]byte(Normalize(repoRelativePath)))
	return prefix + hex.EncodeToString(hash[:])
}

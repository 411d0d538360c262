package utils

// Truncate returns s truncated to maxLen runes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// ShortCommit abbreviates a full commit hash for display.
func ShortCommit(commit string) string {
	const n = 12
	if len(commit) <= n {
		return commit
	}
	return commit[:n]
}

// Package cli provides output formatting, job polling and an HTTP client for the reposync CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hyperjump/reposync/internal/models"
	"github.com/hyperjump/reposync/pkg/utils"
)

// maxNoteRunes caps the ingestion error shown in text output; JSON keeps it whole.
const maxNoteRunes = 200

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteJobState writes an index job snapshot to w in the given format.
func WriteJobState(w io.Writer, state *models.IndexJobState, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, state)
	}
	writeJobStateText(w, state)
	return nil
}

func writeJobStateText(w io.Writer, s *models.IndexJobState) {
	if s.JobID != "" {
		fmt.Fprintf(w, "job:         %s (%s)\n", s.JobID, s.Kind)
	}
	fmt.Fprintf(w, "status:      %s\n", s.Status)
	fmt.Fprintf(w, "progress:    %s\n", s.Progress)
	if s.TargetCommit != "" {
		fmt.Fprintf(w, "commit:      %s\n", utils.ShortCommit(s.TargetCommit))
	}
	if s.StartedAt != nil {
		fmt.Fprintf(w, "started:     %s\n", s.StartedAt.Format(time.RFC3339))
	}
	if s.FinishedAt != nil {
		fmt.Fprintf(w, "finished:    %s\n", s.FinishedAt.Format(time.RFC3339))
		if s.StartedAt != nil {
			fmt.Fprintf(w, "duration:    %s\n", s.FinishedAt.Sub(*s.StartedAt).Round(time.Millisecond))
		}
	}
	if s.Status != models.JobIdle {
		fmt.Fprintf(w, "files:       %d uploaded, %d skipped, %d deleted\n", s.Uploaded, s.Skipped, s.Deleted)
		in := s.Ingestion
		fmt.Fprintf(w, "ingestion:   %d ready, %d processing, %d failed of %d\n", in.Ready, in.Processing, in.Failed, in.Uploaded)
		for _, f := range in.Failures {
			fmt.Fprintf(w, "  failed:    %s (%s)\n", f.Path, f.Status)
		}
		if in.LastError != "" {
			fmt.Fprintf(w, "  note:      %s\n", utils.Truncate(in.LastError, maxNoteRunes))
		}
	}
	if s.Error != "" {
		fmt.Fprintf(w, "error:       %s\n", s.Error)
	}
}

// WriteLines writes one item per line, or a JSON array.
func WriteLines(w io.Writer, items []string, format OutputFormat) error {
	if format == OutputJSON {
		if items == nil {
			items = []string{}
		}
		return WriteJSON(w, items)
	}
	for _, item := range items {
		fmt.Fprintln(w, item)
	}
	return nil
}

// ServerStatus is the body of GET /api/v1/status.
type ServerStatus struct {
	Documents         int                    `json:"documents"`
	DocumentsByStatus map[string]int         `json:"documents_by_status"`
	Index             *models.IndexJobState  `json:"index"`
	DiskUsageBytes    *int64                 `json:"disk_usage_bytes,omitempty"`
	Config            map[string]interface{} `json:"config,omitempty"`
}

// WriteServerStatus writes a server status report to w in the given format.
func WriteServerStatus(w io.Writer, status *ServerStatus, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, status)
	}
	fmt.Fprintf(w, "documents:          %d\n", status.Documents)
	for _, key := range sortedKeys(status.DocumentsByStatus) {
		fmt.Fprintf(w, "  %-17s %d\n", key+":", status.DocumentsByStatus[key])
	}
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	if len(status.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		for _, key := range sortedKeys(status.Config) {
			fmt.Fprintf(w, "%-19s %v\n", key+":", status.Config[key])
		}
	}
	if status.Index != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# index job")
		writeJobStateText(w, status.Index)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/reposync/internal/models"
)

func sampleState() *models.IndexJobState {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(2500 * time.Millisecond)
	return &models.IndexJobState{
		JobID:        "7f1c",
		Kind:         models.JobUpdate,
		Status:       models.JobSuccess,
		Progress:     "Completed update.",
		TargetCommit: "0123456789abcdef0123456789abcdef01234567",
		StartedAt:    &started,
		FinishedAt:   &finished,
		Uploaded:     3,
		Skipped:      1,
		Deleted:      2,
		Ingestion: models.IngestionStatus{
			Uploaded: 3, Ready: 2, Failed: 1,
			Failures:  []models.IngestionFailure{{DocumentID: "d1", Path: "docs/a.md", Status: "failed"}},
			LastError: "1 file(s) failed ingestion",
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteJobState_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJobState(&buf, sampleState(), OutputJSON); err != nil {
		t.Fatalf("WriteJobState(json): %v", err)
	}
	var decoded models.IndexJobState
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Status != models.JobSuccess || decoded.Uploaded != 3 || decoded.Ingestion.Failed != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteJobState_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJobState(&buf, sampleState(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"job:         7f1c (update)",
		"status:      SUCCESS",
		"commit:      0123456789ab\n",
		"duration:    2.5s",
		"files:       3 uploaded, 1 skipped, 2 deleted",
		"ingestion:   2 ready, 0 processing, 1 failed of 3",
		"failed:    docs/a.md (failed)",
		"1 file(s) failed ingestion",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "error:") {
		t.Errorf("no error line expected:\n%s", out)
	}
}

func TestWriteJobState_idleHidesCounters(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteJobState(&buf, models.IdleJobState(), OutputText)
	out := buf.String()
	if !strings.Contains(out, "status:      IDLE") {
		t.Errorf("missing status:\n%s", out)
	}
	if strings.Contains(out, "files:") || strings.Contains(out, "job:") {
		t.Errorf("idle output should not show job details:\n%s", out)
	}
}

func TestWriteLines(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteLines(&buf, []string{"a.go", "b.md"}, OutputText)
	if buf.String() != "a.go\nb.md\n" {
		t.Errorf("text = %q", buf.String())
	}
	buf.Reset()
	_ = WriteLines(&buf, nil, OutputJSON)
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("json = %q", buf.String())
	}
}

func TestWriteServerStatus_text(t *testing.T) {
	disk := int64(2048)
	status := &ServerStatus{
		Documents:         4,
		DocumentsByStatus: map[string]int{"completed": 3, "queued": 1},
		Index:             sampleState(),
		DiskUsageBytes:    &disk,
		Config:            map[string]interface{}{"store_backend": "sqlite"},
	}
	var buf bytes.Buffer
	if err := WriteServerStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"documents:          4", "completed:", "queued:", "disk_usage_bytes:   2048", "store_backend:", "# index job"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "completed:") > strings.Index(out, "queued:") {
		t.Errorf("statuses should be sorted:\n%s", out)
	}
}

func TestWriteJobState_longIngestionNoteTruncated(t *testing.T) {
	s := &models.IndexJobState{
		Status:   models.JobSuccess,
		Progress: "Completed.",
		Ingestion: models.IngestionStatus{
			Uploaded:  1,
			Failed:    1,
			Failures:  []models.IngestionFailure{},
			LastError: strings.Repeat("x", 500),
		},
	}
	var buf bytes.Buffer
	if err := WriteJobState(&buf, s, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), strings.Repeat("x", maxNoteRunes)+"...") {
		t.Errorf("note not truncated:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), strings.Repeat("x", maxNoteRunes+1)) {
		t.Error("note longer than the cap")
	}
}

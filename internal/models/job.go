package models

import "time"

// JobStatus is the lifecycle state of an index job.
type JobStatus string

const (
	JobIdle    JobStatus = "IDLE"
	JobRunning JobStatus = "RUNNING"
	JobSuccess JobStatus = "SUCCESS"
	JobFailed  JobStatus = "FAILED"
)

// JobKind identifies which start operation created a job.
type JobKind string

const (
	JobInitial JobKind = "initial"
	JobUpdate  JobKind = "update"
	JobReload  JobKind = "reload"
)

// MaxIngestionFailures bounds IngestionStatus.Failures.
const MaxIngestionFailures = 10

// IngestionFailure describes one document the store failed to ingest.
type IngestionFailure struct {
	DocumentID string `json:"document_id"`
	Path       string `json:"path"`
	Status     string `json:"status"`
}

// IngestionStatus aggregates the store-side processing state of uploaded documents.
// Uploaded always equals Ready + Processing + Failed.
type IngestionStatus struct {
	Uploaded   int                `json:"uploaded"`
	Processing int                `json:"processing"`
	Ready      int                `json:"ready"`
	Failed     int                `json:"failed"`
	Failures   []IngestionFailure `json:"failures"`
	LastError  string             `json:"last_error,omitempty"`
}

// EmptyIngestion returns a zero IngestionStatus with a non-nil failure list.
func EmptyIngestion() IngestionStatus {
	return IngestionStatus{Failures: []IngestionFailure{}}
}

// IndexJobState is an immutable snapshot of the current (or last) index job.
type IndexJobState struct {
	JobID        string          `json:"job_id,omitempty"`
	Kind         JobKind         `json:"kind,omitempty"`
	Status       JobStatus       `json:"status"`
	Progress     string          `json:"progress"`
	TargetCommit string          `json:"target_commit,omitempty"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
	Error        string          `json:"error,omitempty"`
	Uploaded     int             `json:"uploaded"`
	Skipped      int             `json:"skipped"`
	Deleted      int             `json:"deleted"`
	Ingestion    IngestionStatus `json:"ingestion"`
}

// IdleJobState is the state of an engine that has never run a job.
func IdleJobState() *IndexJobState {
	return &IndexJobState{
		Status:    JobIdle,
		Progress:  "Idle",
		Ingestion: EmptyIngestion(),
	}
}

// Terminal reports whether the job has finished (successfully or not).
func (s *IndexJobState) Terminal() bool {
	return s.Status == JobSuccess || s.Status == JobFailed
}

// Package ingestion waits for a store to finish processing uploaded documents.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/models"
)

// ErrIngestionTimeout is returned when documents are still processing at the deadline.
var ErrIngestionTimeout = errors.New("ingestion timed out")

const (
	DefaultPollInterval = time.Second
	DefaultTimeout      = 60 * time.Second
)

// State is the normalized ingestion state of one document.
type State int

const (
	Processing State = iota
	Ready
	Failed
)

// Lister lists store documents with their ingestion status.
type Lister interface {
	List(ctx context.Context) ([]models.DocumentSummary, error)
}

// Tracker polls a store until uploaded documents leave the processing state.
type Tracker struct {
	store    Lister
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPollInterval sets the delay between listings.
func WithPollInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithTimeout sets how long Wait polls before giving up.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTracker creates a tracker over store.
func NewTracker(store Lister, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		interval: DefaultPollInterval,
		timeout:  DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ClassifyStatus maps a store status string to a State, case-insensitively.
func ClassifyStatus(status string) State {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "completed", "ready", "succeeded":
		return Ready
	case "failed", "error", "cancelled", "canceled":
		return Failed
	}
	return Processing
}

// Wait polls until none of docs (document ID → path) is processing, the timeout
// elapses or ctx is done. onTick, if set, receives every aggregate. Failed documents
// are reported through LastError, not as an error.
func (t *Tracker) Wait(ctx context.Context, docs map[string]string, onTick func(models.IngestionStatus)) (models.IngestionStatus, error) {
	status := models.EmptyIngestion()
	if len(docs) == 0 {
		return status, nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	seen := make(map[string]bool, len(ids))

	for {
		files, err := t.store.List(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return status, t.deadlineErr(ctx, status)
			}
			return status, fmt.Errorf("failed to list store documents: %w", err)
		}
		status = aggregate(ids, docs, files, seen)
		if onTick != nil {
			onTick(status)
		}
		t.logger.Debug("ingestion progress",
			zap.Int("ready", status.Ready),
			zap.Int("processing", status.Processing),
			zap.Int("failed", status.Failed))

		if status.Processing == 0 {
			if status.Failed > 0 {
				status.LastError = fmt.Sprintf("%d file(s) failed ingestion", status.Failed)
			}
			return status, nil
		}

		select {
		case <-ctx.Done():
			return status, t.deadlineErr(ctx, status)
		case <-ticker.C:
		}
	}
}

func (t *Tracker) deadlineErr(ctx context.Context, status models.IngestionStatus) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s with %d file(s) still processing", ErrIngestionTimeout, t.timeout, status.Processing)
	}
	return ctx.Err()
}

// aggregate counts the states of ids in one listing. seen carries the IDs listed by
// earlier polls of the same Wait: a document that was listed and is now gone failed,
// one that was never listed is still processing.
func aggregate(ids []string, docs map[string]string, files []models.DocumentSummary, seen map[string]bool) models.IngestionStatus {
	byID := make(map[string]string, len(files))
	for _, f := range files {
		byID[f.ID] = f.Status
	}
	status := models.EmptyIngestion()
	status.Uploaded = len(ids)
	for _, id := range ids {
		var state State
		raw, listed := byID[id]
		switch {
		case listed:
			seen[id] = true
			state = ClassifyStatus(raw)
		case seen[id]:
			state, raw = Failed, "missing"
		default:
			state = Processing
		}
		switch state {
		case Ready:
			status.Ready++
		case Failed:
			status.Failed++
			if len(status.Failures) < models.MaxIngestionFailures {
				status.Failures = append(status.Failures, models.IngestionFailure{
					DocumentID: id,
					Path:       docs[id],
					Status:     raw,
				})
			}
		default:
			status.Processing++
		}
	}
	return status
}

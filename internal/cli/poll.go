package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/reposync/internal/models"
)

// StatusFunc returns the current job snapshot.
type StatusFunc func(ctx context.Context) (*models.IndexJobState, error)

// PollJob calls status every interval until the job is terminal, the job ID changes, or ctx is done.
// onChange receives each snapshot whose progress or ingestion counts differ from the previous one.
// The returned state is the last snapshot observed.
func PollJob(ctx context.Context, jobID string, status StatusFunc, interval time.Duration, onChange func(*models.IndexJobState)) (*models.IndexJobState, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *models.IndexJobState
	for {
		state, err := status(ctx)
		if err != nil {
			return last, err
		}
		if jobID != "" && state.JobID != jobID {
			return state, fmt.Errorf("job %s was superseded by %s", jobID, state.JobID)
		}
		if onChange != nil && changed(last, state) {
			onChange(state)
		}
		last = state
		if state.Terminal() {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

func changed(prev, next *models.IndexJobState) bool {
	if prev == nil {
		return true
	}
	return prev.Status != next.Status ||
		prev.Progress != next.Progress ||
		prev.Ingestion.Ready != next.Ingestion.Ready ||
		prev.Ingestion.Failed != next.Ingestion.Failed
}

// ProgressLine renders a one-line summary of a snapshot for live output.
func ProgressLine(s *models.IndexJobState) string {
	line := fmt.Sprintf("[%s] %s", s.Status, s.Progress)
	if in := s.Ingestion; in.Uploaded > 0 {
		line += fmt.Sprintf(" (ingestion %d/%d ready, %d failed)", in.Ready, in.Uploaded, in.Failed)
	}
	return line
}

package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/reposync/internal/models"
)

// scriptedLister returns one listing per call, repeating the last one.
type scriptedLister struct {
	mu    sync.Mutex
	steps [][]models.DocumentSummary
	calls int
	err   error
}

func (s *scriptedLister) List(context.Context) ([]models.DocumentSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i], nil
}

func listing(pairs ...string) []models.DocumentSummary {
	out := make([]models.DocumentSummary, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.DocumentSummary{ID: pairs[i], Status: pairs[i+1]})
	}
	return out
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status string
		want   State
	}{
		{"completed", Ready},
		{"READY", Ready},
		{" Succeeded ", Ready},
		{"failed", Failed},
		{"Error", Failed},
		{"cancelled", Failed},
		{"canceled", Failed},
		{"in_progress", Processing},
		{"queued", Processing},
		{"pending", Processing},
		{"something_else", Processing},
		{"", Processing},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatus(tt.status))
		})
	}
}

func TestWait_EmptyInputReturnsImmediately(t *testing.T) {
	lister := &scriptedLister{err: errors.New("must not be called")}
	status, err := NewTracker(lister).Wait(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Uploaded)
	assert.NotNil(t, status.Failures)
}

func TestWait_UntilReady(t *testing.T) {
	lister := &scriptedLister{steps: [][]models.DocumentSummary{
		listing("a", "queued", "b", "in_progress"),
		listing("a", "completed", "b", "in_progress"),
		listing("a", "completed", "b", "completed"),
	}}
	var ticks []models.IngestionStatus
	tracker := NewTracker(lister, WithPollInterval(time.Millisecond), WithTimeout(5*time.Second))

	status, err := tracker.Wait(context.Background(),
		map[string]string{"a": "a.go", "b": "b.go"},
		func(s models.IngestionStatus) { ticks = append(ticks, s) })
	require.NoError(t, err)

	assert.Equal(t, 2, status.Ready)
	assert.Equal(t, 0, status.Processing)
	assert.Empty(t, status.LastError)
	require.Len(t, ticks, 3)
	for _, tick := range ticks {
		assert.Equal(t, tick.Uploaded, tick.Ready+tick.Processing+tick.Failed)
	}
	assert.Equal(t, 1, ticks[1].Ready)
}

func TestWait_PartialFailureIsNotAnError(t *testing.T) {
	lister := &scriptedLister{steps: [][]models.DocumentSummary{
		listing("a", "completed", "b", "failed"),
	}}
	status, err := NewTracker(lister, WithPollInterval(time.Millisecond)).
		Wait(context.Background(), map[string]string{"a": "a.go", "b": "b.go"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, status.Ready)
	assert.Equal(t, 1, status.Failed)
	assert.Equal(t, "1 file(s) failed ingestion", status.LastError)
	require.Len(t, status.Failures, 1)
	assert.Equal(t, models.IngestionFailure{DocumentID: "b", Path: "b.go", Status: "failed"}, status.Failures[0])
}

func TestWait_MissingDocuments(t *testing.T) {
	t.Run("missing while others are listed is processing", func(t *testing.T) {
		lister := &scriptedLister{steps: [][]models.DocumentSummary{
			listing("other", "completed"),
			listing("other", "completed", "a", "completed"),
		}}
		var first models.IngestionStatus
		calls := 0
		status, err := NewTracker(lister, WithPollInterval(time.Millisecond)).
			Wait(context.Background(), map[string]string{"a": "a.go"}, func(s models.IngestionStatus) {
				if calls == 0 {
					first = s
				}
				calls++
			})
		require.NoError(t, err)
		assert.Equal(t, 1, first.Processing)
		assert.Equal(t, 1, status.Ready)
	})

	t.Run("empty listing before the store catches up is processing", func(t *testing.T) {
		lister := &scriptedLister{steps: [][]models.DocumentSummary{
			listing(),
			listing("a", "completed"),
		}}
		status, err := NewTracker(lister, WithPollInterval(5*time.Millisecond), WithTimeout(200*time.Millisecond)).
			Wait(context.Background(), map[string]string{"a": "a.go"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, status.Ready)
		assert.Equal(t, 0, status.Failed)
		assert.Empty(t, status.Failures)
	})

	t.Run("listed then dropped is failed", func(t *testing.T) {
		lister := &scriptedLister{steps: [][]models.DocumentSummary{
			listing("metadata", "completed", "a", "in_progress", "b", "in_progress"),
			listing("metadata", "completed", "b", "completed"),
		}}
		status, err := NewTracker(lister, WithPollInterval(5*time.Millisecond), WithTimeout(200*time.Millisecond)).
			Wait(context.Background(), map[string]string{"a": "a.go", "b": "b.go"}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, status.Ready)
		assert.Equal(t, 1, status.Failed)
		assert.Equal(t, 0, status.Processing)
		assert.Equal(t, "1 file(s) failed ingestion", status.LastError)
		require.Len(t, status.Failures, 1)
		assert.Equal(t, models.IngestionFailure{DocumentID: "a", Path: "a.go", Status: "missing"}, status.Failures[0])
	})
}

func TestWait_FailureListIsCapped(t *testing.T) {
	docs := map[string]string{}
	var pairs []string
	for i := 0; i < 15; i++ {
		id := string(rune('a' + i))
		docs[id] = id + ".go"
		pairs = append(pairs, id, "error")
	}
	lister := &scriptedLister{steps: [][]models.DocumentSummary{listing(pairs...)}}
	status, err := NewTracker(lister).Wait(context.Background(), docs, nil)
	require.NoError(t, err)
	assert.Equal(t, 15, status.Failed)
	assert.Len(t, status.Failures, models.MaxIngestionFailures)
}

func TestWait_Timeout(t *testing.T) {
	lister := &scriptedLister{steps: [][]models.DocumentSummary{listing("a", "in_progress")}}
	tracker := NewTracker(lister, WithPollInterval(5*time.Millisecond), WithTimeout(30*time.Millisecond))

	status, err := tracker.Wait(context.Background(), map[string]string{"a": "a.go"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIngestionTimeout))
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, 1, status.Processing)
}

func TestWait_ListError(t *testing.T) {
	lister := &scriptedLister{err: errors.New("boom")}
	_, err := NewTracker(lister).Wait(context.Background(), map[string]string{"a": "a.go"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestWait_ContextCancelled(t *testing.T) {
	lister := &scriptedLister{steps: [][]models.DocumentSummary{listing("a", "queued")}}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := NewTracker(lister, WithPollInterval(time.Millisecond), WithTimeout(time.Minute)).
		Wait(ctx, map[string]string{"a": "a.go"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

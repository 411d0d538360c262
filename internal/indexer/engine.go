package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/ingestion"
	"github.com/hyperjump/reposync/internal/models"
	"github.com/hyperjump/reposync/internal/storage"
)

var (
	// ErrBlankCommit is returned when an update or reload is requested without a commit.
	ErrBlankCommit = errors.New("target commit must not be blank")
	// ErrClosed is returned when a job is started after Close.
	ErrClosed = errors.New("index engine is closed")
)

// jobHandle marks the in-flight job. It is claimed with a compare-and-swap and
// released when the job ends.
type jobHandle struct {
	id      string
	initial *models.IndexJobState
	done    chan struct{}
}

// Engine runs index jobs one at a time in the background and exposes their state.
type Engine struct {
	repo      Repository
	store     storage.Store
	metadata  MetadataStore
	tracker   IngestionWaiter
	logger    *zap.Logger
	stepDelay time.Duration
	now       func() time.Time

	state   atomic.Pointer[models.IndexJobState]
	running atomic.Pointer[jobHandle]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// afterPublish runs between publishing a terminal state and releasing the handle.
	// Tests use it to hold that window open.
	afterPublish func()
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStepDelay pauses between coarse steps so pollers can observe progress.
func WithStepDelay(d time.Duration) Option {
	return func(e *Engine) { e.stepDelay = d }
}

// WithIngestionWaiter replaces the default ingestion tracker.
func WithIngestionWaiter(w IngestionWaiter) Option {
	return func(e *Engine) {
		if w != nil {
			e.tracker = w
		}
	}
}

// NewEngine creates an idle engine.
func NewEngine(repo Repository, store storage.Store, metadata MetadataStore, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		repo:     repo,
		store:    store,
		metadata: metadata,
		logger:   zap.NewNop(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracker == nil {
		e.tracker = ingestion.NewTracker(store, ingestion.WithLogger(e.logger))
	}
	e.state.Store(models.IdleJobState())
	return e
}

// Status returns the current job snapshot. It never blocks.
func (e *Engine) Status() *models.IndexJobState {
	return e.state.Load()
}

// StartInitialIndex indexes every tracked file of the working tree at HEAD.
func (e *Engine) StartInitialIndex() (*models.IndexJobState, error) {
	return e.start(models.JobInitial, "", "Starting initial index…", "Completed.", e.runInitial)
}

// StartUpdateIndex applies the changes between the last indexed commit and commit.
// Without a last indexed commit it falls back to a full reload.
func (e *Engine) StartUpdateIndex(commit string) (*models.IndexJobState, error) {
	target := strings.TrimSpace(commit)
	if target == "" {
		return nil, ErrBlankCommit
	}
	return e.start(models.JobUpdate, target, "Starting index update to "+target+"…", "Completed update.",
		func(ctx context.Context, job *jobRun) error { return e.runUpdate(ctx, job, target) })
}

// StartFullReloadIndex re-uploads every file at commit and removes paths that disappeared.
func (e *Engine) StartFullReloadIndex(commit string) (*models.IndexJobState, error) {
	target := strings.TrimSpace(commit)
	if target == "" {
		return nil, ErrBlankCommit
	}
	return e.start(models.JobReload, target, "Starting full reload at "+target+"...", "Completed reload.",
		func(ctx context.Context, job *jobRun) error { return e.runFullReload(ctx, job, target, "Reload: ") })
}

// TrackedFiles lists the files tracked in the working tree.
func (e *Engine) TrackedFiles(ctx context.Context) ([]string, error) {
	files, err := e.repo.ListTrackedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}
	if files == nil {
		files = []string{}
	}
	return files, nil
}

// Wait blocks until no job is running or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	h := e.running.Load()
	if h == nil {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels a running job and waits for it to stop.
func (e *Engine) Close() error {
	e.cancel()
	e.wg.Wait()
	return nil
}

type jobBody func(ctx context.Context, job *jobRun) error

func (e *Engine) start(kind models.JobKind, target, startProgress, successProgress string, body jobBody) (*models.IndexJobState, error) {
	if e.ctx.Err() != nil {
		return nil, ErrClosed
	}

	startedAt := e.now()
	initial := &models.IndexJobState{
		JobID:        uuid.NewString(),
		Kind:         kind,
		Status:       models.JobRunning,
		Progress:     startProgress,
		TargetCommit: target,
		StartedAt:    &startedAt,
		Ingestion:    models.EmptyIngestion(),
	}
	h := &jobHandle{id: initial.JobID, initial: initial, done: make(chan struct{})}

	for !e.running.CompareAndSwap(nil, h) {
		holder := e.running.Load()
		if holder == nil {
			continue
		}
		if current := e.state.Load(); current.JobID == holder.id && current.Terminal() {
			// The holder already published its result and is releasing the handle.
			<-holder.done
			continue
		}
		return e.inFlightState(), nil
	}
	e.state.Store(initial)

	logger := e.logger.With(zap.String("job_id", h.id), zap.String("kind", string(kind)))
	logger.Info("index job started", zap.String("target_commit", target))

	job := &jobRun{engine: e, logger: logger}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(h.done)
		defer e.running.Store(nil)
		if e.afterPublish != nil {
			defer e.afterPublish()
		}

		err := body(e.ctx, job)
		finishedAt := e.now()
		if err != nil {
			logger.Error("index job failed", zap.Error(err))
			e.update(func(s *models.IndexJobState) {
				s.Status = models.JobFailed
				s.Progress = "Failed."
				s.Error = err.Error()
				s.FinishedAt = &finishedAt
			})
			return
		}
		e.update(func(s *models.IndexJobState) {
			s.Status = models.JobSuccess
			s.Progress = successProgress
			s.FinishedAt = &finishedAt
		})
		final := e.state.Load()
		logger.Info("index job finished",
			zap.Int("uploaded", final.Uploaded),
			zap.Int("skipped", final.Skipped),
			zap.Int("deleted", final.Deleted),
			zap.Duration("duration", finishedAt.Sub(startedAt)))
	}()

	return initial, nil
}

// inFlightState returns the snapshot of the job that holds the handle, even if the
// winner has not published its first state yet.
func (e *Engine) inFlightState() *models.IndexJobState {
	h := e.running.Load()
	current := e.state.Load()
	if h != nil && current.JobID != h.id {
		return h.initial
	}
	return current
}

// update replaces the state with a modified copy.
func (e *Engine) update(mutate func(*models.IndexJobState)) {
	for {
		current := e.state.Load()
		next := *current
		next.Ingestion.Failures = append(make([]models.IngestionFailure, 0, len(current.Ingestion.Failures)), current.Ingestion.Failures...)
		mutate(&next)
		if e.state.CompareAndSwap(current, &next) {
			return
		}
	}
}

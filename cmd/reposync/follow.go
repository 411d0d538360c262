package main

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/models"
)

// updater is the part of the engine the HEAD follower drives.
type updater interface {
	StartUpdateIndex(commit string) (*models.IndexJobState, error)
	Wait(ctx context.Context) error
}

// headFollower turns HEAD changes into update jobs. A commit that arrives while
// another job runs is kept as pending and started once that job ends; only the
// newest pending commit is kept.
type headFollower struct {
	ctx    context.Context
	engine updater
	logger *zap.Logger

	mu      sync.Mutex
	pending string
	active  bool
	wg      sync.WaitGroup
}

func newHeadFollower(ctx context.Context, engine updater, logger *zap.Logger) *headFollower {
	return &headFollower{ctx: ctx, engine: engine, logger: logger}
}

// Notify records commit as the newest HEAD and makes sure an update will run for it.
func (f *headFollower) Notify(commit string) {
	f.mu.Lock()
	f.pending = commit
	if f.active {
		f.mu.Unlock()
		return
	}
	f.active = true
	f.wg.Add(1)
	f.mu.Unlock()
	go f.drain()
}

func (f *headFollower) drain() {
	defer f.wg.Done()
	for {
		f.mu.Lock()
		commit := f.pending
		f.pending = ""
		if commit == "" || f.ctx.Err() != nil {
			f.active = false
			f.mu.Unlock()
			return
		}
		f.mu.Unlock()

		state, err := f.engine.StartUpdateIndex(commit)
		if err != nil {
			f.logger.Warn("automatic update index failed to start", zap.String("commit", commit), zap.Error(err))
			continue
		}
		if state.Kind == models.JobUpdate && state.TargetCommit == commit {
			f.logger.Info("automatic update index started", zap.String("commit", commit), zap.String("job_id", state.JobID))
			continue
		}

		// Another job holds the engine; retry after it ends unless a newer commit arrived.
		f.logger.Debug("update index deferred", zap.String("commit", commit), zap.String("running_job", state.JobID))
		if err := f.engine.Wait(f.ctx); err != nil {
			f.mu.Lock()
			f.active = false
			f.mu.Unlock()
			return
		}
		f.mu.Lock()
		if f.pending == "" {
			f.pending = commit
		}
		f.mu.Unlock()
	}
}

// wait blocks until the follower has no work in flight.
func (f *headFollower) wait() {
	f.wg.Wait()
}

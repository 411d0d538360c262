package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/reposync/internal/config"
	"github.com/hyperjump/reposync/internal/server"
	"github.com/hyperjump/reposync/internal/watcher"
)

func newServerCmd(opts *rootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long: `Start the HTTP API. With --watch (or watch.enabled in the config) the server
also follows the repository HEAD and runs an update index on every new commit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if cmd.Flags().Changed("watch") {
				cfg.Watch.Enabled = watch
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg, logger)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "run an update index whenever HEAD moves")
	return cmd
}

func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	comps, err := newComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	srv := server.NewServer(comps.engine, comps.metadata, comps.store, cfg, logger)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})

	if cfg.Watch.Enabled {
		w, err := startHeadWatcher(gctx, comps, cfg, logger)
		if err != nil {
			logger.Warn("HEAD watcher disabled", zap.Error(err))
		} else {
			defer w.Stop()
		}
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func startHeadWatcher(ctx context.Context, comps *components, cfg *config.Config, logger *zap.Logger) (*watcher.Watcher, error) {
	gitDir, err := comps.repo.GitDir(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to locate git directory: %w", err)
	}
	follower := newHeadFollower(ctx, comps.engine, logger)
	w := watcher.NewWatcher(gitDir, comps.repo.HeadCommit, follower.Notify,
		watcher.WithDebounce(cfg.Watch.Debounce.Std()),
		watcher.WithLogger(logger),
	)
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}
	logger.Info("following HEAD", zap.String("git_dir", gitDir))
	return w, nil
}

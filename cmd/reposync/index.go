package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/cli"
	"github.com/hyperjump/reposync/internal/gitrepo"
	"github.com/hyperjump/reposync/internal/models"
)

// indexOptions are the flags shared by the index subcommands.
type indexOptions struct {
	serverURL string
	output    string
	noWait    bool
	interval  time.Duration
}

func newIndexCmd(opts *rootOptions) *cobra.Command {
	iopts := &indexOptions{}
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Run an index job",
		Long: `Run an index job and wait for it to finish.

Without --server the job runs in this process against the configured store.
With --server it is started on a running reposync server and polled over HTTP.`,
	}
	cmd.PersistentFlags().StringVar(&iopts.serverURL, "server", "", "server URL (empty = run locally)")
	cmd.PersistentFlags().StringVar(&iopts.output, "output", "text", "output format: text or json")
	cmd.PersistentFlags().BoolVar(&iopts.noWait, "no-wait", false, "return as soon as the job is started")
	cmd.PersistentFlags().DurationVar(&iopts.interval, "poll", 500*time.Millisecond, "status poll interval")

	cmd.AddCommand(&cobra.Command{
		Use:   "initial",
		Short: "Index every tracked file at HEAD",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd, opts, iopts, models.JobInitial, "")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "update <commit>",
		Short: "Apply the changes since the last indexed commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, opts, iopts, models.JobUpdate, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reload <commit>",
		Short: "Re-upload every file at a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, opts, iopts, models.JobReload, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "files",
		Short: "List the files tracked in the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTrackedFiles(cmd, opts, iopts)
		},
	})
	return cmd
}

// jobRunner starts jobs and reads their state, locally or through a server.
type jobRunner struct {
	start  func(ctx context.Context) (*models.IndexJobState, error)
	status cli.StatusFunc
	close  func()
}

func runIndex(cmd *cobra.Command, opts *rootOptions, iopts *indexOptions, kind models.JobKind, commit string) error {
	format, err := cli.ParseOutputFormat(iopts.output)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := newJobRunner(ctx, opts, iopts, kind, commit)
	if err != nil {
		return err
	}
	defer runner.close()

	started, err := runner.start(ctx)
	if err != nil {
		return err
	}
	if iopts.noWait {
		return cli.WriteJobState(cmd.OutOrStdout(), started, format)
	}

	var progress io.Writer = cmd.ErrOrStderr()
	if format == cli.OutputJSON {
		progress = io.Discard
	}
	final, err := cli.PollJob(ctx, started.JobID, runner.status, iopts.interval, func(s *models.IndexJobState) {
		fmt.Fprintln(progress, cli.ProgressLine(s))
	})
	if final != nil {
		if werr := cli.WriteJobState(cmd.OutOrStdout(), final, format); werr != nil && err == nil {
			err = werr
		}
	}
	if err != nil {
		return err
	}
	if final.Status == models.JobFailed {
		return fmt.Errorf("index job failed: %s", final.Error)
	}
	return nil
}

func newJobRunner(ctx context.Context, opts *rootOptions, iopts *indexOptions, kind models.JobKind, commit string) (*jobRunner, error) {
	if iopts.serverURL != "" {
		client := cli.NewClient(iopts.serverURL)
		return &jobRunner{
			start: func(ctx context.Context) (*models.IndexJobState, error) {
				return client.StartIndex(ctx, kind, commit)
			},
			status: client.IndexStatus,
			close:  func() {},
		}, nil
	}

	cfg, logger, err := opts.setup()
	if err != nil {
		return nil, err
	}
	comps, err := newComponents(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	engine := comps.engine
	return &jobRunner{
		start: func(context.Context) (*models.IndexJobState, error) {
			switch kind {
			case models.JobUpdate:
				return engine.StartUpdateIndex(commit)
			case models.JobReload:
				return engine.StartFullReloadIndex(commit)
			}
			return engine.StartInitialIndex()
		},
		status: func(context.Context) (*models.IndexJobState, error) {
			return engine.Status(), nil
		},
		close: func() {
			comps.Close()
			_ = logger.Sync()
		},
	}, nil
}

func runTrackedFiles(cmd *cobra.Command, opts *rootOptions, iopts *indexOptions) error {
	format, err := cli.ParseOutputFormat(iopts.output)
	if err != nil {
		return err
	}
	var files []string
	if iopts.serverURL != "" {
		files, err = cli.NewClient(iopts.serverURL).TrackedFiles(cmd.Context())
	} else {
		files, err = localTrackedFiles(cmd.Context(), opts)
	}
	if err != nil {
		return err
	}
	return cli.WriteLines(cmd.OutOrStdout(), files, format)
}

func localTrackedFiles(ctx context.Context, opts *rootOptions) ([]string, error) {
	cfg, logger, err := opts.setup()
	if err != nil {
		return nil, err
	}
	defer logger.Sync()
	logger.Debug("listing tracked files", zap.String("repo", cfg.Project.RepoPath))
	files, err := gitrepo.New(cfg.Project.RepoPath).ListTrackedFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked files: %w", err)
	}
	return files, nil
}

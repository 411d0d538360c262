package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperjump/reposync/internal/cli"
	"github.com/hyperjump/reposync/internal/projectstate"
	"github.com/hyperjump/reposync/internal/storage"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var serverURL, output string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store, metadata and index job status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := cli.ParseOutputFormat(output)
			if err != nil {
				return err
			}
			var status *cli.ServerStatus
			if serverURL != "" {
				status, err = cli.NewClient(serverURL).Status(cmd.Context())
				if err != nil {
					return fmt.Errorf("status failed: %w", err)
				}
			} else {
				status, err = localStatus(cmd.Context(), opts)
				if err != nil {
					return err
				}
			}
			return cli.WriteServerStatus(cmd.OutOrStdout(), status, format)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "server URL (empty = read the store directly)")
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or json")
	return cmd
}

// localStatus reads the store directly. It does not take the data directory lock,
// so it also works while a server runs.
func localStatus(ctx context.Context, opts *rootOptions) (*cli.ServerStatus, error) {
	cfg, logger, err := opts.setup()
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	store, _, err := openStore(ctx, cfg, logger, false)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	files, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list store documents: %w", err)
	}
	byStatus := map[string]int{}
	for _, f := range files {
		byStatus[f.Status]++
	}
	status := &cli.ServerStatus{
		Documents:         len(files),
		DocumentsByStatus: byStatus,
		Config: map[string]interface{}{
			"repo_path":      cfg.Project.RepoPath,
			"store_backend":  cfg.Store.Backend,
			"store_location": cfg.StoreLocation(),
		},
	}

	coord := projectstate.NewCoordinator(store, cfg.ProjectInfo())
	state, found, err := coord.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	if found {
		status.Config["last_indexed_commit"] = state.Metadata.LastIndexedCommit()
		status.Config["indexed_paths"] = len(state.Metadata.PathToDocumentIDsOrEmpty())
	}

	if paths := cfg.LocalStorePaths(); len(paths) > 0 {
		if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}
	return status, nil
}

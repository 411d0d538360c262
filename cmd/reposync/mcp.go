package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyperjump/reposync/internal/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index tools over MCP (stdio)",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing index_initial,
index_update, index_reload, index_status and tracked_files. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer logger.Sync()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			comps, err := newComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer comps.Close()
			return mcp.NewServer(comps.engine, version, logger).Serve(ctx)
		},
	}
}

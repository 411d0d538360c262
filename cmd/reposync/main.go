// Package main is the reposync CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/config"
	"github.com/hyperjump/reposync/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/reposync/config.yaml"
	localConfigName   = "reposync.yaml"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "reposync",
		Short: "Keep a document store in sync with a git repository",
		Long: `reposync uploads the tracked files of a git repository to a document store
and keeps the store in sync as the repository moves from commit to commit.

Run 'reposync server' for the HTTP API, 'reposync mcp' for the MCP tool server,
or 'reposync index' to run a single job from the command line.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("reposync version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "config file path")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServerCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newMCPCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// setup loads the config and builds the logger.
func (o *rootOptions) setup() (*config.Config, *zap.Logger, error) {
	cfg, resolved, err := loadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug))
	return cfg, logger, nil
}

// loadConfig loads config from path. When path is the default, it first looks for
// reposync.yaml in the current directory; if neither exists, defaults are used with
// the current directory as the repository.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get working directory: %w", err)
	}
	local := filepath.Join(cwd, localConfigName)
	for _, candidate := range []string{local, defaultConfigPath} {
		if _, statErr := os.Stat(candidate); statErr == nil {
			cfg, loadErr := config.Load(candidate)
			if loadErr != nil {
				return nil, "", loadErr
			}
			return cfg, candidate, nil
		}
	}

	cfg := &config.Config{Project: config.ProjectConfig{RepoPath: cwd}}
	config.ApplyDefaults(cfg)
	return cfg, "", nil
}

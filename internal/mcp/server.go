// Package mcp exposes the index engine as Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/models"
)

const (
	// ServerName is the MCP server name.
	ServerName = "reposync"
)

// IndexService starts index jobs and reports their state.
type IndexService interface {
	Status() *models.IndexJobState
	StartInitialIndex() (*models.IndexJobState, error)
	StartUpdateIndex(commit string) (*models.IndexJobState, error)
	StartFullReloadIndex(commit string) (*models.IndexJobState, error)
	TrackedFiles(ctx context.Context) ([]string, error)
}

// Server wraps the MCP server with the index engine.
type Server struct {
	mcp    *server.MCPServer
	index  IndexService
	logger *zap.Logger
}

// NewServer creates an MCP server and registers the index tools.
func NewServer(index IndexService, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		index:  index,
		logger: logger,
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdin/stdout until the input closes or ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- server.ServeStdio(s.mcp) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return ctx.Err()
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(indexInitialTool(), s.handleIndexInitial)
	s.mcp.AddTool(indexUpdateTool(), s.handleIndexUpdate)
	s.mcp.AddTool(indexReloadTool(), s.handleIndexReload)
	s.mcp.AddTool(indexStatusTool(), s.handleIndexStatus)
	s.mcp.AddTool(trackedFilesTool(), s.handleTrackedFiles)
}

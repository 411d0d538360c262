package mcp

import (
	"context"
	"encoding/json"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hyperjump/reposync/internal/models"
)

func indexInitialTool() mcpgo.Tool {
	return mcpgo.NewTool(
		"index_initial",
		mcpgo.WithDescription("Index every tracked file of the repository working tree at HEAD. Returns immediately; poll index_status."),
	)
}

func indexUpdateTool() mcpgo.Tool {
	return mcpgo.NewTool(
		"index_update",
		mcpgo.WithDescription("Apply the changes between the last indexed commit and the given commit. Falls back to a full reload when nothing was indexed yet."),
		mcpgo.WithString("commit", mcpgo.Required(), mcpgo.Description("Target commit (any revision git understands).")),
	)
}

func indexReloadTool() mcpgo.Tool {
	return mcpgo.NewTool(
		"index_reload",
		mcpgo.WithDescription("Re-upload every file at the given commit and remove documents for paths that no longer exist."),
		mcpgo.WithString("commit", mcpgo.Required(), mcpgo.Description("Target commit (any revision git understands).")),
	)
}

func indexStatusTool() mcpgo.Tool {
	return mcpgo.NewTool(
		"index_status",
		mcpgo.WithDescription("Report the state of the current or last index job, including ingestion progress."),
		mcpgo.WithReadOnlyHintAnnotation(true),
	)
}

func trackedFilesTool() mcpgo.Tool {
	return mcpgo.NewTool(
		"tracked_files",
		mcpgo.WithDescription("List the files tracked in the repository working tree."),
		mcpgo.WithReadOnlyHintAnnotation(true),
	)
}

func (s *Server) handleIndexInitial(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	state, err := s.index.StartInitialIndex()
	if err != nil {
		s.logger.Error("mcp: start initial index failed", zap.Error(err))
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return jsonResult(state)
}

func (s *Server) handleIndexUpdate(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.startWithCommit(req, s.index.StartUpdateIndex)
}

func (s *Server) handleIndexReload(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.startWithCommit(req, s.index.StartFullReloadIndex)
}

func (s *Server) startWithCommit(req mcpgo.CallToolRequest, start func(string) (*models.IndexJobState, error)) (*mcpgo.CallToolResult, error) {
	commit, err := req.RequireString("commit")
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	commit = strings.TrimSpace(commit)
	if commit == "" {
		return mcpgo.NewToolResultError("commit must not be blank"), nil
	}
	state, err := start(commit)
	if err != nil {
		s.logger.Error("mcp: start index failed", zap.String("commit", commit), zap.Error(err))
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return jsonResult(state)
}

func (s *Server) handleIndexStatus(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return jsonResult(s.index.Status())
}

func (s *Server) handleTrackedFiles(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	files, err := s.index.TrackedFiles(ctx)
	if err != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{"count": len(files), "files": files})
}

func jsonResult(v interface{}) (*mcpgo.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcpgo.NewToolResultError("failed to encode result: " + err.Error()), nil
	}
	return mcpgo.NewToolResultText(string(data)), nil
}

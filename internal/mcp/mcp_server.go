// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// NewMCPServer initializes and configures the gitpulse MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, log *zap.Logger) *server.MCPServer {
	if log == nil {
		log = zap.NewNop()
	}
	s := server.NewMCPServer(
		"gitpulse",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		log:     log.Named("mcp"),
	}

	// --- 1. Tool: sync_local_repo ---
	s.AddTool(mcp.NewTool("sync_local_repo",
		mcp.WithDescription("Extract commits, commit stats, files and blame of a local Git repository into the fact store."),
		mcp.WithString("repo_path", mcp.Description("Path to the Git repository (defaults to the configured path).")),
	), h.handleSyncLocalRepo)

	// --- 2. Tool: compute_daily_metrics ---
	s.AddTool(mcp.NewTool("compute_daily_metrics",
		mcp.WithDescription("Compute and persist daily repository, user, commit and file hotspot metrics."),
		mcp.WithString("day", mcp.Description("Last day to compute, YYYY-MM-DD (defaults to today UTC).")),
		mcp.WithNumber("backfill_days", mcp.Description("Number of days ending at day to compute (defaults to 1).")),
		mcp.WithString("repo_id", mcp.Description("Restrict the run to one repository id (UUID).")),
	), h.handleComputeDailyMetrics)

	// --- 3. Tool: get_file_hotspots ---
	s.AddTool(mcp.NewTool("get_file_hotspots",
		mcp.WithDescription("Rank the files of a repository by hotspot score over a window of days."),
		mcp.WithString("repo_id", mcp.Description("Repository id (UUID)."), mcp.Required()),
		mcp.WithString("day", mcp.Description("Last day of the window, YYYY-MM-DD (defaults to today UTC).")),
		mcp.WithNumber("window_days", mcp.Description("Window length in days (defaults to 30).")),
		mcp.WithNumber("limit", mcp.Description("Limit the number of results returned.")),
	), h.handleGetFileHotspots)

	// --- 4. Tool: store_status ---
	s.AddTool(mcp.NewTool("store_status",
		mcp.WithDescription("Report row counts and last sync time of every fact table."),
	), h.handleStoreStatus)

	return s
}

// StartMCPServer starts the gitpulse MCP server over stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, log *zap.Logger) error {
	s := NewMCPServer(baseCfg, log)
	return server.ServeStdio(s)
}

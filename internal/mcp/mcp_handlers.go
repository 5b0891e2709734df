package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huangsam/gitpulse/core"
	"github.com/huangsam/gitpulse/internal/contract"
	"github.com/huangsam/gitpulse/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	log     *zap.Logger
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// parseDay reads an optional YYYY-MM-DD argument.
func parseDay(request mcp.CallToolRequest, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(request.GetString("day", ""))
	if raw == "" {
		return fallback, nil
	}
	day, err := time.Parse(contract.DateFormat, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day '%s': expected %s", raw, contract.DateFormat)
	}
	return day.UTC(), nil
}

func parseRepoID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("repo_id must be a UUID (received %q)", raw)
	}
	return &id, nil
}

func (h *toolHandler) dayFallback() time.Time {
	if h.baseCfg.Day.IsZero() {
		return schema.UTCDay(time.Now())
	}
	return h.baseCfg.Day
}

func (h *toolHandler) handleSyncLocalRepo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if p := request.GetString("repo_path", ""); p != "" {
		abs, err := filepath.Abs(p)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid repo_path: %v", err)), nil
		}
		cfg.RepoPath = abs
		cfg.RepoID = nil
	}

	var summary schema.LocalSummary
	err := core.WithStore(ctx, cfg, h.log, func(fs contract.FactStore) error {
		var err error
		summary, err = core.SyncLocal(ctx, cfg, fs, h.log)
		return err
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
	}
	return jsonResult(summary)
}

func (h *toolHandler) handleComputeDailyMetrics(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	day, err := parseDay(request, h.dayFallback())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg.Day = day

	cfg.BackfillDays = request.GetInt("backfill_days", max(cfg.BackfillDays, 1))
	if cfg.BackfillDays < 1 {
		return mcp.NewToolResultError(fmt.Sprintf("backfill_days must be at least 1 (received %d)", cfg.BackfillDays)), nil
	}

	repoID, err := parseRepoID(request.GetString("repo_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg.RepoID = repoID

	var summary schema.DailyJobSummary
	err = core.WithStore(ctx, cfg, h.log, func(fs contract.FactStore) error {
		var err error
		summary, err = core.RunDaily(ctx, cfg, fs, h.log)
		return err
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("daily metrics failed: %v", err)), nil
	}
	return jsonResult(summary)
}

func (h *toolHandler) handleGetFileHotspots(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	repoID, err := parseRepoID(request.GetString("repo_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if repoID == nil {
		return mcp.NewToolResultError("repo_id is required"), nil
	}

	day, err := parseDay(request, h.dayFallback())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg.Day = day

	if w := request.GetInt("window_days", 0); w != 0 {
		if w < 1 {
			return mcp.NewToolResultError(fmt.Sprintf("window_days must be at least 1 (received %d)", w)), nil
		}
		cfg.HotspotWindow = w
	}
	if cfg.HotspotWindow < 1 {
		cfg.HotspotWindow = contract.DefaultHotspotWindowDays
	}

	if l := request.GetInt("limit", 0); l != 0 {
		if l < 0 || l > contract.MaxResultLimit {
			return mcp.NewToolResultError(fmt.Sprintf("limit must be greater than 0 and cannot exceed %d (received %d)", contract.MaxResultLimit, l)), nil
		}
		cfg.ResultLimit = l
	}
	if cfg.ResultLimit < 1 {
		cfg.ResultLimit = contract.DefaultResultLimit
	}

	var records []schema.FileMetricsRecord
	err = core.WithStore(ctx, cfg, h.log, func(fs contract.FactStore) error {
		var err error
		records, err = core.FileHotspots(ctx, cfg, fs, *repoID, h.log)
		return err
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("hotspot ranking failed: %v", err)), nil
	}
	return jsonResult(enrichHotspots(records))
}

// rankedHotspot is a hotspot record with its rank and label.
type rankedHotspot struct {
	Rank  int    `json:"rank"`
	Label string `json:"label"`
	schema.FileMetricsRecord
}

func enrichHotspots(records []schema.FileMetricsRecord) []rankedHotspot {
	out := make([]rankedHotspot, len(records))
	for i, r := range records {
		out[i] = rankedHotspot{Rank: i + 1, Label: contract.GetPlainLabel(r.HotspotScore), FileMetricsRecord: r}
	}
	return out
}

func (h *toolHandler) handleStoreStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status schema.StoreStatus
	err := core.WithStore(ctx, h.baseCfg, h.log, func(fs contract.FactStore) error {
		var err error
		status, err = core.StoreStatus(ctx, fs)
		return err
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status probe failed: %v", err)), nil
	}
	return jsonResult(status)
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/openpreserve/flint/core"
	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/internal/formats"
	"github.com/openpreserve/flint/internal/registry"
	"github.com/openpreserve/flint/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
	reg     *registry.Registry
}

// formatInfo describes one registered format.
type formatInfo struct {
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Categories []string `json:"categories"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *toolHandler) handleCheckFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}
	if _, err := os.Stat(path); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid path: %v", err)), nil
	}

	cfg := h.baseCfg.Clone()
	cfg.InputPath = path
	format := request.GetString("format", "")
	if format != "" {
		if _, ok := h.reg.Lookup(format); !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown format: %s", format)), nil
		}
		cfg.Formats = []string{schema.NormalizeFormat(format)}
	}
	if patterns := request.GetStringSlice("patterns", nil); len(patterns) > 0 {
		if format == "" {
			return mcp.NewToolResultError("patterns require a format"), nil
		}
		cfg.PolicyFilters = map[string][]string{schema.NormalizeFormat(format): patterns}
	}

	results, err := core.CheckPath(ctx, cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("check failed: %v", err)), nil
	}

	out := struct {
		Summary schema.Summary      `json:"summary"`
		Results []schema.ResultView `json:"results"`
	}{Summary: schema.Summarize(results), Results: make([]schema.ResultView, len(results))}
	for i, r := range results {
		out.Results[i] = r.View()
	}
	return jsonResult(out)
}

func (h *toolHandler) handleListFormats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos := []formatInfo{}
	for _, name := range h.reg.Names() {
		v, err := h.reg.New(name, formats.Options{})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		infos = append(infos, formatInfo{
			Name:       v.Name(),
			Version:    v.Version(),
			Categories: v.FixedCategoryNames(),
		})
	}
	return jsonResult(infos)
}

func (h *toolHandler) handlePolicyPatterns(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := request.GetString("format", "")
	if format == "" {
		return mcp.NewToolResultError("format is required"), nil
	}
	names, err := core.PolicyPatterns(h.reg, h.baseCfg, format)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list patterns: %v", err)), nil
	}
	return jsonResult(names)
}

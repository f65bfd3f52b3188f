// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/internal/registry"
)

// NewMCPServer initializes and configures the Flint MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager) *server.MCPServer {
	s := server.NewMCPServer(
		"Flint Validation Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		reg:     registry.Default(),
	}

	// --- 1. Tool: check_file ---
	s.AddTool(mcp.NewTool("check_file",
		mcp.WithDescription("Check a file, or every file under a folder, against the registered formats and their policies."),
		mcp.WithString("path", mcp.Description("Path to the file or folder to check."), mcp.Required()),
		mcp.WithString("format", mcp.Description("Restrict the check to one format (PDF, EPUB, MOBI).")),
		mcp.WithArray("patterns", mcp.Description("Policy patterns to keep. All patterns are kept when omitted."), mcp.WithStringItems()),
	), h.handleCheckFile)

	// --- 2. Tool: list_formats ---
	s.AddTool(mcp.NewTool("list_formats",
		mcp.WithDescription("List the registered formats with their fixed check categories."),
	), h.handleListFormats)

	// --- 3. Tool: policy_patterns ---
	s.AddTool(mcp.NewTool("policy_patterns",
		mcp.WithDescription("List the policy pattern names a format validates against."),
		mcp.WithString("format", mcp.Description("The format name."), mcp.Required()),
	), h.handlePolicyPatterns)

	return s
}

// StartMCPServer starts the Flint MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager) error {
	s := NewMCPServer(baseCfg, mgr)
	return server.ServeStdio(s)
}

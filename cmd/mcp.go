package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openpreserve/flint/internal/mcp"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Flint MCP server",
	Long:  `Launch an MCP server on stdio that lets AI agents check files and inspect format policies.`,
	Args:  cobra.NoArgs,
	// Setup only writes to stderr, stdout carries the protocol.
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager)
	},
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openpreserve/flint/core"
	"github.com/openpreserve/flint/internal/contract"
)

// reportCmd re-renders a previous report.
var reportCmd = &cobra.Command{
	Use:   "report <results.xml>",
	Short: "Re-read an XML report and write it in another output format",
	Long: `Parse a report written by 'flint check' and write it with the configured
output format. The default output of this command is the text table.

Examples:
  flint report results.xml
  flint report results.xml --output csv -o results.csv`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		if !cmd.Flags().Changed("output") {
			if err := cmd.Flags().Set("output", "text"); err != nil {
				return err
			}
		}
		return sharedSetup(rootCtx, cmd, nil)
	},
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteReport(rootCtx, cfg, args[0]); err != nil {
			contract.LogFatal("Failed to read report", err)
		}
	},
}

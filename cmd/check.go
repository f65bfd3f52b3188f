package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openpreserve/flint/core"
	"github.com/openpreserve/flint/internal/contract"
)

// checkCmd validates files and writes the report.
var checkCmd = &cobra.Command{
	Use:   "check <input-path>",
	Short: "Validate a file or every file under a folder",
	Long: `Check files against every registered format that accepts them.

Each file is checked for well-formedness, format-specific DRM checks and the
format's schematron policy. Results are written as an XML report by default.

Exit code: with --fail-on-error, non-zero when any file did not pass.

Examples:
  # Check a folder and write the report next to it
  flint check ./books -o ./books/results.xml

  # Only check PDFs, restricting the policy with a properties file
  flint check ./scans --format pdf --policy-dir ./policies

  # Run every task in a child process with a 60 second deadline
  flint check ./inbox --isolation process --timeout 60s --output text`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteCheck(rootCtx, cfg, cacheManager); err != nil {
			contract.LogFatal("Check failed", err)
		}
	},
}

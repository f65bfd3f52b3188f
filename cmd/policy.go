package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/openpreserve/flint/core"
	"github.com/openpreserve/flint/internal/contract"
)

// policyCmd groups the policy helpers.
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and customize format policies",
	Long: `Work with the schematron policies embedded in each format.

Subcommands:
  create   - Write an editable <FORMAT>-policy.properties file
  patterns - List the policy patterns a format validates against`,
}

// policyCreateCmd writes the properties file of a format.
var policyCreateCmd = &cobra.Command{
	Use:   "create <format>",
	Short: "Write an editable pattern filter file for a format",
	Long: `Write <FORMAT>-policy.properties listing every policy pattern and fixed
category of the format, each enabled. Set entries to false and pass the
directory with --policy-dir to skip them.

Examples:
  flint policy create pdf -o ./policies`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return loadConfigFile()
	},
	Run: func(cmd *cobra.Command, args []string) {
		dir, _ := cmd.Flags().GetString("output-file")
		if err := core.ExecutePolicyCreate(rootCtx, args[0], dir); err != nil {
			contract.LogFatal("Failed to create policy properties", err)
		}
	},
}

// policyPatternsCmd lists pattern names.
var policyPatternsCmd = &cobra.Command{
	Use:   "patterns <format>",
	Short: "List the policy patterns of a format",
	Long: `Print the name of every policy pattern the format validates against.
With --policy-dir or policy-filters in the config file only retained patterns
are listed.

Examples:
  flint policy patterns epub
  flint policy patterns pdf --policy-dir ./policies`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecutePolicyPatterns(rootCtx, cfg, args[0], os.Stdout); err != nil {
			contract.LogFatal("Failed to list policy patterns", err)
		}
	},
}

package cmd

import (
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openpreserve/flint/internal/formats"
	"github.com/openpreserve/flint/internal/registry"
)

// versionCmd shows the verbose version for diagnostic purposes.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of flint.",
	Long: `Display version information including build details
and the document formats compiled into this binary.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("flint CLI\n")
		cmd.Printf("  Version: %s\n", version)
		cmd.Printf("  Commit:  %s\n", commit)
		cmd.Printf("  Built:   %s\n", date)
		cmd.Printf("  Runtime: %s\n", runtime.Version())
		cmd.Printf("  Formats: %s (validators %s)\n", strings.Join(registry.Default().Names(), ", "), formats.Version)
	},
}

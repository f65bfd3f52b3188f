package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openpreserve/flint/core"
)

// watchCmd keeps checking a folder as files change.
var watchCmd = &cobra.Command{
	Use:   "watch <folder>",
	Short: "Check a folder, then re-check files as they change",
	Long: `Run an initial check of the folder, then watch it for new and modified
files. Changes are debounced and checked in batches. With --schedule, the whole
folder is re-checked on a cron schedule as well.

Stop with Ctrl-C.

Examples:
  flint watch ./inbox --output text
  flint watch ./inbox --schedule '@every 1h' --history-backend sqlite`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		err := core.ExecuteWatch(ctx, cfg, cacheManager)
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

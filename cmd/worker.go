package cmd

import (
	"github.com/spf13/cobra"

	"github.com/openpreserve/flint/core"
	"github.com/openpreserve/flint/internal/supervisor"
)

const workerTaskFlag = "task"

// workerCmd runs one task of one format in a child process. The parent
// supervisor reads the category mapping from stdout.
var workerCmd = &cobra.Command{
	Use:    supervisor.WorkerCommand + " <file>",
	Short:  "Run a single validation task (used by --isolation process)",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := workerRequest(cmd, args)
		if err != nil {
			return err
		}
		return core.ServeWorker(rootCtx, nil, req, cmd.OutOrStdout())
	},
}

// workerRequest decodes the worker command line.
func workerRequest(cmd *cobra.Command, args []string) (core.WorkerRequest, error) {
	flags := cmd.Flags()
	req := core.WorkerRequest{File: args[0]}
	var err error
	if req.Format, err = flags.GetString(core.WorkerFormatFlag); err != nil {
		return req, err
	}
	if req.Patterns, err = flags.GetStringArray(core.WorkerPatternFlag); err != nil {
		return req, err
	}
	if req.Filtered, err = flags.GetBool(core.WorkerFilteredFlag); err != nil {
		return req, err
	}
	req.Task, err = flags.GetString(workerTaskFlag)
	return req, err
}

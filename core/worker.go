package core

import (
	"context"
	"fmt"
	"io"

	"github.com/openpreserve/flint/internal/formats"
	"github.com/openpreserve/flint/internal/policy"
	"github.com/openpreserve/flint/internal/registry"
	"github.com/openpreserve/flint/internal/supervisor"
)

// Flags understood by the worker subcommand.
const (
	WorkerFormatFlag   = "format"
	WorkerPatternFlag  = "pattern"
	WorkerFilteredFlag = "filtered"
)

// WorkerArgs are the arguments that rebuild a format and its filter in a
// worker process.
func WorkerArgs(format string, filter policy.PatternFilter) []string {
	args := []string{supervisor.WorkerCommand, "--" + WorkerFormatFlag, format}
	if filter.Active() {
		args = append(args, "--"+WorkerFilteredFlag)
		for _, p := range filter.Names() {
			args = append(args, "--"+WorkerPatternFlag, p)
		}
	}
	return args
}

// NewWorkerRunner creates a process runner that re-executes the current binary
// for each task of the format.
func NewWorkerRunner(format string, filter policy.PatternFilter) *supervisor.ProcessRunner {
	r := supervisor.NewProcessRunner()
	r.Args = WorkerArgs(format, filter)
	return r
}

// WorkerRequest is the decoded command line of a worker process.
type WorkerRequest struct {
	Format   string
	Patterns []string
	Filtered bool
	Task     string
	File     string
}

// Filter returns the pattern filter carried by the request.
func (r WorkerRequest) Filter() policy.PatternFilter {
	if !r.Filtered {
		return policy.NoFilter
	}
	return policy.NewPatternFilter(r.Patterns...)
}

// ServeWorker rebuilds the requested format, runs one of its tasks in this
// process and writes the category mapping to w.
func ServeWorker(ctx context.Context, reg *registry.Registry, req WorkerRequest, w io.Writer) error {
	if reg == nil {
		reg = registry.Default()
	}
	v, err := reg.New(req.Format, formats.Options{Filter: req.Filter()})
	if err != nil {
		return err
	}
	task, ok := formats.FindTask(v, req.Task)
	if !ok {
		return fmt.Errorf("format %s has no task %q", v.Name(), req.Task)
	}
	return supervisor.ServeWorker(ctx, task, req.File, w)
}

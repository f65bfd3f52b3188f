package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/farcloser/primordium/fault"

	"github.com/openpreserve/flint/schema"
)

// WorkerCommand is the hidden subcommand that executes one task in a child process.
const WorkerCommand = "worker"

// ProcessRunner executes each task in a fresh child process that is killed on deadline.
// The child is invoked as `<Executable> <Args...> --task <name> <file>` and must
// print the resulting category mapping as JSON on stdout.
type ProcessRunner struct {
	Executable string
	Args       []string
	Env        []string
	// WaitDelay bounds how long output pipes are drained after the child is killed.
	WaitDelay time.Duration
}

// NewProcessRunner re-executes the current binary as a worker.
func NewProcessRunner() *ProcessRunner {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return &ProcessRunner{Executable: exe, Args: []string{WorkerCommand}, WaitDelay: time.Second}
}

// Run implements Runner.
func (p *ProcessRunner) Run(ctx context.Context, task Task, file string) (*schema.CategoryMap, error) {
	args := append(append([]string{}, p.Args...), "--task", task.Name(), file)
	cmd := exec.CommandContext(ctx, p.Executable, args...)
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	cmd.WaitDelay = p.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: worker killed", fault.ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %s: %w", fault.ErrCommandFailure, strings.TrimSpace(stderr.String()), err)
	}
	return DecodeMapping(&stdout)
}

// DecodeMapping reads a category mapping written by EncodeMapping.
func DecodeMapping(r io.Reader) (*schema.CategoryMap, error) {
	cats := schema.NewCategoryMap()
	if err := json.NewDecoder(r).Decode(cats); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrInvalidJSON, err)
	}
	return cats, nil
}

// EncodeMapping writes a category mapping for the parent process.
func EncodeMapping(w io.Writer, cats *schema.CategoryMap) error {
	if cats == nil {
		cats = schema.NewCategoryMap()
	}
	return json.NewEncoder(w).Encode(cats)
}

// ServeWorker runs one task in the current process and writes its mapping to w.
// It is the child side of ProcessRunner.
func ServeWorker(ctx context.Context, task Task, file string, w io.Writer) error {
	cats, err := InProcess{}.Run(ctx, task, file)
	if err != nil {
		return err
	}
	return EncodeMapping(w, cats)
}

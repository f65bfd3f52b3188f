// Package supervisor runs validation tasks with a hard deadline and turns any
// misbehavior into a typed, degraded result instead of a propagated fault.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/farcloser/primordium/fault"

	"github.com/openpreserve/flint/schema"
)

// DefaultTimeout bounds a single task invocation.
const DefaultTimeout = 600 * time.Second

// DefaultMaxAbandoned bounds the timed-out in-process tasks that may still be running.
const DefaultMaxAbandoned = 8

// ErrTooManyAbandoned is returned instead of starting another in-process task
// while MaxAbandoned timed-out tasks are still running and there is no Fallback.
var ErrTooManyAbandoned = errors.New("too many abandoned tasks")

// Task is a named unit of validation work over one file.
type Task interface {
	Name() string
	Run(ctx context.Context, file string) (*schema.CategoryMap, error)
}

type taskFunc struct {
	name string
	fn   func(ctx context.Context, file string) (*schema.CategoryMap, error)
}

func (t taskFunc) Name() string { return t.name }

func (t taskFunc) Run(ctx context.Context, file string) (*schema.CategoryMap, error) {
	return t.fn(ctx, file)
}

// TaskFunc adapts a function into a Task.
func TaskFunc(name string, fn func(ctx context.Context, file string) (*schema.CategoryMap, error)) Task {
	return taskFunc{name: name, fn: fn}
}

// FaultKind classifies why a task did not complete.
type FaultKind string

// All fault kinds.
const (
	KindTimeout FaultKind = "timeout"
	KindError   FaultKind = "error"
	KindPanic   FaultKind = "panic"
)

// Fault describes a task that timed out, failed or panicked.
type Fault struct {
	Task string
	Kind FaultKind
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("task %q %s: %v", f.Task, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Result is either the categories of a completed task or a fault.
type Result struct {
	Task       string
	Categories *schema.CategoryMap
	Fault      *Fault
	Elapsed    time.Duration
}

// OK reports whether the task completed.
func (r Result) OK() bool { return r.Fault == nil }

// Mapping returns the task's own categories on success and the degraded
// single-entry mapping otherwise.
func (r Result) Mapping() *schema.CategoryMap {
	if r.Fault != nil {
		return DegradedMapping(r.Task)
	}
	if r.Categories == nil {
		return schema.NewCategoryMap()
	}
	return r.Categories
}

// DegradedMapping is one category named after the task holding one failed
// check of the same name.
func DegradedMapping(name string) *schema.CategoryMap {
	return schema.NewCategoryMap(schema.NewCategory(name, schema.FailedCheck(name, nil)))
}

// Supervisor runs each task exactly once under a deadline.
type Supervisor struct {
	Timeout   time.Duration
	Isolation schema.IsolationMode
	// Runner overrides the runner selected by Isolation.
	Runner Runner
	// Fallback takes over from in-process runs once MaxAbandoned is reached.
	// It should kill its work on deadline, as ProcessRunner does.
	Fallback     Runner
	MaxAbandoned int
	Metrics      *Metrics
	Logger       *slog.Logger

	abandoned atomic.Int64
}

// New creates a supervisor with the default timeout and goroutine isolation.
func New(logger *slog.Logger) *Supervisor {
	return &Supervisor{Timeout: DefaultTimeout, Isolation: schema.GoroutineIsolation, Logger: logger}
}

func (s *Supervisor) runner() Runner {
	if s.Runner != nil {
		return s.Runner
	}
	if s.Isolation == schema.ProcessIsolation {
		return NewProcessRunner()
	}
	return InProcess{}
}

func (s *Supervisor) maxAbandoned() int64 {
	if s.MaxAbandoned > 0 {
		return int64(s.MaxAbandoned)
	}
	return DefaultMaxAbandoned
}

// Abandoned returns the number of timed-out tasks whose goroutines have not returned yet.
func (s *Supervisor) Abandoned() int {
	return int(s.abandoned.Load())
}

// inProcess reports whether r runs tasks on a goroutine of this process.
func inProcess(r Runner) bool {
	_, ok := r.(InProcess)
	return ok
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// States of one task invocation.
const (
	taskRunning int32 = iota
	taskFinished
	taskAbandoned
)

type outcome struct {
	cats *schema.CategoryMap
	err  error
}

// Run executes the task on a dedicated goroutine and waits for completion,
// the deadline or cancellation of ctx, whichever comes first. An in-process
// task that outlives its deadline is abandoned. Once MaxAbandoned of them are
// still running, further tasks go to Fallback or fail with ErrTooManyAbandoned.
func (s *Supervisor) Run(ctx context.Context, task Task, file string) Result {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := s.logger()
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so an abandoned task can still deliver and exit.
	done := make(chan outcome, 1)
	runner := s.runner()
	if inProcess(runner) && s.abandoned.Load() >= s.maxAbandoned() {
		if s.Fallback == nil {
			done <- outcome{err: fmt.Errorf("%w: %d still running", ErrTooManyAbandoned, s.abandoned.Load())}
			runner = nil
		} else {
			runner = s.Fallback
		}
	}
	// Whoever moves state away from taskRunning first owns the abandoned count.
	var state atomic.Int32
	if runner != nil {
		go func() {
			cats, err := runner.Run(runCtx, task, file)
			if !state.CompareAndSwap(taskRunning, taskFinished) {
				s.Metrics.setAbandoned(s.abandoned.Add(-1))
			}
			done <- outcome{cats: cats, err: err}
		}()
	}

	res := Result{Task: task.Name()}
	select {
	case o := <-done:
		if o.err != nil {
			res.Fault = classify(task.Name(), o.err)
		} else {
			res.Categories = o.cats
		}
	case <-runCtx.Done():
		res.Fault = &Fault{Task: task.Name(), Kind: KindTimeout, Err: fmt.Errorf("%w: after %v", fault.ErrTimeout, timeout)}
		if errors.Is(ctx.Err(), context.Canceled) {
			res.Fault.Kind = KindError
			res.Fault.Err = ctx.Err()
		}
		if runner != nil && inProcess(runner) && state.CompareAndSwap(taskRunning, taskAbandoned) {
			s.Metrics.setAbandoned(s.abandoned.Add(1))
		}
	}
	res.Elapsed = time.Since(start)

	outcomeLabel := "completed"
	if res.Fault != nil {
		outcomeLabel = string(res.Fault.Kind)
		logger.Warn("supervisor.Run", "task", task.Name(), "file", file, "stage", res.Fault.Kind, "error", res.Fault.Err)
	} else {
		logger.Debug("supervisor.Run", "task", task.Name(), "file", file, "stage", "completed", "elapsed", res.Elapsed)
	}
	s.Metrics.observe(task.Name(), outcomeLabel, res.Elapsed)
	return res
}

func classify(task string, err error) *Fault {
	var pe *PanicError
	switch {
	case errors.As(err, &pe):
		return &Fault{Task: task, Kind: KindPanic, Err: err}
	case errors.Is(err, fault.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return &Fault{Task: task, Kind: KindTimeout, Err: err}
	default:
		return &Fault{Task: task, Kind: KindError, Err: err}
	}
}

// PanicError carries a recovered panic value and the stack it was raised on.
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string { return fmt.Sprintf("panic: %v", p.Value) }

// Unwrap exposes runtime errors such as index out of range.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

// Runner executes one task invocation.
type Runner interface {
	Run(ctx context.Context, task Task, file string) (*schema.CategoryMap, error)
}

// InProcess runs the task in the calling process, converting panics into errors.
type InProcess struct{}

// Run implements Runner.
func (InProcess) Run(ctx context.Context, task Task, file string) (cats *schema.CategoryMap, err error) {
	defer func() {
		if v := recover(); v != nil {
			cats, err = nil, &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return task.Run(ctx, file)
}

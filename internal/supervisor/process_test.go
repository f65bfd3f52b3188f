package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/farcloser/primordium/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpreserve/flint/schema"
)

const helperEnv = "FLINT_SUPERVISOR_HELPER"

// TestHelperProcess is the child side of the process runner tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) == "" {
		t.Skip("helper process")
	}
	var task, file string
	args := os.Args
	for i := range args {
		if args[i] == "--task" && i+2 < len(args) {
			task, file = args[i+1], args[i+2]
		}
	}
	switch task {
	case "ok":
		_ = ServeWorker(context.Background(), TaskFunc(task, wellFormed), file, os.Stdout)
	case "hang":
		time.Sleep(time.Minute)
	case "garbage":
		fmt.Fprint(os.Stdout, "not json")
	case "crash":
		fmt.Fprint(os.Stderr, "stack overflow")
		os.Exit(2)
	}
	os.Exit(0)
}

func helperRunner() *ProcessRunner {
	return &ProcessRunner{
		Executable: os.Args[0],
		Args:       []string{"-test.run=^TestHelperProcess$", "--"},
		Env:        []string{helperEnv + "=1"},
		WaitDelay:  100 * time.Millisecond,
	}
}

func TestProcessRunner(t *testing.T) {
	s := &Supervisor{Timeout: 10 * time.Second, Runner: helperRunner()}
	res := s.Run(context.Background(), TaskFunc("ok", nil), "a.pdf")
	require.True(t, res.OK(), "%v", res.Fault)
	assert.Equal(t, []string{"well-formed"}, res.Mapping().Names())
}

func TestProcessRunnerFaults(t *testing.T) {
	tests := []struct {
		task    string
		timeout time.Duration
		kind    FaultKind
		want    error
	}{
		{"hang", 300 * time.Millisecond, KindTimeout, fault.ErrTimeout},
		{"garbage", 10 * time.Second, KindError, fault.ErrInvalidJSON},
		{"crash", 10 * time.Second, KindError, fault.ErrCommandFailure},
	}
	for _, tt := range tests {
		t.Run(tt.task, func(t *testing.T) {
			s := &Supervisor{Timeout: tt.timeout, Runner: helperRunner()}
			res := s.Run(context.Background(), TaskFunc(tt.task, nil), "a.pdf")
			require.False(t, res.OK())
			assert.Equal(t, tt.kind, res.Fault.Kind)
			assert.ErrorIs(t, res.Fault, tt.want)
			assertDegraded(t, tt.task, res.Mapping())
		})
	}
}

func TestEncodeDecodeMapping(t *testing.T) {
	n := 3
	in := schema.NewCategoryMap(schema.NewCategory("c", schema.FailedCheck("x", &n), schema.ErroneousCheck("y")))

	var buf bytes.Buffer
	require.NoError(t, EncodeMapping(&buf, in))
	out, err := DecodeMapping(&buf)
	require.NoError(t, err)

	cat, ok := out.Get("c")
	require.True(t, ok)
	x, _ := cat.Get("x")
	require.NotNil(t, x.ErrorCount())
	assert.Equal(t, 3, *x.ErrorCount())
	y, _ := cat.Get("y")
	assert.True(t, y.IsErroneous())
}

func TestServeWorkerPanic(t *testing.T) {
	var buf bytes.Buffer
	err := ServeWorker(context.Background(), TaskFunc("p", func(context.Context, string) (*schema.CategoryMap, error) {
		panic("boom")
	}), "a.pdf", &buf)
	var pe *PanicError
	assert.ErrorAs(t, err, &pe)
	assert.Zero(t, buf.Len())
}

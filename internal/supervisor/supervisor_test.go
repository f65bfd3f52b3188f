package supervisor

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/farcloser/primordium/fault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpreserve/flint/schema"
)

func wellFormed(context.Context, string) (*schema.CategoryMap, error) {
	return schema.NewCategoryMap(schema.NewCategory("well-formed", schema.PassedCheck("isValidHeader"))), nil
}

func assertDegraded(t *testing.T, name string, m *schema.CategoryMap) {
	t.Helper()
	require.Equal(t, 1, m.Len())
	cat, ok := m.Get(name)
	require.True(t, ok)
	require.Equal(t, 1, cat.Len())
	check, ok := cat.Get(name)
	require.True(t, ok)
	assert.Equal(t, schema.Fail, check.Outcome())
	assert.Nil(t, check.ErrorCount())
}

func TestRunCompleted(t *testing.T) {
	s := New(nil)
	res := s.Run(context.Background(), TaskFunc("wf", wellFormed), "a.pdf")

	assert.True(t, res.OK())
	assert.Equal(t, []string{"well-formed"}, res.Mapping().Names())
	assert.Same(t, res.Categories, res.Mapping())
}

func TestRunNilMapping(t *testing.T) {
	res := New(nil).Run(context.Background(), TaskFunc("empty", func(context.Context, string) (*schema.CategoryMap, error) {
		return nil, nil
	}), "a.pdf")
	assert.True(t, res.OK())
	assert.Equal(t, 0, res.Mapping().Len())
}

func TestRunTimeout(t *testing.T) {
	s := &Supervisor{Timeout: 50 * time.Millisecond}
	release := make(chan struct{})
	defer close(release)

	task := TaskFunc("slow", func(context.Context, string) (*schema.CategoryMap, error) {
		<-release // ignores cancellation
		return wellFormed(context.Background(), "")
	})

	start := time.Now()
	res := s.Run(context.Background(), task, "a.pdf")
	elapsed := time.Since(start)

	require.False(t, res.OK())
	assert.Equal(t, KindTimeout, res.Fault.Kind)
	assert.ErrorIs(t, res.Fault, fault.ErrTimeout)
	assert.Less(t, elapsed, time.Second)
	assertDegraded(t, "slow", res.Mapping())
}

func TestRunError(t *testing.T) {
	boom := errors.New("boom")
	res := New(nil).Run(context.Background(), TaskFunc("broken", func(context.Context, string) (*schema.CategoryMap, error) {
		return nil, boom
	}), "a.pdf")

	require.False(t, res.OK())
	assert.Equal(t, KindError, res.Fault.Kind)
	assert.ErrorIs(t, res.Fault, boom)
	assertDegraded(t, "broken", res.Mapping())
}

func TestRunPanic(t *testing.T) {
	tests := []struct {
		name string
		fn   func(context.Context, string) (*schema.CategoryMap, error)
	}{
		{"value", func(context.Context, string) (*schema.CategoryMap, error) { panic("bad input") }},
		{"runtime", func(context.Context, string) (*schema.CategoryMap, error) {
			var xs []int
			_ = xs[3]
			return nil, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(nil).Run(context.Background(), TaskFunc(tt.name, tt.fn), "a.pdf")
			require.False(t, res.OK())
			assert.Equal(t, KindPanic, res.Fault.Kind)
			var pe *PanicError
			assert.ErrorAs(t, res.Fault, &pe)
			assert.NotEmpty(t, pe.Stack)
			assertDegraded(t, tt.name, res.Mapping())
		})
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := New(nil).Run(ctx, TaskFunc("waits", func(ctx context.Context, _ string) (*schema.CategoryMap, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil, nil
	}), "a.pdf")

	require.False(t, res.OK())
	assert.Equal(t, KindError, res.Fault.Kind)
	assertDegraded(t, "waits", res.Mapping())
}

type stubRunner struct {
	cats *schema.CategoryMap
	err  error
}

func (s stubRunner) Run(context.Context, Task, string) (*schema.CategoryMap, error) { return s.cats, s.err }

func TestRunnerOverride(t *testing.T) {
	s := &Supervisor{Timeout: time.Second, Isolation: schema.ProcessIsolation, Runner: stubRunner{err: fault.ErrCommandFailure}}
	res := s.Run(context.Background(), TaskFunc("x", wellFormed), "a.pdf")
	require.False(t, res.OK())
	assert.ErrorIs(t, res.Fault, fault.ErrCommandFailure)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := &Supervisor{Timeout: time.Second, Metrics: m}

	s.Run(context.Background(), TaskFunc("wf", wellFormed), "a.pdf")
	s.Run(context.Background(), TaskFunc("wf", wellFormed), "b.pdf")
	s.Run(context.Background(), TaskFunc("wf", func(context.Context, string) (*schema.CategoryMap, error) {
		return nil, errors.New("x")
	}), "c.pdf")

	assert.InDelta(t, 2, testutil.ToFloat64(m.runs.WithLabelValues("wf", "completed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runs.WithLabelValues("wf", "error")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

// hangingTask ignores cancellation until release is closed.
func hangingTask(release <-chan struct{}) Task {
	return TaskFunc("hang", func(context.Context, string) (*schema.CategoryMap, error) {
		<-release
		return wellFormed(context.Background(), "")
	})
}

func TestRunBoundsAbandonedTasks(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	s := New(nil)
	s.Timeout = 20 * time.Millisecond
	s.Metrics = m
	release := make(chan struct{})

	before := runtime.NumGoroutine()
	var refused int
	for range 50 {
		res := s.Run(context.Background(), hangingTask(release), "a.pdf")
		require.False(t, res.OK())
		if errors.Is(res.Fault, ErrTooManyAbandoned) {
			refused++
			assert.Equal(t, KindError, res.Fault.Kind)
			assertDegraded(t, "hang", res.Mapping())
		}
	}
	after := runtime.NumGoroutine()

	assert.Equal(t, 50-DefaultMaxAbandoned, refused)
	assert.Equal(t, DefaultMaxAbandoned, s.Abandoned())
	assert.LessOrEqual(t, after-before, DefaultMaxAbandoned+2)
	assert.InDelta(t, DefaultMaxAbandoned, testutil.ToFloat64(m.abandoned), 0)

	close(release)
	assert.Eventually(t, func() bool { return s.Abandoned() == 0 }, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 0, testutil.ToFloat64(m.abandoned), 0)

	res := s.Run(context.Background(), TaskFunc("wf", wellFormed), "a.pdf")
	assert.True(t, res.OK())
}

func TestRunFallbackAfterAbandoned(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	fallback := stubRunner{cats: schema.NewCategoryMap(schema.NewCategory("fallback", schema.PassedCheck("ran")))}
	s := &Supervisor{Timeout: 20 * time.Millisecond, MaxAbandoned: 1, Fallback: fallback}

	first := s.Run(context.Background(), hangingTask(release), "a.pdf")
	require.False(t, first.OK())
	assert.Equal(t, KindTimeout, first.Fault.Kind)
	assert.Equal(t, 1, s.Abandoned())

	second := s.Run(context.Background(), hangingTask(release), "a.pdf")
	require.True(t, second.OK(), "%v", second.Fault)
	assert.Equal(t, []string{"fallback"}, second.Mapping().Names())
}

func TestRunCompletedTaskIsNotAbandoned(t *testing.T) {
	s := New(nil)
	for range 20 {
		require.True(t, s.Run(context.Background(), TaskFunc("wf", wellFormed), "a.pdf").OK())
	}
	assert.Equal(t, 0, s.Abandoned())
}

func TestDegradedMapping(t *testing.T) {
	assertDegraded(t, "policy-validation", DegradedMapping("policy-validation"))
}

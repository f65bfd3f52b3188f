package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/internal/outwriter"
	"github.com/openpreserve/flint/internal/policy"
	"github.com/openpreserve/flint/internal/supervisor"
	"github.com/openpreserve/flint/schema"
)

// ExecuteCheck checks cfg.InputPath, writes the report and records the run to
// the history store when one is configured. With FailOnError the process exits
// non-zero when any file did not pass.
func ExecuteCheck(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	start := time.Now()

	reg := prometheus.NewRegistry()
	flint, err := NewFlint(ctx, cfg, Options{
		Cache:   newPolicyCache(mgr),
		Metrics: supervisor.NewMetrics(reg),
	})
	if err != nil {
		return err
	}

	results, err := runCheckCore(ctx, cfg, flint, historyStore(mgr))
	if err != nil {
		return err
	}
	duration := time.Since(start)

	if err := outwriter.NewOutWriter().WriteResults(results, cfg, duration); err != nil {
		return err
	}
	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, reg); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}

	summary := schema.Summarize(results)
	if !shouldSuppressHeader(ctx) {
		printSummary(summary, duration)
	}
	if cfg.FailOnError && summary.Passed < summary.Total {
		_, _ = fmt.Fprintf(os.Stderr, "%d file(s) did not pass\n", summary.Total-summary.Passed)
		os.Exit(1)
	}
	return nil
}

// CheckPath checks cfg.InputPath and records the run without writing a report.
func CheckPath(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) ([]*schema.CheckResult, error) {
	flint, err := NewFlint(ctx, cfg, Options{Cache: newPolicyCache(mgr)})
	if err != nil {
		return nil, err
	}
	return runCheckCore(ctx, cfg, flint, historyStore(mgr))
}

// runCheckCore performs the check and the history bookkeeping around it.
func runCheckCore(ctx context.Context, cfg *contract.Config, flint *Flint, history contract.HistoryStore) ([]*schema.CheckResult, error) {
	// --- 0. Begin Run Tracking (if configured) ---
	var runID string
	if history != nil {
		var err error
		runID, err = history.BeginRun(time.Now(), cfg.ConfigParams())
		if err != nil {
			contract.LogWarn("Run tracking initialization failed", err)
		} else {
			ctx = withRunID(ctx, runID)
		}
	}

	// --- 1. Check every file ---
	batches, err := flint.CheckMany(ctx, cfg.InputPath)
	if err != nil {
		return nil, err
	}

	// --- 2. Record per-file results ---
	if id, ok := getRunID(ctx); ok {
		now := time.Now()
		for _, batch := range batches {
			for _, r := range batch {
				recordResult(history, id, r, now)
			}
		}
	}

	results := schema.Flatten(batches)

	// --- 3. End Run Tracking ---
	if history != nil && runID != "" {
		if err := history.EndRun(runID, time.Now(), len(results)); err != nil {
			contract.LogWarn("Failed to finalize run tracking", err)
		}
	}
	return results, nil
}

// recordResult stores one checked file. Failures are reported and skipped.
func recordResult(history contract.HistoryStore, runID string, r *schema.CheckResult, at time.Time) {
	if err := history.RecordResult(runID, r, at); err != nil {
		contract.LogWarn(fmt.Sprintf("Failed to record result for %s", r.Filename), err)
	}
}

func newPolicyCache(mgr contract.CacheManager) *policy.Cache {
	if mgr == nil {
		return policy.NewCache(nil, slog.Default())
	}
	return policy.NewCache(mgr.GetPolicyStore(), slog.Default())
}

func historyStore(mgr contract.CacheManager) contract.HistoryStore {
	if mgr == nil {
		return nil
	}
	return mgr.GetHistoryStore()
}

func printSummary(s schema.Summary, duration time.Duration) {
	_, _ = fmt.Fprintf(os.Stderr, "Checked %d result(s) in %s: %s passed, %s failed, %s error\n",
		s.Total, duration.Round(time.Millisecond),
		contract.PassedColor.Sprint(s.Passed),
		contract.FailedColor.Sprint(s.Failed),
		contract.ErrorColor.Sprint(s.Error))
}

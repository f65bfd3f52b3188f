package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/internal/outwriter"
	"github.com/openpreserve/flint/schema"
)

// Watcher checks files under a directory as they are created or modified.
// Events are debounced and an optional cron schedule triggers full rescans.
// Batches are handed to emit one at a time.
type Watcher struct {
	flint  *Flint
	cfg    *contract.Config
	emit   func(results []*schema.CheckResult)
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool
	checks  sync.WaitGroup

	// emitMu serializes emit between debounce flushes and cron rescans.
	emitMu sync.Mutex
}

// NewWatcher creates a watcher that hands every batch of results to emit.
func NewWatcher(flint *Flint, cfg *contract.Config, emit func([]*schema.CheckResult)) *Watcher {
	return &Watcher{
		flint:   flint,
		cfg:     cfg,
		emit:    emit,
		logger:  flint.logger,
		pending: make(map[string]struct{}),
	}
}

// Run watches cfg.InputPath until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer func() { _ = fsw.Close() }()

	if err := w.addDirectory(fsw, w.cfg.InputPath); err != nil {
		return fmt.Errorf("failed to watch path: %w", err)
	}

	if w.cfg.Schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(w.cfg.Schedule, func() { w.rescan(ctx) }); err != nil {
			return fmt.Errorf("invalid cron schedule %q: %w", w.cfg.Schedule, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()
	}

	w.logger.Info("core.Watch", "path", w.cfg.InputPath, "debounce", w.cfg.Debounce, "schedule", w.cfg.Schedule)
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			w.handle(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("core.Watch", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addDirectory(fsw, event.Name); err != nil {
				w.logger.Error("core.Watch", "path", event.Name, "error", err)
			}
		}
		return
	}
	if w.ignored(event.Name) {
		return
	}
	w.logger.Debug("core.Watch", "path", event.Name, "op", event.Op.String())
	w.enqueue(ctx, event.Name)
}

// addDirectory adds a directory and all subdirectories to the watcher.
func (w *Watcher) addDirectory(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path+"/") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.cfg.InputPath, path)
	if err != nil {
		rel = path
	}
	return contract.ShouldIgnore(filepath.ToSlash(rel), w.cfg.Excludes)
}

// enqueue adds a file to the pending set and restarts the quiet period.
func (w *Watcher) enqueue(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.cfg.Debounce, func() { w.flush(ctx) })
}

// flush checks every pending file.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	files := make([]string, 0, len(w.pending))
	for f := range w.pending {
		files = append(files, f)
	}
	clear(w.pending)
	w.timer = nil
	w.checks.Add(1)
	w.mu.Unlock()
	defer w.checks.Done()

	if len(files) == 0 || ctx.Err() != nil {
		return
	}
	slices.Sort(files)
	w.deliver(schema.Flatten(w.flint.checkFiles(ctx, files)))
}

// rescan checks the whole input directory.
func (w *Watcher) rescan(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.checks.Add(1)
	w.mu.Unlock()
	defer w.checks.Done()

	batches, err := w.flint.CheckMany(ctx, w.cfg.InputPath)
	if err != nil {
		w.logger.Error("core.Watch", "stage", "rescan", "error", err)
		return
	}
	w.deliver(schema.Flatten(batches))
}

func (w *Watcher) deliver(results []*schema.CheckResult) {
	w.emitMu.Lock()
	defer w.emitMu.Unlock()
	w.emit(results)
}

// stop cancels a pending flush and waits for running checks.
func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	w.checks.Wait()
}

// ExecuteWatch runs an initial check of cfg.InputPath, then keeps checking
// changed files until ctx is done. Each batch is written with the configured
// output mode.
func ExecuteWatch(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) error {
	flint, err := NewFlint(ctx, cfg, Options{Cache: newPolicyCache(mgr)})
	if err != nil {
		return err
	}
	ow := outwriter.NewOutWriter()
	history := historyStore(mgr)
	quiet := withSuppressHeader(ctx)

	emit := func(results []*schema.CheckResult) {
		if history != nil {
			recordBatch(history, cfg, results)
		}
		if err := ow.WriteResults(results, cfg, 0); err != nil {
			contract.LogWarn("Failed to write results", err)
		}
	}

	start := time.Now()
	results, err := runCheckCore(quiet, cfg, flint, history)
	if err != nil {
		return err
	}
	if err := ow.WriteResults(results, cfg, time.Since(start)); err != nil {
		return err
	}

	return NewWatcher(flint, cfg, emit).Run(ctx)
}

// recordBatch records watch results as a run of their own.
func recordBatch(history contract.HistoryStore, cfg *contract.Config, results []*schema.CheckResult) {
	runID, err := history.BeginRun(time.Now(), cfg.ConfigParams())
	if err != nil {
		contract.LogWarn("Run tracking initialization failed", err)
		return
	}
	now := time.Now()
	for _, r := range results {
		recordResult(history, runID, r, now)
	}
	if err := history.EndRun(runID, time.Now(), len(results)); err != nil {
		contract.LogWarn("Failed to finalize run tracking", err)
	}
}

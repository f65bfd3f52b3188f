// Package core has core logic for checking files against every registered format.
package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"

	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/internal/formats"
	"github.com/openpreserve/flint/internal/policy"
	"github.com/openpreserve/flint/internal/registry"
	"github.com/openpreserve/flint/internal/supervisor"
	"github.com/openpreserve/flint/schema"
)

// Flint runs every enabled format against input files.
type Flint struct {
	cfg     *contract.Config
	formats []formats.Validator
	filters map[string]policy.PatternFilter
	logger  *slog.Logger
}

// Options are the collaborators of a Flint instance. Every field is optional.
type Options struct {
	Registry *registry.Registry
	// PolicyFilters override the filter files of PolicyDir, keyed by format name.
	PolicyFilters map[string][]string
	Cache         *policy.Cache
	Metrics       *supervisor.Metrics
	Logger        *slog.Logger
	// Runner replaces the runner selected by the configured isolation.
	Runner func(format string, filter policy.PatternFilter) supervisor.Runner
}

// NewFlint creates one validator per enabled format, each with its own
// supervisor and pattern filter.
func NewFlint(_ context.Context, cfg *contract.Config, opts Options) (*Flint, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	inline := opts.PolicyFilters
	if inline == nil {
		inline = cfg.PolicyFilters
	}

	f := &Flint{cfg: cfg, filters: make(map[string]policy.PatternFilter), logger: logger}
	for _, name := range reg.Names() {
		if !cfg.WantsFormat(name) {
			continue
		}
		filter, err := ResolveFilter(cfg.PolicyDir, inline, name)
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
		f.filters[name] = filter

		sup := &supervisor.Supervisor{
			Timeout:   cfg.Timeout,
			Isolation: cfg.Isolation,
			Metrics:   opts.Metrics,
			Logger:    logger,
		}
		switch {
		case opts.Runner != nil:
			sup.Runner = opts.Runner(name, filter)
		case cfg.Isolation == schema.ProcessIsolation:
			sup.Runner = NewWorkerRunner(name, filter)
		default:
			// Hung goroutines are never reclaimed, so past the limit tasks move to workers.
			sup.Fallback = NewWorkerRunner(name, filter)
		}

		v, err := reg.New(name, formats.Options{Supervisor: sup, Filter: filter, Cache: opts.Cache, Logger: logger})
		if err != nil {
			return nil, err
		}
		f.formats = append(f.formats, v)
	}
	if len(f.formats) == 0 {
		return nil, fmt.Errorf("%w: none of %v", registry.ErrUnknownFormat, cfg.Formats)
	}
	return f, nil
}

// Formats returns the enabled validators in registration order.
func (f *Flint) Formats() []formats.Validator {
	return append([]formats.Validator(nil), f.formats...)
}

// Filter returns the pattern filter a format was created with.
func (f *Flint) Filter(format string) policy.PatternFilter {
	if filter, ok := f.filters[schema.NormalizeFormat(format)]; ok {
		return filter
	}
	return policy.NoFilter
}

// Check runs every format that accepts the file and returns one result per format.
// A file no format accepts yields an empty slice.
func (f *Flint) Check(ctx context.Context, file string) []*schema.CheckResult {
	mime := detectMimeType(file)
	results := []*schema.CheckResult{}
	for _, v := range f.formats {
		if !v.CanCheck(file, mime) {
			continue
		}
		results = append(results, v.ValidationResult(ctx, file))
	}
	if len(results) == 0 {
		f.logger.Error("core.Check", "file", file, "mimetype", mime, "error", "no format can check this file")
	}
	return results
}

func detectMimeType(file string) string {
	mt, err := mimetype.DetectFile(file)
	if err != nil {
		return ""
	}
	return mt.String()
}

// ListFiles walks root in lexical order and returns the regular files that are
// not excluded. A file root is returned as is.
func ListFiles(root string, excludes []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if path != root && contract.ShouldIgnore(rel+"/", excludes) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || contract.ShouldIgnore(rel, excludes) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// CheckMany checks every file under root using a pool of cfg.Workers workers.
// Batches are returned in walk order, one per file.
func (f *Flint) CheckMany(ctx context.Context, root string) ([][]*schema.CheckResult, error) {
	files, err := ListFiles(root, f.cfg.Excludes)
	if err != nil {
		return nil, err
	}
	return f.checkFiles(ctx, files), nil
}

type indexedBatch struct {
	index   int
	results []*schema.CheckResult
}

// checkFiles processes all files in parallel using a worker pool and keeps
// the input order in the returned slice.
func (f *Flint) checkFiles(ctx context.Context, files []string) [][]*schema.CheckResult {
	workers := max(f.cfg.Workers, 1)

	fileCh := make(chan int, len(files))
	resultCh := make(chan indexedBatch, len(files))
	var wg sync.WaitGroup

	for range workers {
		wg.Go(func() {
			for i := range fileCh {
				if ctx.Err() != nil {
					resultCh <- indexedBatch{index: i}
					continue
				}
				resultCh <- indexedBatch{index: i, results: f.Check(ctx, files[i])}
			}
		})
	}

	for i := range files {
		fileCh <- i
	}
	close(fileCh)

	wg.Wait()
	close(resultCh)

	batches := make([][]*schema.CheckResult, len(files))
	for b := range resultCh {
		batches[b.index] = b.results
	}
	return batches
}

// ResolveFilter returns the pattern filter of a format. Inline filters win over
// a <FORMAT>-policy.properties file in dir. Without either, nothing is filtered.
func ResolveFilter(dir string, inline map[string][]string, format string) (policy.PatternFilter, error) {
	name := schema.NormalizeFormat(format)
	for k, patterns := range inline {
		if schema.NormalizeFormat(k) == name {
			return policy.NewPatternFilter(patterns...), nil
		}
	}
	if dir == "" {
		return policy.NoFilter, nil
	}
	filter, _, err := policy.LoadPatternFilterFile(dir, name)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return policy.NoFilter, err
	}
	return filter, nil
}

// Package formats defines the validator contract shared by every file format
// and the plumbing that runs a format's tasks under the supervisor.
package formats

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/openpreserve/flint/internal/policy"
	"github.com/openpreserve/flint/internal/supervisor"
	"github.com/openpreserve/flint/schema"
)

// Version is reported by every built-in format.
const Version = "0.1.0"

// Validator checks files of one format.
type Validator interface {
	Name() string
	Version() string
	CanCheck(file, mimetype string) bool
	ValidationResult(ctx context.Context, file string) *schema.CheckResult
	// FixedCategoryNames are the categories that do not come from the policy.
	FixedCategoryNames() []string
	// AllCategoryNames are the fixed categories, the policy error indicator and
	// the retained policy patterns, used to pre-seed results.
	AllCategoryNames() ([]string, error)
	// FixedCategories maps each fixed category to its check names.
	FixedCategories() *policy.PolicyMap
	// Policy returns the embedded policy, nil when the format has none.
	Policy() *PolicyAware
	// Tasks are run in order for every file.
	Tasks() []supervisor.Task
}

// Options are passed explicitly to every format instance.
type Options struct {
	Supervisor *supervisor.Supervisor
	Filter     policy.PatternFilter
	Cache      *policy.Cache
	Logger     *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}


// Descriptor is the static identity of a format.
type Descriptor struct {
	Name       string
	MimeTypes  []string
	Extensions []string
	// Fixed maps fixed category -> category -> check names.
	Fixed *policy.PolicyMap
	// PolicyCategory names the task that runs the policy validation.
	PolicyCategory string
	// Schema is the embedded schematron policy.
	Schema []byte
}

// Base implements everything of Validator except the format's tasks.
type Base struct {
	desc   Descriptor
	opts   Options
	policy *PolicyAware
}

// NewBase creates the shared part of a format.
func NewBase(desc Descriptor, opts Options) Base {
	if opts.Supervisor == nil {
		opts.Supervisor = supervisor.New(opts.Logger)
	}
	b := Base{desc: desc, opts: opts}
	if len(desc.Schema) > 0 {
		b.policy = &PolicyAware{Schema: desc.Schema, Filter: opts.Filter, Cache: opts.Cache}
	}
	return b
}

// Name implements Validator.
func (b *Base) Name() string { return b.desc.Name }

// Version implements Validator.
func (b *Base) Version() string { return Version }

// Options returns the options the format was created with.
func (b *Base) Options() Options { return b.opts }

// Logger returns the format's logger.
func (b *Base) Logger() *slog.Logger { return b.opts.logger() }

// CanCheck accepts a file by mimetype or by extension.
func (b *Base) CanCheck(file, mimetype string) bool {
	if mimetype != "" {
		mt := strings.ToLower(strings.TrimSpace(mimetype))
		if i := strings.IndexByte(mt, ';'); i >= 0 {
			mt = strings.TrimSpace(mt[:i])
		}
		if slices.Contains(b.desc.MimeTypes, mt) {
			return true
		}
	}
	return HasExtension(file, b.desc.Extensions...)
}

// FixedCategoryNames implements Validator.
func (b *Base) FixedCategoryNames() []string { return b.desc.Fixed.Patterns() }

// FixedCategories implements Validator.
func (b *Base) FixedCategories() *policy.PolicyMap { return b.desc.Fixed }

// Policy implements Validator.
func (b *Base) Policy() *PolicyAware { return b.policy }

// AllCategoryNames implements Validator.
func (b *Base) AllCategoryNames() ([]string, error) {
	names := b.FixedCategoryNames()
	if b.desc.PolicyCategory != "" {
		names = append(names, b.desc.PolicyCategory)
	}
	if b.policy == nil {
		return names, nil
	}
	patterns, err := b.policy.PatternNames()
	if err != nil {
		return names, err
	}
	return append(names, patterns...), nil
}

// FixedTask wraps the check of a fixed category. The task yields no category
// when the pattern filter excludes it.
func (b *Base) FixedTask(category string, fn func(ctx context.Context, file string) (*schema.Category, error)) supervisor.Task {
	return supervisor.TaskFunc(category, func(ctx context.Context, file string) (*schema.CategoryMap, error) {
		if !b.opts.Filter.Allows(category) {
			b.Logger().Debug("formats.FixedTask", "category", category, "stage", "filtered")
			return schema.NewCategoryMap(), nil
		}
		c, err := fn(ctx, file)
		if err != nil {
			return nil, err
		}
		return schema.NewCategoryMap(c), nil
	})
}

// PolicyTask builds the policy validation task from a per-file report source.
func (b *Base) PolicyTask(source func(ctx context.Context, file string) (policy.ReportSource, error)) supervisor.Task {
	return b.policy.Task(b.desc.PolicyCategory, source)
}

// HasExtension reports whether file ends with one of the extensions, ignoring case.
func HasExtension(file string, extensions ...string) bool {
	ext := strings.ToLower(filepath.Ext(file))
	if ext == "" {
		return false
	}
	for _, e := range extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// Run pre-seeds a result with every expected category, runs the tasks in order
// through the supervisor and records the elapsed time.
func Run(ctx context.Context, v Validator, sup *supervisor.Supervisor, file string) *schema.CheckResult {
	logger := slog.Default()
	if b, ok := v.(interface{ Logger() *slog.Logger }); ok {
		logger = b.Logger()
	}
	names, err := v.AllCategoryNames()
	if err != nil {
		logger.Error("formats.Run", "format", v.Name(), "stage", "category names", "error", err)
	}

	result := schema.NewCheckResult(filepath.Base(file), v.Name(), v.Version(), names...)
	start := time.Now()
	for _, task := range v.Tasks() {
		res := sup.Run(ctx, task, file)
		result.AddAll(res.Mapping())
	}
	result.SetTimeTaken(time.Since(start))
	logger.Info("formats.Run", "format", v.Name(), "file", file, "result", result.Result(), "elapsed", result.TimeTaken)
	return result
}

// Validate is Run using the supervisor from the options.
func (b *Base) Validate(ctx context.Context, v Validator, file string) *schema.CheckResult {
	return Run(ctx, v, b.opts.Supervisor, file)
}

// FindTask returns the task of v with the given name.
func FindTask(v Validator, name string) (supervisor.Task, bool) {
	for _, t := range v.Tasks() {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}

// PropertiesMap merges the fixed categories with the unfiltered policy, in
// that order. It is the content of a generated pattern filter file.
func PropertiesMap(v Validator) (*policy.PolicyMap, error) {
	out := policy.NewPolicyMap()
	out.Merge(v.FixedCategories())
	if p := v.Policy(); p != nil {
		pm, err := policy.CompilePolicyMap(bytes.NewReader(p.Schema), policy.NoFilter)
		if err != nil {
			return nil, err
		}
		out.Merge(pm)
	}
	return out, nil
}

package formats

import (
	"context"

	"github.com/openpreserve/flint/internal/policy"
	"github.com/openpreserve/flint/internal/supervisor"
	"github.com/openpreserve/flint/schema"
)

// PolicyAware holds a format's schematron policy and the pattern filter it is
// evaluated with.
type PolicyAware struct {
	Schema []byte
	Filter policy.PatternFilter
	Cache  *policy.Cache
}

// PolicyMap returns the compiled, filtered policy.
func (p *PolicyAware) PolicyMap() (*policy.PolicyMap, error) {
	return p.Cache.PolicyMap(p.Schema, p.Filter)
}

// PatternNames returns the retained pattern names in document order.
func (p *PolicyAware) PatternNames() ([]string, error) {
	pm, err := p.PolicyMap()
	if err != nil {
		return nil, err
	}
	return pm.Patterns(), nil
}

// Validate reconciles one report with the policy.
func (p *PolicyAware) Validate(ctx context.Context, report policy.ReportSource) (*schema.CategoryMap, error) {
	return policy.PolicyValidationResult(ctx, report, p.Schema, p.Filter, p.Cache)
}

// Task builds a named task that obtains a report for the file and validates it.
// Errors from the source or the policy surface as a fault of the task.
func (p *PolicyAware) Task(name string, source func(ctx context.Context, file string) (policy.ReportSource, error)) supervisor.Task {
	return supervisor.TaskFunc(name, func(ctx context.Context, file string) (*schema.CategoryMap, error) {
		report, err := source(ctx, file)
		if err != nil {
			return nil, err
		}
		return p.Validate(ctx, report)
	})
}

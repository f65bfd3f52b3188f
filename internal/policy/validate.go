package policy

import (
	"context"
	"fmt"

	"github.com/openpreserve/flint/schema"
)

// PolicyValidationResult reconciles a failure report with the compiled policy.
// Every retained pattern yields one category holding one check per assert test:
// failed with the recorded occurrence count, or passed with no count.
func PolicyValidationResult(ctx context.Context, report ReportSource, schemaBytes []byte, filter PatternFilter, cache *Cache) (*schema.CategoryMap, error) {
	pm, err := cache.PolicyMap(schemaBytes, filter)
	if err != nil {
		return nil, err
	}
	failures, err := report.FailureReport(ctx, schemaBytes, filter)
	if err != nil {
		return nil, fmt.Errorf("policy report: %w", err)
	}

	out := schema.NewCategoryMap()
	for _, p := range pm.Patterns() {
		cat := schema.NewCategory(p)
		for _, rule := range pm.Rules(p) {
			for _, test := range pm.Asserts(p, rule) {
				if n, failed := failures.Count(p, test); failed {
					cat.Add(schema.FailedCheck(test, &n))
				} else {
					cat.Add(schema.PassedCheck(test))
				}
			}
		}
		out.Put(cat)
	}
	return out, nil
}

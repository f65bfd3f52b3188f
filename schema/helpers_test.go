package schema_test

import (
	"testing"

	"github.com/openpreserve/flint/schema"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeFormat(t *testing.T) {
	assert.Equal(t, "PDF", schema.NormalizeFormat(" pdf "))
	assert.Equal(t, "EPUB", schema.NormalizeFormat("EPUB"))
}

func TestSameNames(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{"equal", []string{"a", "b"}, []string{"a", "b"}, true},
		{"reordered", []string{"b", "a"}, []string{"a", "b"}, true},
		{"different length", []string{"a"}, []string{"a", "b"}, false},
		{"different names", []string{"a", "c"}, []string{"a", "b"}, false},
		{"both empty", nil, []string{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, schema.SameNames(tt.a, tt.b))
		})
	}
}

func TestSummarize(t *testing.T) {
	passed := schema.NewCheckResult("a", "PDF", "0.1.0")
	passed.Add(schema.NewCategory("c", schema.PassedCheck("x")))
	failed := schema.NewCheckResult("b", "PDF", "0.1.0")
	failed.Add(schema.NewCategory("c", schema.FailedCheck("x", nil)))
	erroneous := schema.NewCheckResult("c", "PDF", "0.1.0", "c")

	s := schema.Summarize(schema.Flatten([][]*schema.CheckResult{{passed, nil}, {failed, erroneous}}))
	assert.Equal(t, schema.Summary{Total: 3, Passed: 1, Failed: 1, Error: 1}, s)
}

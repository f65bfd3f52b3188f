package schema

import (
	"slices"
	"strings"
)

// NormalizeFormat returns the canonical upper-case format name ("pdf" -> "PDF").
func NormalizeFormat(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// SameNames compares two name slices, considering them equal if they contain the
// same names regardless of order.
func SameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	aSorted := slices.Clone(a)
	slices.Sort(aSorted)
	bSorted := slices.Clone(b)
	slices.Sort(bSorted)
	return slices.Equal(aSorted, bSorted)
}

// Summary counts file-level results of a batch.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Error  int `json:"error"`
}

// Summarize tallies the file-level result of every non-nil CheckResult.
func Summarize(results []*CheckResult) Summary {
	var s Summary
	for _, r := range results {
		if r == nil {
			continue
		}
		s.Total++
		switch r.Result() {
		case PassedResult:
			s.Passed++
		case FailedResult:
			s.Failed++
		default:
			s.Error++
		}
	}
	return s
}

// Flatten concatenates per-file batches in order.
func Flatten(batches [][]*CheckResult) []*CheckResult {
	var out []*CheckResult
	for _, b := range batches {
		out = append(out, b...)
	}
	return out
}

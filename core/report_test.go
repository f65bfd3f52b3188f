package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openpreserve/flint/schema"
)

func TestLoadReport(t *testing.T) {
	r := schema.NewCheckResult("a.pdf", "PDF", "0.1.0", "well-formed", "policy-validation")
	r.Add(schema.NewCategory("well-formed", schema.PassedCheck("isValidHeader")))

	path := filepath.Join(t.TempDir(), "results.xml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, schema.WriteReport(f, []*schema.CheckResult{r}))
	require.NoError(t, f.Close())

	results, err := LoadReport(path)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.pdf", results[0].Filename)
	assert.Equal(t, schema.PassedResult, results[0].Result())
}

func TestLoadReportErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadReport(filepath.Join(dir, "missing.xml"))
	assert.Error(t, err)

	bad := writeFile(t, filepath.Join(dir, "bad.xml"), "<flint><checkedFile")
	_, err = LoadReport(bad)
	assert.ErrorContains(t, err, "bad.xml")
}

//go:build basic

package integration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlintVersion(t *testing.T) {
	out, err := runFlint(t, t.TempDir(), nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "flint CLI")
}

func TestFlintPolicyCommands(t *testing.T) {
	dir := t.TempDir()

	out, err := runFlint(t, dir, nil, "policy", "patterns", "pdf")
	require.NoError(t, err)
	assert.Contains(t, out, "No encryption")

	_, err = runFlint(t, dir, nil, "policy", "create", "epub", "-o", "policies")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "policies", "EPUB-policy.properties"))

	_, err = runFlint(t, dir, nil, "policy", "patterns", "docx")
	assert.Error(t, err)
}

func TestFlintCheckWithSQLiteHistory(t *testing.T) {
	dir := sampleInput(t)
	env := []string{"FLINT_HISTORY_BACKEND=sqlite"}

	_, err := runFlint(t, dir, env, "check", "input", "-o", "results.xml", "--isolation", "process")
	require.NoError(t, err)

	report, err := os.ReadFile(filepath.Join(dir, "results.xml"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(report), "<?xml"))
	assert.Contains(t, string(report), "broken.pdf")
	assert.NotContains(t, string(report), "notes.txt")

	out, err := runFlint(t, dir, nil, "report", "results.xml")
	require.NoError(t, err)
	assert.Contains(t, out, "broken.pdf")

	out, err = runFlint(t, dir, env, "history", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Total Runs: 1")

	_, err = runFlint(t, dir, env, "history", "export", "--output-file", "hist")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "hist.runs.parquet"))
	assert.FileExists(t, filepath.Join(dir, "hist.file_results.parquet"))

	out, err = runFlint(t, dir, nil, "cache", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache Backend: sqlite")

	_, err = runFlint(t, dir, env, "history", "clear")
	require.NoError(t, err)
	_, err = runFlint(t, dir, nil, "cache", "clear")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(dir, ".flint_cache.db"))
}

func TestFlintFailOnError(t *testing.T) {
	dir := sampleInput(t)
	_, err := runFlint(t, dir, nil, "check", "input", "--output", "text", "--fail-on-error", "--cache-backend", "none")
	assert.Error(t, err, "a broken PDF does not pass")
}

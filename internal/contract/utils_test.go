package contract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openpreserve/flint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetColorLabel(t *testing.T) {
	tests := []struct {
		name   string
		status schema.ResultStatus
	}{
		{"passed", schema.PassedResult},
		{"failed", schema.FailedResult},
		{"error", schema.ErrorResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, GetColorLabel(tt.status), string(tt.status))
		})
	}
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "out.xml")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})

	t.Run("directory resolves to results.xml", func(t *testing.T) {
		dir := t.TempDir()

		file, err := SelectOutputFile(dir)
		require.NoError(t, err)
		_ = file.Close()

		assert.FileExists(t, filepath.Join(dir, DefaultReportName))
	})
}

func TestResolveOutputPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, "", ResolveOutputPath(""))
	assert.Equal(t, filepath.Join(dir, "results.xml"), ResolveOutputPath(dir))
	assert.Equal(t, filepath.Join(dir, "x.xml"), ResolveOutputPath(filepath.Join(dir, "x.xml")))
}

func TestShouldIgnore(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		excludes   []string
		wantIgnore bool
	}{
		{"empty excludes", "books/a.epub", []string{}, false},
		{"prefix match", "tmp/a.pdf", []string{"tmp/"}, true},
		{"nested dir match", "books/tmp/a.pdf", []string{"tmp/"}, true},
		{"suffix match", "books/a.pdf.part", []string{".part"}, true},
		{"glob match basename", "books/a.crdownload", []string{"*.crdownload"}, true},
		{"substring match", "books/.DS_Store", []string{".DS_Store"}, true},
		{"no match", "books/a.mobi", []string{"tmp/", ".part"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantIgnore, ShouldIgnore(tt.path, tt.excludes))
		})
	}
}

func TestGetDBFilePath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	for _, path := range []string{GetDBFilePath(), GetHistoryDBFilePath()} {
		assert.True(t, strings.HasPrefix(path, homeDir), "path %s should start with home dir %s", path, homeDir)
	}
	assert.Contains(t, GetDBFilePath(), ".flint_cache.db")
	assert.Contains(t, GetHistoryDBFilePath(), ".flint_history.db")
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "short.pdf", TruncatePath("short.pdf", 20))
	assert.Equal(t, "...ng/name.pdf", TruncatePath("a/very/long/name.pdf", 14))
	assert.Equal(t, "abcdef", TruncatePath("abcdef", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, in := range []string{"yes", "TRUE", "1", " true "} {
		got, err := ParseBoolString(in)
		require.NoError(t, err)
		assert.True(t, got, in)
	}
	for _, in := range []string{"no", "False", "0"} {
		got, err := ParseBoolString(in)
		require.NoError(t, err)
		assert.False(t, got, in)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pq "github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/internal/parquet"
	"github.com/openpreserve/flint/schema"
)

func sampleResults() []*schema.CheckResult {
	one := 1
	pdf := schema.NewCheckResult("report.pdf", "PDF", "0.1.0", "well-formed", "policy-validation")
	pdf.Add(schema.NewCategory("well-formed", schema.PassedCheck("isValidHeader")))
	pdf.Add(schema.NewCategory("policy-validation", schema.FailedCheck("No encryption", &one)))
	pdf.SetTimeTaken(12 * time.Millisecond)

	epub := schema.NewCheckResult("book.epub", "EPUB", "0.1.0", "well-formed", "specific-drm-checks")
	epub.Add(schema.NewCategory("specific-drm-checks", schema.PassedCheck("No rights.xml")))
	epub.SetTimeTaken(30 * time.Millisecond)

	return []*schema.CheckResult{pdf, epub}
}

func TestResultColumns(t *testing.T) {
	got := resultColumns(sampleResults())
	want := append(append([]string{}, schema.FixedResultKeys...), "well-formed", "policy-validation", "specific-drm-checks")
	assert.Equal(t, want, got)
	assert.Equal(t, schema.FixedResultKeys, resultColumns(nil))
}

func TestWriteResultsDelimited(t *testing.T) {
	tests := []struct {
		name  string
		comma rune
	}{
		{"csv", ','},
		{"tsv", '\t'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, writeResultsDelimited(&buf, sampleResults(), tt.comma))

			r := csv.NewReader(&buf)
			r.Comma = tt.comma
			rows, err := r.ReadAll()
			require.NoError(t, err)
			require.Len(t, rows, 3)

			header := rows[0]
			idx := func(key string) int {
				for i, h := range header {
					if h == key {
						return i
					}
				}
				t.Fatalf("missing column %q", key)
				return -1
			}
			assert.Equal(t, "report.pdf", rows[1][idx(schema.FilenameKey)])
			assert.Equal(t, "failed", rows[1][idx(schema.ResultKey)])
			assert.Equal(t, "12", rows[1][idx(schema.TimeTakenKey)])
			assert.Equal(t, "", rows[1][idx("specific-drm-checks")])
			assert.Equal(t, "", rows[2][idx("well-formed")], "placeholder stays empty")
			assert.Equal(t, "passed", rows[2][idx("specific-drm-checks")])
			assert.Equal(t, "", rows[2][idx("policy-validation")])
		})
	}
}

func TestWriteResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResultsJSON(&buf, sampleResults()))

	var doc struct {
		Summary schema.Summary      `json:"summary"`
		Results []schema.ResultView `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, schema.Summary{Total: 2, Passed: 1, Failed: 1}, doc.Summary)
	require.Len(t, doc.Results, 2)
	assert.Equal(t, "report.pdf", doc.Results[0].Filename)
	assert.Equal(t, schema.FailedResult, doc.Results[0].Result)
	require.Len(t, doc.Results[0].Categories, 2)
	require.NotNil(t, doc.Results[0].Categories[1].Checks[0].ErrorCount)
	assert.Equal(t, 1, *doc.Results[0].Categories[1].Checks[0].ErrorCount)
}

func TestWriteResultsYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResultsYAML(&buf, sampleResults()))

	var doc struct {
		Summary struct {
			Total  int `yaml:"total"`
			Passed int `yaml:"passed"`
		} `yaml:"summary"`
		Results []schema.ResultView `yaml:"results"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 2, doc.Summary.Total)
	assert.Equal(t, 1, doc.Summary.Passed)
	require.Len(t, doc.Results, 2)
	assert.Equal(t, "book.epub", doc.Results[1].Filename)
	require.NotNil(t, doc.Results[1].TimeTakenMs)
	assert.Equal(t, int64(30), *doc.Results[1].TimeTakenMs)
}

func TestWriteResultsParquet(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, writeResultsParquet(&buf, sampleResults(), at))

	reader := pq.NewGenericReader[parquet.FileResult](bytes.NewReader(buf.Bytes()))
	defer reader.Close()
	rows := make([]parquet.FileResult, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, 3, n)
	assert.Equal(t, "report.pdf", rows[0].FilePath)
	assert.Equal(t, "well-formed", rows[0].Category)
	assert.Equal(t, "specific-drm-checks", rows[2].Category)
}

func TestWriteResultsTable(t *testing.T) {
	var buf bytes.Buffer
	cfg := &contract.Config{Width: 200, Workers: 4, Isolation: schema.GoroutineIsolation}
	require.NoError(t, writeResultsTable(&buf, sampleResults(), cfg, 1500*time.Millisecond))

	out := buf.String()
	for _, want := range []string{"report.pdf", "book.epub", "PDF", "EPUB", "failed", "passed"} {
		assert.Contains(t, out, want)
	}
	assert.Contains(t, out, "Checked 2 files (passed: 1, failed: 1, error: 0)")
	assert.Contains(t, out, "Completed in 1.5s with 4 workers. Isolation: goroutine")
	assert.NotContains(t, out, "\x1b[", "colors are off unless enabled")
}

func TestGetMaxTablePathWidth(t *testing.T) {
	assert.Equal(t, 15, GetMaxTablePathWidth(&contract.Config{Width: 40}, 0))
	assert.Equal(t, 70, GetMaxTablePathWidth(&contract.Config{Width: 300}, 1))
	assert.Equal(t, 40, GetMaxTablePathWidth(&contract.Config{Width: 114}, 2))
}

func TestWriteResultsToFile(t *testing.T) {
	dir := t.TempDir()
	ow := NewOutWriter()

	tests := []struct {
		output schema.OutputMode
		file   string
		check  func(t *testing.T, data []byte)
	}{
		{schema.XMLOut, "out.xml", func(t *testing.T, data []byte) {
			parsed, err := schema.ParseReport(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Len(t, parsed, 2)
		}},
		{schema.JSONOut, "out.json", func(t *testing.T, data []byte) {
			assert.True(t, json.Valid(data))
		}},
		{schema.TSVOut, "out.tsv", func(t *testing.T, data []byte) {
			assert.True(t, strings.HasPrefix(string(data), "filename\t"))
		}},
		{schema.ParquetOut, "out.parquet", func(t *testing.T, data []byte) {
			assert.Equal(t, "PAR1", string(data[:4]))
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.output), func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			cfg := &contract.Config{Output: tt.output, OutputFile: path}
			require.NoError(t, ow.WriteResults(sampleResults(), cfg, time.Second))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			tt.check(t, data)
		})
	}
}

func TestWriteResultsDirectoryOutput(t *testing.T) {
	dir := t.TempDir()
	cfg := &contract.Config{Output: schema.XMLOut, OutputFile: dir}
	require.NoError(t, NewOutWriter().WriteResults(sampleResults(), cfg, time.Second))
	assert.FileExists(t, filepath.Join(dir, contract.DefaultReportName))
}

func TestWriteResultsParquetNeedsFile(t *testing.T) {
	err := NewOutWriter().WriteResults(sampleResults(), &contract.Config{Output: schema.ParquetOut}, time.Second)
	assert.ErrorContains(t, err, "--output-file")
}

func TestWriteWithFileError(t *testing.T) {
	err := writeWithFile(filepath.Join(t.TempDir(), "missing", "out.xml"), func(io.Writer) error { return nil }, "Wrote")
	assert.Error(t, err)
}

// Package parquet provides data structures and functions for exporting flint
// check results and run history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/openpreserve/flint/schema"
)

// Run represents a single check run with metadata.
// This struct maps to the flint_runs database table.
type Run struct {
	// RunID is the unique identifier for this run
	RunID string `parquet:"run_id,snappy"`

	// StartTime is when the run began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// RunDurationMs is the duration of the run in milliseconds (nullable)
	RunDurationMs *int32 `parquet:"run_duration_ms,optional,snappy"`

	// TotalFilesChecked is the number of results recorded in this run
	TotalFilesChecked int32 `parquet:"total_files_checked,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// FileResult is one category outcome of one checked file.
// This struct maps to the flint_file_results database table and is also the
// row type of the parquet report output.
type FileResult struct {
	// RunID references the parent run, empty for report output
	RunID string `parquet:"run_id,snappy"`

	FilePath    string    `parquet:"file_path,snappy"`
	Format      string    `parquet:"format,snappy,dict"`
	CheckTime   time.Time `parquet:"check_time,snappy"`
	FileResult  string    `parquet:"file_result,snappy,dict"`
	Category    string    `parquet:"category,snappy,dict"`
	Result      string    `parquet:"result,snappy,dict"`
	FailedCount int32     `parquet:"failed_count,snappy"`
	TimeTakenMs int64     `parquet:"time_taken_ms,snappy"`
}

// Write writes rows to w as a single Parquet file.
func Write[T any](w io.Writer, rows []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func writeFile[T any](rows []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(file, rows); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteRunsParquet writes a slice of Run structs to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteFileResultsParquet writes a slice of FileResult structs to a Parquet file.
func WriteFileResultsParquet(data []FileResult, outputPath string) error {
	return writeFile(data, outputPath)
}

// ConvertRunRecords converts store records to Parquet rows.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	out := make([]Run, len(records))
	for i, r := range records {
		out[i] = Run{
			RunID:             r.RunID,
			StartTime:         r.StartTime,
			EndTime:           r.EndTime,
			RunDurationMs:     r.RunDurationMs,
			TotalFilesChecked: r.TotalFilesChecked,
			ConfigParams:      r.ConfigParams,
		}
	}
	return out
}

// ConvertFileResultRecords converts store records to Parquet rows.
func ConvertFileResultRecords(records []schema.FileResultRecord) []FileResult {
	out := make([]FileResult, len(records))
	for i, r := range records {
		out[i] = FileResult(r)
	}
	return out
}

// ConvertCheckResults flattens results into one row per file and category.
func ConvertCheckResults(results []*schema.CheckResult, at time.Time) []FileResult {
	var out []FileResult
	for _, r := range results {
		out = append(out, ConvertFileResultRecords(schema.RecordsFor("", r, at))...)
	}
	return out
}

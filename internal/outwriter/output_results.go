package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"gopkg.in/yaml.v3"

	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/internal/parquet"
	"github.com/openpreserve/flint/schema"
)

// resultColumns returns the union of ToMap keys in first-seen order.
func resultColumns(results []*schema.CheckResult) []string {
	var columns []string
	seen := make(map[string]bool)
	for _, r := range results {
		for _, f := range r.ToMap() {
			if !seen[f.Key] {
				seen[f.Key] = true
				columns = append(columns, f.Key)
			}
		}
	}
	if columns == nil {
		columns = append(columns, schema.FixedResultKeys...)
	}
	return columns
}

// categoryColumns returns every category name in first-seen order.
func categoryColumns(results []*schema.CheckResult) []string {
	var names []string
	seen := make(map[string]bool)
	for _, r := range results {
		for _, name := range r.CategoryNames() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// writeResultsDelimited writes one row per file. Columns a file does not have stay empty.
func writeResultsDelimited(w io.Writer, results []*schema.CheckResult, comma rune) error {
	header := resultColumns(results)
	return writeCSVWithHeader(w, comma, header, func(cw *csv.Writer) error {
		for _, r := range results {
			values := make(map[string]string)
			for _, f := range r.ToMap() {
				values[f.Key] = f.Value
			}
			row := make([]string, len(header))
			for i, key := range header {
				row[i] = values[key]
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

func views(results []*schema.CheckResult) []schema.ResultView {
	out := make([]schema.ResultView, len(results))
	for i, r := range results {
		out[i] = r.View()
	}
	return out
}

// writeResultsJSON writes the results and their summary.
func writeResultsJSON(w io.Writer, results []*schema.CheckResult) error {
	return writeJSON(w, struct {
		Summary schema.Summary      `json:"summary"`
		Results []schema.ResultView `json:"results"`
	}{schema.Summarize(results), views(results)})
}

// writeResultsYAML writes the same document as writeResultsJSON.
func writeResultsYAML(w io.Writer, results []*schema.CheckResult) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	doc := struct {
		Summary schema.Summary      `yaml:"summary"`
		Results []schema.ResultView `yaml:"results"`
	}{schema.Summarize(results), views(results)}
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// writeResultsParquet writes one row per file and category.
func writeResultsParquet(w io.Writer, results []*schema.CheckResult, at time.Time) error {
	return parquet.Write(w, parquet.ConvertCheckResults(results, at))
}

func label(status schema.ResultStatus, cfg *contract.Config) string {
	if !cfg.UseColors {
		return string(status)
	}
	return contract.GetColorLabel(status)
}

// writeResultsTable generates and writes the human-readable table.
func writeResultsTable(w io.Writer, results []*schema.CheckResult, cfg *contract.Config, duration time.Duration) error {
	categories := categoryColumns(results)
	table := tablewriter.NewWriter(w)

	headers := []string{"#", "File", "Format", "Result"}
	headers = append(headers, categories...)
	headers = append(headers, "Time (ms)")
	table.Header(headers)
	table.Configure(func(c *tablewriter.Config) {
		c.Row.Alignment.Global = tw.AlignLeft
	})

	pathWidth := GetMaxTablePathWidth(cfg, len(categories))
	var data [][]string
	for i, r := range results {
		row := []string{
			strconv.Itoa(i + 1),
			contract.TruncatePath(r.Filename, pathWidth),
			r.Format,
			label(r.Result(), cfg),
		}
		for _, name := range categories {
			c, ok := r.Category(name)
			switch {
			case !ok:
				row = append(row, "")
			case c == nil:
				row = append(row, "-")
			default:
				row = append(row, label(c.Result(), cfg))
			}
		}
		if r.TimeTaken != nil {
			row = append(row, strconv.FormatInt(r.TimeTakenMillis(), 10))
		} else {
			row = append(row, "")
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	s := schema.Summarize(results)
	if _, err := fmt.Fprintf(w, "Checked %d files (passed: %d, failed: %d, error: %d)\n", s.Total, s.Passed, s.Failed, s.Error); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Completed in %v with %d workers. Isolation: %s\n", duration.Round(time.Millisecond), cfg.Workers, cfg.Isolation)
	return err
}

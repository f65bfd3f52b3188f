package schema

import "time"

// RunRecord represents a row from the flint_runs table.
type RunRecord struct {
	RunID             string
	StartTime         time.Time
	EndTime           *time.Time
	RunDurationMs     *int32
	TotalFilesChecked int32
	ConfigParams      *string
}

// FileResultRecord represents a row from the flint_file_results table.
// There is one row per checked file and category.
type FileResultRecord struct {
	RunID       string
	FilePath    string
	Format      string
	CheckTime   time.Time
	FileResult  string
	Category    string
	Result      string
	FailedCount int32
	TimeTakenMs int64
}

// RecordsFor flattens one CheckResult into history rows. A result without
// categories still yields a single row so that the file is accounted for.
func RecordsFor(runID string, r *CheckResult, at time.Time) []FileResultRecord {
	base := FileResultRecord{
		RunID:       runID,
		FilePath:    r.Filename,
		Format:      r.Format,
		CheckTime:   at,
		FileResult:  string(r.Result()),
		TimeTakenMs: r.TimeTakenMillis(),
	}
	cats := r.Categories()
	if len(cats) == 0 {
		return []FileResultRecord{base}
	}
	out := make([]FileResultRecord, 0, len(cats))
	for _, c := range cats {
		rec := base
		rec.Category = c.Name()
		rec.Result = string(c.Result())
		for _, check := range c.Checks() {
			if check.Outcome() == Fail {
				rec.FailedCount++
			}
		}
		out = append(out, rec)
	}
	return out
}

package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"

	"github.com/openpreserve/flint/internal/contract"
	"github.com/openpreserve/flint/schema"
)

// Table names for check history.
const (
	runsTable        = "flint_runs"
	fileResultsTable = "flint_file_results"
)

// historyTables lists the history tables in creation order.
var historyTables = []string{runsTable, fileResultsTable}

// baseMigrations create the history tables. Later migrations only add indexes
// and are applied through MigrateHistory.
var baseMigrations = []string{"000001_create_runs", "000002_create_file_results"}

// sqliteTimeLayout is fixed width so that stored times sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryStoreImpl implements the HistoryStore interface.
type HistoryStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.HistoryStore = &HistoryStoreImpl{} // Compile-time check

// NewHistoryStore opens the history store and creates its tables.
// The none backend returns a store that records nothing.
func NewHistoryStore(backend schema.DatabaseBackend, connStr string) (*HistoryStoreImpl, error) {
	if backend == schema.NoneBackend {
		return &HistoryStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr, contract.GetHistoryDBFilePath())
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if err := createHistoryTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}
	return &HistoryStoreImpl{db: db, backend: backend}, nil
}

// createHistoryTables runs the base up migrations directly. They are written
// with IF NOT EXISTS so a later MigrateHistory still applies cleanly.
func createHistoryTables(db *sql.DB, backend schema.DatabaseBackend) error {
	src, err := migrationSource(backend)
	if err != nil {
		return err
	}
	for _, name := range baseMigrations {
		query, err := fs.ReadFile(src, name+".up.sql")
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(query)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (hs *HistoryStoreImpl) table(name string) string {
	return quoteTableName(name, hs.backend)
}

// BeginRun creates a new run and returns its unique ID.
// The none backend returns an empty ID.
func (hs *HistoryStoreImpl) BeginRun(startTime time.Time, configParams map[string]any) (string, error) {
	if hs.db == nil {
		return "", nil
	}

	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config params: %w", err)
	}

	runID := uuid.NewString()
	query := rebind(hs.backend, fmt.Sprintf(
		`INSERT INTO %s (run_id, start_time, total_files_checked, config_params) VALUES (?, ?, 0, ?)`,
		hs.table(runsTable)))
	if _, err := hs.db.Exec(query, runID, hs.formatTime(startTime), string(configJSON)); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return runID, nil
}

// RecordResult stores one row per category of a checked file in a single transaction.
func (hs *HistoryStoreImpl) RecordResult(runID string, result *schema.CheckResult, checkTime time.Time) error {
	if hs.db == nil || runID == "" || result == nil {
		return nil
	}

	tx, err := hs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := rebind(hs.backend, fmt.Sprintf(`
		INSERT INTO %s (run_id, file_path, format, check_time, file_result,
		                category, result, failed_count, time_taken_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, hs.table(fileResultsTable)))
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range schema.RecordsFor(runID, result, checkTime) {
		if _, err := stmt.Exec(rec.RunID, rec.FilePath, rec.Format, hs.formatTime(rec.CheckTime),
			rec.FileResult, rec.Category, rec.Result, rec.FailedCount, rec.TimeTakenMs); err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", rec.FilePath, err)
		}
	}
	return tx.Commit()
}

// EndRun updates the run with completion data.
func (hs *HistoryStoreImpl) EndRun(runID string, endTime time.Time, totalFiles int) error {
	if hs.db == nil || runID == "" {
		return nil
	}

	var start timeScanner
	query := rebind(hs.backend, fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = ?`, hs.table(runsTable)))
	if err := hs.db.QueryRow(query, runID).Scan(&start); err != nil {
		return fmt.Errorf("failed to get start_time for run %s: %w", runID, err)
	}

	durationMs := int32(endTime.Sub(start.Time).Milliseconds())
	update := rebind(hs.backend, fmt.Sprintf(
		`UPDATE %s SET end_time = ?, run_duration_ms = ?, total_files_checked = ? WHERE run_id = ?`,
		hs.table(runsTable)))
	if _, err := hs.db.Exec(update, hs.formatTime(endTime), durationMs, totalFiles, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (hs *HistoryStoreImpl) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}

// GetStatus returns run counts and per-table row counts.
func (hs *HistoryStoreImpl) GetStatus() (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:    string(hs.backend),
		Connected:  hs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if hs.db == nil {
		return status, nil
	}

	runs := hs.table(runsTable)
	if err := hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", runs)).Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		var last, oldest timeScanner
		row := hs.db.QueryRow(fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY start_time DESC LIMIT 1", runs))
		if err := row.Scan(&status.LastRunID, &last); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		status.LastRunTime = last.Time

		row = hs.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY start_time ASC LIMIT 1", runs))
		if err := row.Scan(&oldest); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		status.OldestRunTime = oldest.Time

		row = hs.db.QueryRow(fmt.Sprintf("SELECT COALESCE(SUM(total_files_checked), 0) FROM %s", runs))
		if err := row.Scan(&status.TotalFilesChecked); err != nil {
			return status, fmt.Errorf("failed to get total files checked: %w", err)
		}
	}

	for _, table := range historyTables {
		var count int64
		if err := hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", hs.table(table))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	return status, nil
}

// GetAllRuns returns every recorded run, oldest first.
func (hs *HistoryStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, start_time, end_time, run_duration_ms, total_files_checked, config_params
		FROM %s ORDER BY start_time, run_id`, hs.table(runsTable))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		var start, end timeScanner
		if err := rows.Scan(&record.RunID, &start, &end, &record.RunDurationMs,
			&record.TotalFilesChecked, &record.ConfigParams); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		record.StartTime = start.Time
		record.EndTime = end.Ptr()
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllFileResults returns every recorded file result row in insertion order.
func (hs *HistoryStoreImpl) GetAllFileResults() ([]schema.FileResultRecord, error) {
	if hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, file_path, format, check_time, file_result,
		category, result, failed_count, time_taken_ms
		FROM %s ORDER BY result_id`, hs.table(fileResultsTable))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query file results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.FileResultRecord
	for rows.Next() {
		var record schema.FileResultRecord
		var checkTime timeScanner
		if err := rows.Scan(&record.RunID, &record.FilePath, &record.Format, &checkTime,
			&record.FileResult, &record.Category, &record.Result,
			&record.FailedCount, &record.TimeTakenMs); err != nil {
			return nil, fmt.Errorf("failed to scan file result: %w", err)
		}
		record.CheckTime = checkTime.Time
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file results: %w", err)
	}
	return results, nil
}

func (hs *HistoryStoreImpl) formatTime(t time.Time) any {
	if hs.backend == schema.SQLiteBackend {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t
}

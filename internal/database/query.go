package database

import (
	"database/sql"
	"time"
)

const resultColumns = `id, run_id, timestamp, kind, name, path, outcome, size, error_message`

// GetRecentResults returns the N most recent per-target results
func (h *HistoryDB) GetRecentResults(limit int) ([]ResultRecord, error) {
	query := `
	SELECT ` + resultColumns + `
	FROM results
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`

	return h.queryResults(query, limit)
}

// GetResultsByOutcome returns results filtered by outcome (removed, absent, error)
func (h *HistoryDB) GetResultsByOutcome(outcome string) ([]ResultRecord, error) {
	query := `
	SELECT ` + resultColumns + `
	FROM results
	WHERE outcome = ?
	ORDER BY timestamp DESC, id DESC
	`

	return h.queryResults(query, outcome)
}

// GetResultsByTarget returns results whose target name matches a pattern (SQL LIKE syntax)
func (h *HistoryDB) GetResultsByTarget(namePattern string) ([]ResultRecord, error) {
	query := `
	SELECT ` + resultColumns + `
	FROM results
	WHERE name LIKE ?
	ORDER BY timestamp DESC, id DESC
	`

	return h.queryResults(query, namePattern)
}

// GetResultsForRun returns the results of one run in processing order
func (h *HistoryDB) GetResultsForRun(runID int64) ([]ResultRecord, error) {
	query := `
	SELECT ` + resultColumns + `
	FROM results
	WHERE run_id = ?
	ORDER BY id ASC
	`

	return h.queryResults(query, runID)
}

// GetRecentRuns returns the N most recent runs
func (h *HistoryDB) GetRecentRuns(limit int) ([]RunRecord, error) {
	rows, err := h.db.Query(`
	SELECT id, root, started_at, finished_at, removed, absent, errors, bytes_freed
	FROM runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.ID, &r.Root, &r.StartedAt, &r.FinishedAt,
			&r.Removed, &r.Absent, &r.Errors, &r.BytesFreed,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetOutcomeCounts returns count of results grouped by outcome since a point in time
func (h *HistoryDB) GetOutcomeCounts(since time.Time) (map[string]int, error) {
	return h.countBy("outcome", since)
}

// GetRemovalCountByTarget returns how often each target name was removed since a point in time
func (h *HistoryDB) GetRemovalCountByTarget(since time.Time) (map[string]int, error) {
	rows, err := h.db.Query(`
	SELECT name, COUNT(*)
	FROM results
	WHERE outcome = 'removed' AND timestamp >= ?
	GROUP BY name
	`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCounts(rows)
}

func (h *HistoryDB) countBy(column string, since time.Time) (map[string]int, error) {
	// column is one of a fixed set of identifiers, never user input
	rows, err := h.db.Query(`
	SELECT `+column+`, COUNT(*)
	FROM results
	WHERE timestamp >= ?
	GROUP BY `+column, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanCounts(rows)
}

func scanCounts(rows *sql.Rows) (map[string]int, error) {
	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

// HistoryStats holds aggregated statistics
type HistoryStats struct {
	TotalRuns       int
	TotalRemoved    int
	TotalAbsent     int
	TotalErrors     int
	TotalBytesFreed int64
	ByTarget        map[string]int
	StartDate       time.Time
	EndDate         time.Time
}

// GetHistoryStats returns statistics for the last N days
func (h *HistoryDB) GetHistoryStats(days int) (*HistoryStats, error) {
	now := time.Now()
	since := now.AddDate(0, 0, -days)

	stats := &HistoryStats{
		StartDate: since,
		EndDate:   now,
	}

	err := h.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(removed), 0),
			COALESCE(SUM(absent), 0),
			COALESCE(SUM(errors), 0),
			COALESCE(SUM(bytes_freed), 0)
		FROM runs
		WHERE started_at >= ?
	`, since.UTC()).Scan(
		&stats.TotalRuns,
		&stats.TotalRemoved,
		&stats.TotalAbsent,
		&stats.TotalErrors,
		&stats.TotalBytesFreed,
	)
	if err != nil {
		return nil, err
	}

	stats.ByTarget, err = h.GetRemovalCountByTarget(since)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (h *HistoryDB) queryResults(query string, args ...interface{}) ([]ResultRecord, error) {
	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ResultRecord
	for rows.Next() {
		var r ResultRecord
		var errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &r.RunID, &r.Timestamp, &r.Kind, &r.Name,
			&r.Path, &r.Outcome, &r.Size, &errMsg,
		)
		if err != nil {
			return nil, err
		}

		if errMsg.Valid {
			r.ErrorMessage = errMsg.String
		}

		records = append(records, r)
	}

	return records, rows.Err()
}

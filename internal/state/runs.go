package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/droidpilot/droidpilot/internal/orchestrator"
	"github.com/droidpilot/droidpilot/pkg/models"
)

// Run is one persisted orchestration run.
type Run struct {
	ID        string        `json:"id"`
	Command   string        `json:"command"`
	Success   bool          `json:"success"`
	Summary   string        `json:"summary"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// RecordRun persists a finished run and its per-attempt task results in
// one transaction. Implements orchestrator.RunRecorder.
func (db *DB) RecordRun(_ context.Context, run orchestrator.RunRecord) error {
	return db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO runs (id, command, success, summary, started_at, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, run.Command, boolToInt(run.Success), run.Summary,
			formatTime(run.StartedAt), run.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for attempt, res := range run.Results {
			_, err := tx.Exec(`
				INSERT INTO task_results (run_id, attempt, task_id, success, result, steps_executed, display_id, duration_ms)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, run.ID, attempt, res.TaskID, boolToInt(res.Success), res.Result,
				res.StepsExecuted, res.DisplayID, res.Duration.Milliseconds())
			if err != nil {
				return fmt.Errorf("insert task result %d: %w", attempt, err)
			}
		}
		return nil
	})
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT id, command, success, summary, started_at, duration_ms
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, command, success, summary, started_at, duration_ms
		FROM runs WHERE id = ?
	`, id)

	var (
		run        Run
		success    int
		startedAt  string
		durationMS int64
	)
	if err := row.Scan(&run.ID, &run.Command, &success, &run.Summary, &startedAt, &durationMS); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %s not found", id)
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Success = success != 0
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if t, err := parseTime(startedAt); err == nil {
		run.StartedAt = t
	}
	return &run, nil
}

// RunResults returns the per-attempt task results of one run in attempt
// order.
func (db *DB) RunResults(runID string) ([]models.SubTaskResult, error) {
	rows, err := db.Query(`
		SELECT task_id, success, result, steps_executed, display_id, duration_ms
		FROM task_results WHERE run_id = ? ORDER BY attempt
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query task results: %w", err)
	}
	defer rows.Close()

	var results []models.SubTaskResult
	for rows.Next() {
		var (
			res        models.SubTaskResult
			success    int
			durationMS int64
		)
		if err := rows.Scan(&res.TaskID, &success, &res.Result, &res.StepsExecuted, &res.DisplayID, &durationMS); err != nil {
			return nil, fmt.Errorf("scan task result: %w", err)
		}
		res.Success = success != 0
		res.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, res)
	}
	return results, rows.Err()
}

// PurgeOldRuns deletes runs that started before the cutoff. Returns how
// many runs were deleted.
func (db *DB) PurgeOldRuns(olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}
	return result.RowsAffected()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var (
		run        Run
		success    int
		startedAt  string
		durationMS int64
	)
	if err := rows.Scan(&run.ID, &run.Command, &success, &run.Summary, &startedAt, &durationMS); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Success = success != 0
	run.Duration = time.Duration(durationMS) * time.Millisecond
	if t, err := parseTime(startedAt); err == nil {
		run.StartedAt = t
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

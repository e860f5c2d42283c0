package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunStarted records a new run.
func (db *DB) RunStarted(ctx context.Context, run *models.RunRecord) error {
	inputs, err := json.Marshal(run.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	order, err := json.Marshal(run.Order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	_, err = db.exec(ctx, `
		INSERT INTO runs (id, project, inputs, run_order, ignore_cache, exit_on_error, status, error, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Project, string(inputs), string(order), boolToInt(run.IgnoreCache),
		boolToInt(run.ExitOnError), string(run.Status), run.Error, formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UnitFinished records the outcome of one crew. Recording the same crew
// twice for a run replaces the earlier row.
func (db *DB) UnitFinished(ctx context.Context, u *models.UnitRecord) error {
	var passed sql.NullInt64
	if u.Passed != nil {
		passed = sql.NullInt64{Int64: int64(boolToInt(*u.Passed)), Valid: true}
	}

	_, err := db.exec(ctx, `
		INSERT OR REPLACE INTO unit_results
			(run_id, unit, status, cache_hit, stored, attempts, output_path, validation_path, passed, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.RunID, u.Unit, u.Status, boolToInt(u.CacheHit), boolToInt(u.Stored), u.Attempts,
		u.OutputPath, u.ValidationPath, passed, u.Duration.Milliseconds(), formatTime(u.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert unit result: %w", err)
	}
	return nil
}

// RunFinished closes a run with its final status.
func (db *DB) RunFinished(ctx context.Context, runID string, status models.RunStatus, errMsg string) error {
	res, err := db.exec(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, string(status), errMsg, formatTime(time.Now()), runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, project, inputs, run_order, ignore_cache, exit_on_error, status, error, started_at, finished_at`

// GetRun returns one run by ID.
func (db *DB) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	row := db.queryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns the most recent runs first. An empty project lists
// runs of every project; limit <= 0 means no limit.
func (db *DB) ListRuns(ctx context.Context, project string, limit int) ([]models.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if project != "" {
		query += ` WHERE project = ?`
		args = append(args, project)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListUnits returns the recorded crews of a run in completion order.
func (db *DB) ListUnits(ctx context.Context, runID string) ([]models.UnitRecord, error) {
	rows, err := db.query(ctx, `
		SELECT run_id, unit, status, cache_hit, stored, attempts, output_path, validation_path, passed, duration_ms, finished_at
		FROM unit_results WHERE run_id = ? ORDER BY finished_at, rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list unit results: %w", err)
	}
	defer rows.Close()

	var units []models.UnitRecord
	for rows.Next() {
		var (
			u                models.UnitRecord
			cacheHit, stored int
			passed           sql.NullInt64
			durationMS       int64
			finishedAt       string
		)
		if err := rows.Scan(&u.RunID, &u.Unit, &u.Status, &cacheHit, &stored, &u.Attempts,
			&u.OutputPath, &u.ValidationPath, &passed, &durationMS, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan unit result: %w", err)
		}
		u.CacheHit = cacheHit != 0
		u.Stored = stored != 0
		if passed.Valid {
			p := passed.Int64 != 0
			u.Passed = &p
		}
		u.Duration = time.Duration(durationMS) * time.Millisecond
		if u.FinishedAt, err = parseTime(finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

// PurgeOldRuns deletes runs started before now minus olderThan, together
// with their crew results. It returns the number of runs deleted.
func (db *DB) PurgeOldRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := formatTime(time.Now().Add(-olderThan))
	result, err := db.exec(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge old runs: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return count, nil
}

// MarkInterrupted fails every run still marked running that started
// before the cutoff. Such runs belong to a process that died.
func (db *DB) MarkInterrupted(ctx context.Context, startedBefore time.Time) (int64, error) {
	result, err := db.exec(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE status = ? AND started_at < ?
	`, string(models.RunFailed), "interrupted", formatTime(time.Now()),
		string(models.RunRunning), formatTime(startedBefore))
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*models.RunRecord, error) {
	var (
		run                      models.RunRecord
		inputs, order, status    string
		ignoreCache, exitOnError int
		startedAt                string
		finishedAt               sql.NullString
	)
	if err := s.Scan(&run.ID, &run.Project, &inputs, &order, &ignoreCache, &exitOnError,
		&status, &run.Error, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if err := json.Unmarshal([]byte(inputs), &run.Inputs); err != nil {
		return nil, fmt.Errorf("unmarshal inputs: %w", err)
	}
	if err := json.Unmarshal([]byte(order), &run.Order); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	run.IgnoreCache = ignoreCache != 0
	run.ExitOnError = exitOnError != 0
	run.Status = models.RunStatus(status)

	var err error
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	run.FinishedAt = parseNullableTime(finishedAt)
	return &run, nil
}

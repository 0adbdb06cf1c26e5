package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/cesargomez89/tracksync/internal/domain"
)

const runColumns = `id, source, source_kind, playlist, folder, status, total, succeeded, failed, skipped, cancelled, error, started_at, finished_at`

const trackColumns = `run_id, order_index, uri, title, primary_artist, artists, album, duration_ms, source_url, status, filename, error, attempts`

type trackRow struct {
	RunID string `db:"run_id"`
	domain.TrackResult
}

// CreateRun inserts the header row of a run that just started.
func (db *DB) CreateRun(run *domain.RunSummary) error {
	query := `INSERT INTO runs (` + runColumns + `)
		VALUES (:id, :source, :source_kind, :playlist, :folder, :status, :total, :succeeded, :failed, :skipped, :cancelled, :error, :started_at, :finished_at)`

	_, err := db.NamedExec(query, run)
	return err
}

// FinishRun stores the final counters and per-track results of a run,
// replacing any earlier results for it.
func (db *DB) FinishRun(run *domain.RunSummary) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.NamedExec(`UPDATE runs SET playlist = :playlist, status = :status, total = :total,
		succeeded = :succeeded, failed = :failed, skipped = :skipped, cancelled = :cancelled,
		error = :error, finished_at = :finished_at WHERE id = :id`, run)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRunNotFound
	}

	if _, err := tx.Exec(`DELETE FROM run_tracks WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear run tracks: %w", err)
	}

	insert := `INSERT INTO run_tracks (` + trackColumns + `)
		VALUES (:run_id, :order_index, :uri, :title, :primary_artist, :artists, :album, :duration_ms, :source_url, :status, :filename, :error, :attempts)`
	for _, r := range run.Results {
		if _, err := tx.NamedExec(insert, trackRow{RunID: run.ID, TrackResult: r}); err != nil {
			return fmt.Errorf("failed to insert run track: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun returns a run with its per-track results.
func (db *DB) GetRun(id string) (*domain.RunSummary, error) {
	run := &domain.RunSummary{}
	if err := db.Get(run, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, err
	}

	var rows []trackRow
	if err := db.Select(&rows, `SELECT `+trackColumns+` FROM run_tracks WHERE run_id = ? ORDER BY order_index ASC`, id); err != nil {
		return nil, err
	}
	for _, r := range rows {
		run.Results = append(run.Results, r.TrackResult)
	}
	return run, nil
}

// ListRuns returns the most recent runs without per-track results.
func (db *DB) ListRuns(limit int) ([]*domain.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []*domain.RunSummary
	err := db.Select(&runs, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	return runs, err
}

// ResetStuckRuns marks runs left "running" by a previous process as failed.
func (db *DB) ResetStuckRuns() (int64, error) {
	res, err := db.Exec(`UPDATE runs SET status = ?, error = ? WHERE status = ?`,
		domain.RunStatusFailed, "interrupted: process exited during run", domain.RunStatusRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

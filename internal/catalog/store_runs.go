package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound reports an unknown run id.
var ErrNotFound = errors.New("run not found")

// Record stores run and its frames in one transaction. An empty ID or
// operation is rejected; a zero FinishedAt is stamped with the current time.
func (s *Store) Record(ctx context.Context, run Run, frames []Frame) error {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("record run: id is required")
	}
	if strings.TrimSpace(run.Operation) == "" {
		return errors.New("record run: operation is required")
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID,
			run.Operation,
			string(run.Outcome),
			nullableString(run.Folder),
			nullableString(run.ExportDir),
			run.Frames,
			run.Failed,
			run.Skipped,
			run.Width,
			run.Height,
			nullableString(run.Error),
			run.Elapsed.Milliseconds(),
			run.FinishedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO run_frames (run_id, frame_index, identifier, path, failed) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare frame insert: %w", err)
		}
		defer stmt.Close()
		for _, f := range frames {
			if _, err := stmt.ExecContext(ctx, run.ID, f.Index, f.Identifier, nullableString(f.Path), boolToInt(f.Failed)); err != nil {
				return fmt.Errorf("insert frame %d: %w", f.Index, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit run: %w", err)
		}
		return nil
	})
}

// Get fetches one run by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY finished_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Frames returns the recorded frames of a run in index order.
func (s *Store) Frames(ctx context.Context, runID string) ([]Frame, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT frame_index, identifier, path, failed FROM run_frames WHERE run_id = ? ORDER BY frame_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var (
			f      Frame
			path   sql.NullString
			failed int
		)
		if err := rows.Scan(&f.Index, &f.Identifier, &path, &failed); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		f.Path = path.String
		f.Failed = failed != 0
		frames = append(frames, f)
	}
	return frames, rows.Err()
}

package catalog

import (
	"context"
	"fmt"
)

// Summary counts recorded runs grouped by outcome.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT outcome, COUNT(1) FROM runs GROUP BY outcome`)
	if err != nil {
		return Summary{}, fmt.Errorf("catalog summary: %w", err)
	}
	defer rows.Close()

	var sum Summary
	for rows.Next() {
		var (
			outcome Outcome
			count   int
		)
		if err := rows.Scan(&outcome, &count); err != nil {
			return Summary{}, err
		}
		sum.Total += count
		switch outcome {
		case OutcomeSucceeded:
			sum.Succeeded += count
		case OutcomeCanceled:
			sum.Canceled += count
		default:
			sum.Failed += count
		}
	}
	return sum, rows.Err()
}

// Prune keeps the newest keep runs and deletes the rest along with their
// frames. It returns the number of runs removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM runs WHERE id NOT IN (
            SELECT id FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT ?
        )`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	// foreign_keys is a per-connection pragma and the pool may hand out a
	// connection without it, so orphaned frames are removed explicitly.
	if _, err := s.execWithRetry(ctx, `DELETE FROM run_frames WHERE run_id NOT IN (SELECT id FROM runs)`); err != nil {
		return removed, fmt.Errorf("prune frames: %w", err)
	}
	return removed, nil
}

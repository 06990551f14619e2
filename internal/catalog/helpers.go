package catalog

import (
	"database/sql"
	"errors"
	"time"
)

const runColumns = "id, operation, outcome, folder, export_dir, frames, failed, skipped, width, height, error_message, elapsed_ms, finished_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		outcome     string
		folder      sql.NullString
		exportDir   sql.NullString
		errorMsg    sql.NullString
		elapsedMS   int64
		finishedRaw string
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Operation,
		&outcome,
		&folder,
		&exportDir,
		&run.Frames,
		&run.Failed,
		&run.Skipped,
		&run.Width,
		&run.Height,
		&errorMsg,
		&elapsedMS,
		&finishedRaw,
	); err != nil {
		return nil, err
	}
	run.Outcome = Outcome(outcome)
	run.Folder = folder.String
	run.ExportDir = exportDir.String
	run.Error = errorMsg.String
	run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if finished, err := parseTimeString(finishedRaw); err == nil {
		run.FinishedAt = finished
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

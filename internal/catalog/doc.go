// Package catalog records finished import, export and load runs in SQLite so
// the CLI can show history across invocations.
//
// A run row summarises one operation; run_frames keeps the per-frame outcome
// of that run. The database is a convenience log, not a source of truth for
// any sequence: schema changes bump the version in schema.go and users delete
// the file to adopt the new schema.
package catalog

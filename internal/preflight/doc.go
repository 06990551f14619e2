// Package preflight provides readiness checks for the filesystem paths an
// export writes to.
//
// The sequence controller runs ExportChecks before it starts writing frames:
// the destination must be a writable directory and, when a minimum is
// configured, the filesystem must have enough free space. A failed check
// aborts the export before any worker starts.
package preflight

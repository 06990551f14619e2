package preflight

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFailed wraps every preflight failure returned by Require.
var ErrFailed = errors.New("preflight failed")

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// ExportChecks runs the checks that guard an export into dir. minFreeMiB of
// zero skips the space check.
func ExportChecks(dir string, minFreeMiB int64) []Result {
	results := []Result{CheckDirectoryAccess("Export directory", dir)}
	if minFreeMiB > 0 {
		results = append(results, CheckFreeSpace("Export free space", dir, uint64(minFreeMiB)<<20))
	}
	return results
}

// Require folds failed results into one error, or nil when all passed.
func Require(results []Result) error {
	var failed []string
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrFailed, strings.Join(failed, "; "))
}

package catalog

import "time"

// Outcome labels how a run ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// Run is one finished operation.
type Run struct {
	ID         string
	Operation  string
	Outcome    Outcome
	Folder     string
	ExportDir  string
	Frames     int
	Failed     int
	Skipped    int
	Width      int
	Height     int
	Error      string
	Elapsed    time.Duration
	FinishedAt time.Time
}

// Frame is the recorded state of one slot at the end of a run.
type Frame struct {
	Index      int
	Identifier string
	Path       string
	Failed     bool
}

// Summary counts runs per outcome.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Canceled  int
}

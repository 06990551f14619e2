package sequence

import "fmt"

// Status is the controller lifecycle position.
type Status int

const (
	StatusUndefined Status = iota
	StatusLoading
	StatusImporting
	StatusExporting
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusUndefined:
		return "undefined"
	case StatusLoading:
		return "loading"
	case StatusImporting:
		return "importing"
	case StatusExporting:
		return "exporting"
	case StatusReady:
		return "ready"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// EventKind distinguishes the three completion notifications.
type EventKind int

const (
	EventImportComplete EventKind = iota
	EventExportComplete
	EventLoadComplete
)

// Operation returns the operation name used in logs, metrics and the catalog.
func (k EventKind) Operation() string {
	switch k {
	case EventImportComplete:
		return "import"
	case EventExportComplete:
		return "export"
	case EventLoadComplete:
		return "load"
	default:
		return "unknown"
	}
}

func (k EventKind) String() string { return k.Operation() + "-complete" }

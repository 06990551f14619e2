package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"imageseq/internal/sequence"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 16
	statusIndent     = "  "
)

var titleCaser = cases.Title(language.English)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// operationLabel is the display name of an event kind ("Import", "Export").
func operationLabel(kind sequence.EventKind) string {
	return titleCaser.String(kind.Operation())
}

// eventStatusLine summarizes a finished operation on one line.
func eventStatusLine(ev sequence.Event, colorize bool) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%d frames", ev.Frames))
	if ev.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", ev.Failed))
	}
	if ev.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", ev.Skipped))
	}
	parts = append(parts, ev.Elapsed.Round(time.Millisecond).String())
	message := strings.Join(parts, ", ")

	kind := statusOK
	switch {
	case ev.Canceled:
		kind = statusWarn
		message = "canceled after " + message
	case !ev.Succeeded:
		kind = statusError
		if ev.Err != nil {
			message = ev.Err.Error()
		}
	case ev.Failed > 0:
		kind = statusWarn
	}
	return renderStatusLine(operationLabel(ev.Kind), kind, message, colorize)
}

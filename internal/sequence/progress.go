package sequence

// PercentImported is import progress in [0,1]. It plateaus below 1 for a
// canceled or failed import.
func (c *Controller) PercentImported() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cursorPercent(c.importCursor, c.importExpected, c.imported)
}

// PercentExported is export progress in [0,1].
func (c *Controller) PercentExported() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cursorPercent(c.exportCursor, c.exportExpected, c.exported)
}

// PercentLoaded is in-memory loading progress in [0,1].
func (c *Controller) PercentLoaded() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cursorPercent(c.loadCursor, c.loadExpected, c.loaded)
}

// CompletionPercent reports the progress of whatever the status names.
func (c *Controller) CompletionPercent() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.status {
	case StatusLoading:
		return cursorPercent(c.loadCursor, c.loadExpected, c.loaded)
	case StatusImporting:
		return cursorPercent(c.importCursor, c.importExpected, c.imported)
	case StatusExporting:
		return cursorPercent(c.exportCursor, c.exportExpected, c.exported)
	case StatusReady:
		return 1
	default:
		return 0
	}
}

// cursorPercent treats a negative cursor as the completion sentinel when done
// is set and as not started otherwise.
func cursorPercent(cursor, expected int, done bool) float64 {
	if cursor < 0 {
		if done {
			return 1
		}
		return 0
	}
	if expected <= 0 {
		return 0
	}
	return min(float64(cursor)/float64(expected), 1)
}

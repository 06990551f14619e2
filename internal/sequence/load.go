package sequence

import (
	"errors"
	"fmt"
	"image"
	"time"

	"imageseq/internal/logging"
)

// ErrNotLoading reports AddFrame or CompleteLoading without StartLoading.
var ErrNotLoading = errors.New("no loading session")

type loadRun struct {
	runID   string
	started time.Time
}

// StartLoading opens an in-memory session expecting n frames. Existing frame
// data is discarded.
func (c *Controller) StartLoading(n int) {
	if c.hasFrameData() {
		c.teardown()
	}
	c.mu.Lock()
	c.loadRun = &loadRun{runID: c.deps.NewRunID(), started: c.deps.Clock()}
	c.loadExpected = max(n, 0)
	c.loadCursor = 0
	c.status = StatusLoading
	c.mu.Unlock()
	c.logger.Debug("loading started", logging.Int("expected_frames", n))
}

// AddFrame appends pixels produced in-process and returns the slot index. An
// empty name becomes a zero-padded counter that only advances for unnamed
// frames. A nil image is recorded as a failed slot.
func (c *Controller) AddFrame(pixels image.Image, name string) (int, error) {
	c.mu.Lock()
	if c.loadRun == nil {
		c.mu.Unlock()
		c.logger.Warn("frame added outside a loading session", logging.String(logging.FieldFrameID, name))
		return -1, ErrNotLoading
	}
	if name == "" {
		name = fmt.Sprintf("%0*d", c.opts.NamePadding, c.nameCounter)
		c.nameCounter++
	}
	c.mu.Unlock()

	idx := c.store.Append(name, "", pixels)
	if pixels == nil {
		c.store.MarkFailed(idx)
	}
	c.mu.Lock()
	c.loadCursor = c.store.Len()
	c.mu.Unlock()
	return idx, nil
}

// CompleteLoading closes the session and emits the load event. With no usable
// frame the event reports failure and IsLoaded stays false.
func (c *Controller) CompleteLoading() error {
	c.mu.Lock()
	run := c.loadRun
	c.loadRun = nil
	c.mu.Unlock()
	if run == nil {
		return ErrNotLoading
	}

	usable := c.captureDimensions()
	total := c.store.Len()
	ev := Event{
		Kind:    EventLoadComplete,
		RunID:   run.runID,
		Frames:  total,
		Failed:  total - c.store.Usable(),
		Elapsed: c.deps.Clock().Sub(run.started),
	}
	if !usable {
		ev.Err = fmt.Errorf("load: %w", ErrNoFrames)
	}
	ev.Succeeded = ev.Err == nil

	c.mu.Lock()
	if ev.Succeeded {
		c.loaded = true
		c.loadCursor = -1
	}
	c.settleStatusLocked(usable)
	c.mu.Unlock()

	if ev.Succeeded {
		c.logger.Info("loading complete", logging.String(logging.FieldRunID, run.runID), logging.Int("frame_count", total))
	} else {
		logging.ErrorWithContext(c.logger, "loading produced no frames", "load_failed",
			logging.String(logging.FieldRunID, run.runID),
			logging.Int("frame_count", total),
			logging.String(logging.FieldErrorHint, "add at least one non-nil frame before completing"),
		)
	}
	c.emit(ev)
	return ev.Err
}

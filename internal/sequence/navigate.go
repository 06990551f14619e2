package sequence

import (
	"errors"
	"image"

	"imageseq/internal/framestore"
	"imageseq/internal/logging"
)

// SetCurrentFrameIndex binds frame i for display. Negative indices clamp to
// zero and larger ones wrap. Binding a failed frame keeps the previous
// display but still moves the current index.
func (c *Controller) SetCurrentFrameIndex(i int) error {
	n, err := c.navigable("set current frame", i)
	if err != nil {
		return err
	}
	idx := max(i, 0) % n
	err = c.store.Bind(idx)

	c.mu.Lock()
	c.currentFrame = idx
	c.mu.Unlock()

	if errors.Is(err, framestore.ErrLoadFailed) {
		c.logger.Debug("bound frame failed to load; display unchanged", logging.Int(logging.FieldFrameIndex, idx))
		return nil
	}
	return err
}

// SetFrameAtPercent binds the frame at position p, wrapping outside [0,1).
func (c *Controller) SetFrameAtPercent(p float64) error {
	return c.SetCurrentFrameIndex(c.store.IndexAtPercent(p))
}

// SetFrameForTime binds the frame shown t seconds into the sequence, looping.
func (c *Controller) SetFrameForTime(t float64) error {
	return c.SetFrameAtPercent(c.percentForTime(t))
}

func (c *Controller) percentForTime(t float64) float64 {
	length := c.LengthInSeconds()
	if length <= 0 {
		return 0
	}
	return t / length
}

// FrameAtIndex binds frame i and returns the display handle.
func (c *Controller) FrameAtIndex(i int) (framestore.Handle, error) {
	if err := c.SetCurrentFrameIndex(i); err != nil {
		return nil, err
	}
	return c.store.Handle(), nil
}

// FrameAtPercent binds the frame at p and returns the display handle.
func (c *Controller) FrameAtPercent(p float64) (framestore.Handle, error) {
	if err := c.SetFrameAtPercent(p); err != nil {
		return nil, err
	}
	return c.store.Handle(), nil
}

// FrameForTime binds the frame at t seconds and returns the display handle.
func (c *Controller) FrameForTime(t float64) (framestore.Handle, error) {
	if err := c.SetFrameForTime(t); err != nil {
		return nil, err
	}
	return c.store.Handle(), nil
}

// PreloadFrame decodes frame i ahead of display without binding it.
func (c *Controller) PreloadFrame(i int) error {
	n, err := c.navigable("preload frame", i)
	if err != nil {
		return err
	}
	return c.store.Load(max(i, 0) % n)
}

// CurrentFrameIndex is the index of the last navigation request.
func (c *Controller) CurrentFrameIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentFrame
}

// LoadedFrameIndex is the index actually bound to the display, or -1.
func (c *Controller) LoadedFrameIndex() int { return c.store.LastBound() }

// Pixels returns the bound frame's pixels, or nil before the first bind.
func (c *Controller) Pixels() image.Image {
	i := c.store.LastBound()
	if i < 0 {
		return nil
	}
	slot, err := c.store.Slot(i)
	if err != nil {
		return nil
	}
	return slot.Pixels
}

// Handle returns the uploader handle of the bound frame.
func (c *Controller) Handle() framestore.Handle { return c.store.Handle() }

func (c *Controller) navigable(action string, i int) (int, error) {
	status := c.Status()
	n := c.store.Len()
	if status != StatusReady || n == 0 {
		logging.ErrorWithContext(c.logger, "navigation before sequence is ready", "navigation_not_ready",
			logging.String("action", action),
			logging.Int(logging.FieldFrameIndex, i),
			logging.String("status", status.String()),
			logging.Int("frame_count", n),
			logging.String(logging.FieldErrorHint, "wait for the import or load event"),
		)
		return 0, ErrNotReady
	}
	return n, nil
}

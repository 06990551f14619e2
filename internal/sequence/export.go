package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"imageseq/internal/codec"
	"imageseq/internal/fileutil"
	"imageseq/internal/logging"
	"imageseq/internal/preflight"
	"imageseq/internal/task"
)

type exportRun struct {
	runID     string
	folder    string
	dir       string
	ext       string
	quality   codec.Quality
	overwrite bool
	delay     time.Duration
	started   time.Time
	logger    *slog.Logger
	progress  *logging.ProgressSampler

	written int
	skipped int
	failed  int
	err     error
}

// StartExport writes every usable frame to folder/<timestamp>/<identifier>.<ext>.
// An empty ext uses the configured export extension. Existing files are kept
// unless overwrite is enabled. Dispatch mirrors StartImport.
func (c *Controller) StartExport(ctx context.Context, folder, ext string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.exporter != nil {
		c.mu.Unlock()
		return fmt.Errorf("export %s: %w", folder, ErrBusy)
	}
	opts := c.opts
	timestamp := c.timestamp
	c.mu.Unlock()

	ext = codec.NormalizeExt(ext)
	if ext == "" {
		ext = codec.NormalizeExt(opts.ExportExtension)
	}
	runID := c.deps.NewRunID()
	runCtx := logging.WithOperation(logging.WithRunID(ctx, runID), EventExportComplete.Operation())
	run := &exportRun{
		runID:     runID,
		folder:    folder,
		dir:       filepath.Join(folder, timestamp),
		ext:       ext,
		quality:   opts.Quality,
		overwrite: opts.Overwrite,
		delay:     opts.ExportDelay,
		started:   c.deps.Clock(),
		logger:    logging.WithContext(runCtx, c.logger).With(logging.String("folder", folder)),
		progress:  logging.NewProgressSampler(10),
	}

	total := c.store.Len()
	lock, err := c.prepareExport(run, opts, timestamp, total)
	if err != nil {
		run.err = err
		c.emit(c.finalizeExport(run, false))
		return err
	}

	c.mu.Lock()
	prev := c.status
	c.status = StatusExporting
	c.exportCursor = 0
	c.exportExpected = total
	c.exportDir = run.dir
	c.exportLock = lock
	c.mu.Unlock()
	run.logger.Info("export started",
		logging.String("export_dir", run.dir),
		logging.String("extension", ext),
		logging.String("quality", opts.Quality.String()),
		logging.Int("frame_count", total),
		logging.String("previous_status", prev.String()),
	)

	if !opts.ThreadedExport {
		canceled := c.exportLoop(ctx, run, func() bool { return ctx.Err() != nil })
		c.releaseExportLock()
		ev := c.finalizeExport(run, canceled)
		c.emit(ev)
		if canceled {
			return ctx.Err()
		}
		return ev.Err
	}

	var h *task.Handle
	h = task.New(EventExportComplete.Operation(), func(ctx context.Context, h *task.Handle) {
		c.exportLoop(ctx, run, h.Canceled)
	}, c.schedule, func(o task.Outcome) {
		c.finishExport(h, run, o.Canceled)
	}, c.logger)
	c.mu.Lock()
	c.exporter = h
	c.mu.Unlock()
	c.metrics.WorkerStarted(EventExportComplete.Operation())
	if err := h.Start(runCtx); err != nil {
		c.mu.Lock()
		c.exporter = nil
		c.mu.Unlock()
		c.metrics.WorkerStopped(EventExportComplete.Operation())
		c.releaseExportLock()
		return err
	}
	return nil
}

// prepareExport validates the request, takes the destination lock and creates
// the timestamp folder.
func (c *Controller) prepareExport(run *exportRun, opts Options, timestamp string, total int) (*fileutil.DirLock, error) {
	if total == 0 {
		return nil, fmt.Errorf("export %s: %w", run.folder, ErrNoFrames)
	}
	if !codec.CanEncode(run.ext) {
		return nil, fmt.Errorf("export extension %q: %w", run.ext, codec.ErrUnsupportedFormat)
	}
	if err := os.MkdirAll(run.folder, 0o755); err != nil {
		return nil, fmt.Errorf("create export folder: %w", err)
	}
	lock, err := fileutil.LockDir(run.folder, timestamp)
	if err != nil {
		if errors.Is(err, fileutil.ErrLocked) {
			return nil, fmt.Errorf("export %s: %w: %w", run.dir, ErrBusy, err)
		}
		return nil, err
	}
	if err := preflight.Require(preflight.ExportChecks(run.folder, opts.MinFreeMiB)); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	if err := os.MkdirAll(run.dir, 0o755); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return lock, nil
}

// exportLoop writes frames from the export cursor on. It reports whether it
// stopped because canceled returned true.
func (c *Controller) exportLoop(ctx context.Context, run *exportRun, canceled func() bool) bool {
	c.mu.Lock()
	total := c.exportExpected
	c.mu.Unlock()
	for {
		if canceled() {
			return true
		}
		c.mu.Lock()
		i := c.exportCursor
		c.mu.Unlock()
		if i < 0 || i >= total {
			return false
		}
		c.exportFrame(run, i)
		c.mu.Lock()
		c.exportCursor = i + 1
		c.mu.Unlock()

		percent := float64(i+1) / float64(total) * 100
		if run.progress.ShouldLog(percent, EventExportComplete.Operation()) {
			run.logger.Info("export progress",
				logging.Percent(float64(i+1)/float64(total)),
				logging.Int("frames_done", i+1),
				logging.Int("frame_count", total),
			)
		}
		sleepFrame(ctx.Done(), run.delay)
	}
}

func (c *Controller) exportFrame(run *exportRun, i int) {
	slot, err := c.store.Slot(i)
	if err != nil {
		return
	}
	if !slot.Failed && !slot.Loaded() {
		if err := c.store.Load(i); err == nil {
			slot, _ = c.store.Slot(i)
		} else {
			slot.Failed = true
		}
	}
	if slot.Failed || slot.Pixels == nil {
		run.logger.Debug("export skipped failed frame",
			logging.Int(logging.FieldFrameIndex, i),
			logging.String(logging.FieldFrameID, slot.Identifier),
		)
		return
	}

	dest := filepath.Join(run.dir, slot.Identifier+"."+run.ext)
	if fileutil.Exists(dest) && !run.overwrite {
		run.skipped++
		c.metrics.FrameSkipped()
		run.logger.Info("export destination exists; skipping",
			logging.Int(logging.FieldFrameIndex, i),
			logging.String(logging.FieldPath, dest),
		)
		return
	}
	if err := c.deps.Encoder.Encode(slot.Pixels, dest, run.quality); err != nil {
		run.failed++
		c.metrics.FrameEncoded(false)
		logging.WarnWithContext(run.logger, "frame export failed", "frame_export_failed",
			logging.Int(logging.FieldFrameIndex, i),
			logging.String(logging.FieldFrameID, slot.Identifier),
			logging.String(logging.FieldPath, dest),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the export directory is writable and has space"),
			logging.String(logging.FieldImpact, "frame missing from export"),
		)
		return
	}
	run.written++
	c.metrics.FrameEncoded(true)
}

func (c *Controller) finishExport(h *task.Handle, run *exportRun, canceled bool) {
	c.mu.Lock()
	if c.exporter != h {
		c.mu.Unlock()
		return
	}
	c.exporter = nil
	c.mu.Unlock()
	c.metrics.WorkerStopped(EventExportComplete.Operation())
	c.releaseExportLock()
	c.emit(c.finalizeExport(run, canceled))
}

func (c *Controller) releaseExportLock() {
	c.mu.Lock()
	lock := c.exportLock
	c.exportLock = nil
	c.mu.Unlock()
	if err := lock.Unlock(); err != nil {
		c.logger.Debug("release export lock failed", logging.Error(err))
	}
}

func (c *Controller) finalizeExport(run *exportRun, canceled bool) Event {
	ev := Event{
		Kind:     EventExportComplete,
		RunID:    run.runID,
		Folder:   run.folder,
		Frames:   run.written,
		Failed:   run.failed,
		Skipped:  run.skipped,
		Canceled: canceled,
		Err:      run.err,
		Elapsed:  c.deps.Clock().Sub(run.started),
	}
	if ev.Err == nil && !canceled && run.written+run.skipped == 0 {
		ev.Err = fmt.Errorf("export %s: %w", run.dir, ErrNoFrames)
	}
	ev.Succeeded = ev.Err == nil && !canceled

	usable := c.store.Usable() > 0
	c.mu.Lock()
	if ev.Succeeded {
		c.exported = true
		c.exportCursor = -1
	}
	c.settleStatusLocked(usable)
	c.mu.Unlock()

	attrs := []logging.Attr{
		logging.String("export_dir", run.dir),
		logging.Int("frames_written", run.written),
		logging.Int("frames_skipped", run.skipped),
		logging.Int("frames_failed", run.failed),
		logging.Duration("elapsed", ev.Elapsed),
		logging.String("outcome", ev.Outcome()),
	}
	switch {
	case ev.Succeeded:
		run.logger.Info("export complete", logging.Args(attrs...)...)
	case canceled:
		run.logger.Info("export canceled", logging.Args(attrs...)...)
	default:
		logging.ErrorWithContext(run.logger, "export failed", "export_failed",
			append(attrs,
				logging.Error(ev.Err),
				logging.String(logging.FieldErrorHint, exportHint(ev.Err)),
			)...)
	}
	return ev
}

func exportHint(err error) string {
	switch {
	case errors.Is(err, ErrBusy):
		return "another export is writing to the same timestamp folder; set a different timestamp"
	case errors.Is(err, preflight.ErrFailed):
		return "check free space and write permission on the export folder"
	case errors.Is(err, codec.ErrUnsupportedFormat):
		return "export to png, jpg, bmp or tiff"
	case errors.Is(err, ErrNoFrames):
		return "import or load frames before exporting"
	default:
		return "check logs for details"
	}
}

// PauseExport stops the export worker after its current frame.
func (c *Controller) PauseExport() error {
	return c.control(EventExportComplete, (*task.Handle).Pause)
}

// ResumeExport continues a paused export from its cursor.
func (c *Controller) ResumeExport() error {
	return c.control(EventExportComplete, (*task.Handle).Resume)
}

// CancelExport stops the export worker and blocks until it has exited.
func (c *Controller) CancelExport() error {
	return c.control(EventExportComplete, (*task.Handle).Cancel)
}

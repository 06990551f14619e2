package sequence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"imageseq/internal/fileutil"
	"imageseq/internal/logging"
	"imageseq/internal/scanner"
	"imageseq/internal/task"
)

// importRun is the state of one import. Only the worker body touches entries
// and err until the body has returned.
type importRun struct {
	runID   string
	folder  string
	scanner *scanner.Scanner
	delay   time.Duration
	started time.Time
	logger  *slog.Logger

	scanned  bool
	entries  []scanner.Entry
	err      error
	progress *logging.ProgressSampler
}

// StartImport fills the sequence from the image files in folder. Any frame
// data from an earlier operation is discarded first. In threaded mode the
// call returns once the worker is running; completion arrives as an import
// event after a Tick. In synchronous mode the event has been emitted by the
// time StartImport returns.
//
// Setup failures still emit exactly one import event and are returned.
func (c *Controller) StartImport(ctx context.Context, folder string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.importer != nil {
		c.mu.Unlock()
		return fmt.Errorf("import %s: %w", folder, ErrBusy)
	}
	c.mu.Unlock()

	if c.hasFrameData() {
		c.teardown()
	}

	opts := c.options()
	runID := c.deps.NewRunID()
	runCtx := logging.WithOperation(logging.WithRunID(ctx, runID), EventImportComplete.Operation())
	run := &importRun{
		runID:    runID,
		folder:   folder,
		delay:    opts.ImportDelay,
		started:  c.deps.Clock(),
		logger:   logging.WithContext(runCtx, c.logger).With(logging.String("folder", folder)),
		progress: logging.NewProgressSampler(10),
	}

	c.mu.Lock()
	c.status = StatusImporting
	c.importCursor = 0
	c.importExpected = 0
	c.mu.Unlock()

	sc, err := scanner.New(scanner.Options{
		ExtraExtension: opts.ImportExtension,
		MaxFrames:      opts.MaxFrames,
		Pattern:        opts.Pattern,
	})
	if err == nil && !fileutil.IsDir(folder) {
		err = fmt.Errorf("%s: %w", folder, ErrFolderNotFound)
	}
	if err != nil {
		run.err = err
		ev := c.finalizeImport(run, false)
		c.emit(ev)
		return ev.Err
	}
	run.scanner = sc
	run.logger.Info("import started",
		logging.Bool("threaded", opts.ThreadedImport),
		logging.Int("max_frames", opts.MaxFrames),
	)

	if !opts.ThreadedImport {
		return c.importSync(ctx, run)
	}

	var h *task.Handle
	h = task.New(EventImportComplete.Operation(), c.importBody(run), c.schedule, func(o task.Outcome) {
		c.finishImport(h, run, o.Canceled)
	}, c.logger)
	c.mu.Lock()
	c.importer = h
	c.mu.Unlock()
	c.metrics.WorkerStarted(EventImportComplete.Operation())
	if err := h.Start(runCtx); err != nil {
		c.mu.Lock()
		c.importer = nil
		c.mu.Unlock()
		c.metrics.WorkerStopped(EventImportComplete.Operation())
		return err
	}
	return nil
}

// importSync scans and appends one unloaded slot per file. Pixels decode on
// first bind, so only the dimension probe reads image data here.
func (c *Controller) importSync(ctx context.Context, run *importRun) error {
	if !c.scanImport(run) {
		ev := c.finalizeImport(run, false)
		c.emit(ev)
		return ev.Err
	}
	canceled := false
	for i, entry := range run.entries {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		c.store.Append(entry.Name, entry.Path(run.folder), nil)
		c.mu.Lock()
		c.importCursor = i + 1
		c.mu.Unlock()
	}
	ev := c.finalizeImport(run, canceled)
	c.emit(ev)
	if canceled {
		return ctx.Err()
	}
	return ev.Err
}

func (c *Controller) scanImport(run *importRun) bool {
	run.scanned = true
	entries, err := run.scanner.Scan(run.folder)
	if err != nil {
		if errors.Is(err, scanner.ErrNoMatches) {
			err = fmt.Errorf("%w: %w", ErrNoFrames, err)
		}
		run.err = err
		return false
	}
	run.entries = entries
	c.mu.Lock()
	c.importExpected = len(entries)
	c.mu.Unlock()
	run.logger.Debug("import folder scanned", logging.Int("frame_count", len(entries)))
	return true
}

func (c *Controller) importBody(run *importRun) task.Body {
	return func(ctx context.Context, h *task.Handle) {
		if !run.scanned && !c.scanImport(run) {
			return
		}
		total := len(run.entries)
		for {
			if h.Canceled() {
				return
			}
			c.mu.Lock()
			i := c.importCursor
			c.mu.Unlock()
			if i < 0 || i >= total {
				return
			}
			c.importFrame(run, i)
			c.mu.Lock()
			c.importCursor = i + 1
			c.mu.Unlock()

			percent := float64(i+1) / float64(total) * 100
			if run.progress.ShouldLog(percent, EventImportComplete.Operation()) {
				run.logger.Info("import progress",
					logging.Percent(float64(i+1)/float64(total)),
					logging.Int("frames_done", i+1),
					logging.Int("frame_count", total),
				)
			}
			sleepFrame(ctx.Done(), run.delay)
		}
	}
}

// importFrame appends slot i and decodes it. A decode failure marks only this
// slot; the loop moves on.
func (c *Controller) importFrame(run *importRun, i int) {
	entry := run.entries[i]
	path := entry.Path(run.folder)
	if !fileutil.Exists(path) {
		logging.WarnWithContext(run.logger, "frame file missing", "frame_missing",
			logging.Int(logging.FieldFrameIndex, i),
			logging.String(logging.FieldPath, path),
			logging.String(logging.FieldImpact, "frame will be marked failed"),
		)
	}
	idx := c.store.Append(entry.Name, path, nil)
	_ = c.store.Load(idx)
}

func (c *Controller) finishImport(h *task.Handle, run *importRun, canceled bool) {
	c.mu.Lock()
	if c.importer != h {
		c.mu.Unlock()
		return
	}
	c.importer = nil
	c.mu.Unlock()
	c.metrics.WorkerStopped(EventImportComplete.Operation())
	c.emit(c.finalizeImport(run, canceled))
}

// finalizeImport settles flags and status and builds the import event.
func (c *Controller) finalizeImport(run *importRun, canceled bool) Event {
	usable := false
	if run.err == nil {
		usable = c.captureDimensions()
	}
	total := c.store.Len()
	ev := Event{
		Kind:     EventImportComplete,
		RunID:    run.runID,
		Folder:   run.folder,
		Frames:   total,
		Failed:   total - c.store.Usable(),
		Canceled: canceled,
		Err:      run.err,
		Elapsed:  c.deps.Clock().Sub(run.started),
	}
	if ev.Err == nil && !canceled && !usable {
		ev.Err = fmt.Errorf("import %s: %w", run.folder, ErrNoFrames)
	}
	ev.Succeeded = ev.Err == nil && !canceled

	c.mu.Lock()
	if ev.Succeeded {
		c.imported = true
		c.importCursor = -1
	}
	c.settleStatusLocked(usable)
	c.mu.Unlock()

	attrs := []logging.Attr{
		logging.Int("frame_count", ev.Frames),
		logging.Int("failed_frames", ev.Failed),
		logging.Duration("elapsed", ev.Elapsed),
		logging.String("outcome", ev.Outcome()),
	}
	switch {
	case ev.Succeeded:
		run.logger.Info("import complete", logging.Args(attrs...)...)
	case canceled:
		run.logger.Info("import canceled", logging.Args(attrs...)...)
	default:
		logging.ErrorWithContext(run.logger, "import failed", "import_failed",
			append(attrs,
				logging.Error(ev.Err),
				logging.String(logging.FieldErrorHint, importHint(ev.Err)),
			)...)
	}
	return ev
}

func importHint(err error) string {
	switch {
	case errors.Is(err, ErrFolderNotFound):
		return "check the import folder path exists and is a directory"
	case errors.Is(err, scanner.ErrNoMatches):
		return "the folder has no png, jpg, jpeg, tiff or bmp files; set import.extension for other formats"
	case errors.Is(err, ErrNoFrames):
		return "every frame failed to decode; check the files are valid images"
	default:
		return "check logs for details"
	}
}

// PauseImport stops the import worker after its current frame.
func (c *Controller) PauseImport() error {
	return c.control(EventImportComplete, (*task.Handle).Pause)
}

// ResumeImport continues a paused import from its cursor.
func (c *Controller) ResumeImport() error {
	return c.control(EventImportComplete, (*task.Handle).Resume)
}

// CancelImport stops the import worker and blocks until it has exited. The
// import event still follows on the next Tick with Canceled set.
func (c *Controller) CancelImport() error {
	return c.control(EventImportComplete, (*task.Handle).Cancel)
}

func (c *Controller) control(kind EventKind, op func(*task.Handle) error) error {
	c.mu.Lock()
	h := c.importer
	if kind == EventExportComplete {
		h = c.exporter
	}
	c.mu.Unlock()
	if h == nil {
		logging.WarnWithContext(c.logger, "no active worker", "no_active_worker",
			logging.String(logging.FieldOperation, kind.Operation()),
			logging.String(logging.FieldErrorHint, "start the operation before pausing, resuming or canceling"),
			logging.String(logging.FieldImpact, "request ignored"),
		)
		return fmt.Errorf("%s: %w", kind.Operation(), ErrNoActiveTask)
	}
	if err := op(h); err != nil {
		c.logger.Warn("worker control ignored", logging.String(logging.FieldOperation, kind.Operation()), logging.Error(err))
		return err
	}
	return nil
}

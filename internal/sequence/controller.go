package sequence

import (
	"errors"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"imageseq/internal/codec"
	"imageseq/internal/fileutil"
	"imageseq/internal/framestore"
	"imageseq/internal/logging"
	"imageseq/internal/metrics"
	"imageseq/internal/scanner"
	"imageseq/internal/task"
)

var (
	// ErrFolderNotFound reports a missing import folder.
	ErrFolderNotFound = scanner.ErrFolderNotFound
	// ErrNoFrames reports an operation that finished without a usable frame.
	ErrNoFrames = errors.New("no usable frames")
	// ErrNotReady reports navigation before the sequence is ready.
	ErrNotReady = errors.New("sequence not ready")
	// ErrNoActiveTask reports pause, resume or cancel without a worker.
	ErrNoActiveTask = errors.New("no active operation")
	// ErrBusy reports a start while an operation of the same kind runs.
	ErrBusy = errors.New("operation already running")
)

// Controller drives one image sequence.
type Controller struct {
	deps     Deps
	store    *framestore.Store
	logger   *slog.Logger
	metrics  *metrics.Recorder
	loop     *task.Loop
	schedule task.Scheduler

	mu         sync.Mutex
	opts       Options
	timestamp  string
	status     Status
	importer   *task.Handle
	exporter   *task.Handle
	exportLock *fileutil.DirLock
	exportDir  string

	importExpected int
	exportExpected int
	loadExpected   int
	importCursor   int
	exportCursor   int
	loadCursor     int
	loadRun        *loadRun

	currentFrame int
	width        int
	height       int
	nameCounter  int

	imported bool
	exported bool
	loaded   bool

	evMu      sync.Mutex
	nextEvID  int
	listeners map[EventKind][]listener
}

// New builds a controller in the Undefined state.
func New(opts Options, deps Deps) *Controller {
	deps = deps.withDefaults()
	if opts.FrameRate <= 0 || math.IsNaN(opts.FrameRate) || math.IsInf(opts.FrameRate, 0) {
		opts.FrameRate = DefaultOptions().FrameRate
	}
	if opts.NamePadding <= 0 {
		opts.NamePadding = DefaultOptions().NamePadding
	}
	if opts.MaxFrames < 0 {
		opts.MaxFrames = 0
	}
	if opts.ExportExtension == "" {
		opts.ExportExtension = DefaultOptions().ExportExtension
	}

	c := &Controller{
		deps:         deps,
		logger:       logging.NewComponentLogger(deps.Logger, "sequence"),
		metrics:      deps.Metrics,
		opts:         opts,
		timestamp:    opts.Timestamp,
		status:       StatusUndefined,
		importCursor: -1,
		exportCursor: -1,
		loadCursor:   -1,
		width:        -1,
		height:       -1,
		listeners:    make(map[EventKind][]listener),
	}
	if c.timestamp == "" {
		c.timestamp = FormatTimestamp(deps.Clock())
	}
	c.schedule = deps.Scheduler
	if c.schedule == nil {
		c.loop = task.NewLoop()
		c.schedule = c.loop
	}

	var uploader framestore.Uploader
	if deps.Uploader != nil {
		uploader = countingUploader{next: deps.Uploader, metrics: deps.Metrics}
	}
	c.store = framestore.New(meteredDecoder{next: deps.Decoder, metrics: deps.Metrics}, uploader, deps.Logger)
	c.store.SetFilter(opts.Filter)
	return c
}

// Tick runs one completion poll round on the controller's own loop. Hosts that
// passed a Scheduler in Deps tick that instead; Tick is then a no-op.
func (c *Controller) Tick() {
	if c.loop != nil {
		c.loop.Tick()
	}
}

// Close cancels and joins any running worker, drops its poll without running
// the completion callback and clears all frame data.
func (c *Controller) Close() {
	c.teardown()
}

func (c *Controller) teardown() {
	c.mu.Lock()
	importer, exporter := c.importer, c.exporter
	lock := c.exportLock
	c.importer, c.exporter, c.exportLock = nil, nil, nil
	c.mu.Unlock()

	if importer != nil {
		_ = importer.Cancel()
		importer.Detach()
		c.metrics.WorkerStopped(EventImportComplete.Operation())
	}
	if exporter != nil {
		_ = exporter.Cancel()
		exporter.Detach()
		c.metrics.WorkerStopped(EventExportComplete.Operation())
	}
	if err := lock.Unlock(); err != nil {
		c.logger.Debug("release export lock failed", logging.Error(err))
	}

	c.store.Reset()

	c.mu.Lock()
	c.status = StatusUndefined
	c.importExpected, c.exportExpected, c.loadExpected = 0, 0, 0
	c.importCursor, c.exportCursor, c.loadCursor = -1, -1, -1
	c.loadRun = nil
	c.exportDir = ""
	c.currentFrame = 0
	c.width, c.height = -1, -1
	c.nameCounter = 0
	c.imported, c.exported, c.loaded = false, false, false
	c.mu.Unlock()
}

func (c *Controller) hasFrameData() bool {
	if c.store.Len() > 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imported || c.loaded || c.importer != nil || c.exporter != nil || c.loadRun != nil
}

// settleStatusLocked picks the status after an operation finished. Any
// remaining worker keeps its status; otherwise the sequence is ready when it
// holds at least one usable frame.
func (c *Controller) settleStatusLocked(usable bool) {
	switch {
	case c.importer != nil:
		c.status = StatusImporting
	case c.exporter != nil:
		c.status = StatusExporting
	case c.loadRun != nil:
		c.status = StatusLoading
	case usable:
		c.status = StatusReady
	default:
		c.status = StatusUndefined
	}
}

// captureDimensions records width and height from the first slot that loads,
// decoding lazily as needed. It reports whether any slot is usable.
func (c *Controller) captureDimensions() bool {
	n := c.store.Len()
	for i := 0; i < n; i++ {
		slot, err := c.store.Slot(i)
		if err != nil || slot.Failed {
			continue
		}
		if err := c.store.Load(i); err != nil {
			continue
		}
		slot, err = c.store.Slot(i)
		if err != nil || slot.Pixels == nil {
			continue
		}
		b := slot.Pixels.Bounds()
		c.mu.Lock()
		c.width, c.height = b.Dx(), b.Dy()
		c.mu.Unlock()
		return true
	}
	return false
}

func (c *Controller) options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Status returns the lifecycle status.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// IsReady reports whether navigation is allowed.
func (c *Controller) IsReady() bool { return c.Status() == StatusReady }

// IsImported reports a successful import.
func (c *Controller) IsImported() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.imported
}

// IsExported reports a successful export.
func (c *Controller) IsExported() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exported
}

// IsLoaded reports a successful in-memory load.
func (c *Controller) IsLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// IsLoading reports an open StartLoading session.
func (c *Controller) IsLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadRun != nil
}

// TotalFrames returns the slot count, failed slots included.
func (c *Controller) TotalFrames() int { return c.store.Len() }

// LengthInSeconds is TotalFrames at the configured frame rate.
func (c *Controller) LengthInSeconds() float64 {
	rate := c.FrameRate()
	if rate <= 0 {
		return 0
	}
	return float64(c.store.Len()) / rate
}

// Width of the first usable frame, or -1.
func (c *Controller) Width() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width
}

// Height of the first usable frame, or -1.
func (c *Controller) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// FilePath returns the source path of slot i. In-memory frames have none.
func (c *Controller) FilePath(i int) (string, error) {
	slot, err := c.store.Slot(i)
	if err != nil {
		c.logger.Error("file path index out of range", logging.Int(logging.FieldFrameIndex, i))
		return "", err
	}
	return slot.Path, nil
}

// Frames returns a snapshot of every slot.
func (c *Controller) Frames() []framestore.Slot { return c.store.Slots() }

// FrameIndexAtPercent maps a position in [0,1) to a slot index with wrapping.
func (c *Controller) FrameIndexAtPercent(p float64) int { return c.store.IndexAtPercent(p) }

// PercentAtFrameIndex maps a slot index to [0,1].
func (c *Controller) PercentAtFrameIndex(i int) float64 { return c.store.PercentAtIndex(i) }

// ExportDir is the folder the current or last export writes to.
func (c *Controller) ExportDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exportDir
}

// SetMaxFrames caps the next import. Negative values mean unlimited.
func (c *Controller) SetMaxFrames(n int) {
	c.mu.Lock()
	imported := c.imported
	c.opts.MaxFrames = max(n, 0)
	c.mu.Unlock()
	if imported {
		logging.ErrorWithContext(c.logger, "max frames changed after import", "max_frames_after_import",
			logging.Int("max_frames", n),
			logging.String(logging.FieldErrorHint, "set the cap before importing; it applies to the next import"),
		)
	}
}

// MaxFrames returns the import cap; zero means unlimited.
func (c *Controller) MaxFrames() int { return c.options().MaxFrames }

// SetImportExtension registers one extension beyond the default allow-list.
func (c *Controller) SetImportExtension(ext string) {
	c.mu.Lock()
	c.opts.ImportExtension = codec.NormalizeExt(ext)
	c.mu.Unlock()
}

// EnableThreadedImport selects background or synchronous import.
func (c *Controller) EnableThreadedImport(enabled bool) {
	c.mu.Lock()
	c.opts.ThreadedImport = enabled
	c.mu.Unlock()
}

// EnableThreadedExport selects background or synchronous export.
func (c *Controller) EnableThreadedExport(enabled bool) {
	c.mu.Lock()
	c.opts.ThreadedExport = enabled
	c.mu.Unlock()
}

// EnableOverwriteOnExport lets export replace existing files.
func (c *Controller) EnableOverwriteOnExport(enabled bool) {
	c.mu.Lock()
	c.opts.Overwrite = enabled
	c.mu.Unlock()
}

// SetExportQuality sets the encoder quality.
func (c *Controller) SetExportQuality(q codec.Quality) {
	c.mu.Lock()
	c.opts.Quality = q
	c.mu.Unlock()
}

// SetFrameRate changes the rate used by time-based navigation. Non-positive
// rates are ignored.
func (c *Controller) SetFrameRate(rate float64) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		logging.WarnWithContext(c.logger, "frame rate ignored", "invalid_frame_rate",
			logging.Float64("frame_rate", rate),
			logging.String(logging.FieldErrorHint, "use a positive frames-per-second value"),
			logging.String(logging.FieldImpact, "previous frame rate kept"),
		)
		return
	}
	c.mu.Lock()
	c.opts.FrameRate = rate
	c.mu.Unlock()
}

// FrameRate returns frames per second.
func (c *Controller) FrameRate() float64 { return c.options().FrameRate }

// SetCreationTimestamp names the export subfolder for later exports.
func (c *Controller) SetCreationTimestamp(ts string) {
	c.mu.Lock()
	c.timestamp = ts
	c.mu.Unlock()
}

// CreationTimestamp returns the export subfolder name.
func (c *Controller) CreationTimestamp() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timestamp
}

// SetMinMagFilter sets the filters passed to the uploader on the next bind.
func (c *Controller) SetMinMagFilter(minFilter, magFilter int) {
	f := framestore.Filter{Min: minFilter, Mag: magFilter}
	c.mu.Lock()
	c.opts.Filter = f
	c.mu.Unlock()
	c.store.SetFilter(f)
}

type meteredDecoder struct {
	next    codec.Decoder
	metrics *metrics.Recorder
}

func (d meteredDecoder) Decode(path string) (image.Image, error) {
	img, err := d.next.Decode(path)
	d.metrics.FrameDecoded(err == nil)
	return img, err
}

type countingUploader struct {
	next    framestore.Uploader
	metrics *metrics.Recorder
}

func (u countingUploader) Upload(pixels image.Image, filter framestore.Filter) (framestore.Handle, error) {
	h, err := u.next.Upload(pixels, filter)
	if err == nil {
		u.metrics.FrameUploaded()
	}
	return h, err
}

func sleepFrame(done <-chan struct{}, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
	}
}

package sequence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"imageseq/internal/codec"
	"imageseq/internal/config"
	"imageseq/internal/framestore"
	"imageseq/internal/metrics"
	"imageseq/internal/task"
)

// FormatTimestamp renders t as the default export subfolder name,
// year-month-day-hour-minute-second-millisecond joined by dashes.
func FormatTimestamp(t time.Time) string {
	return fmt.Sprintf("%s-%03d", t.Format("2006-01-02-15-04-05"), t.Nanosecond()/int(time.Millisecond))
}

// Options are the tunables of a Controller. Changing them through the setter
// methods affects the next operation, never one already running.
type Options struct {
	MaxFrames       int
	ImportExtension string
	Pattern         string
	ThreadedImport  bool
	ThreadedExport  bool
	Overwrite       bool
	ExportExtension string
	Quality         codec.Quality
	FrameRate       float64
	Filter          framestore.Filter
	NamePadding     int
	// Timestamp names the export subfolder; empty uses the construction time.
	Timestamp   string
	ImportDelay time.Duration
	ExportDelay time.Duration
	MinFreeMiB  int64
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		ThreadedImport:  true,
		ThreadedExport:  true,
		ExportExtension: "png",
		Quality:         codec.QualityBest,
		FrameRate:       30,
		Filter:          framestore.Filter{Min: -1, Mag: -1},
		NamePadding:     3,
		ImportDelay:     5 * time.Millisecond,
		ExportDelay:     5 * time.Millisecond,
	}
}

// OptionsFromConfig translates a loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	if cfg == nil {
		return opts, nil
	}
	quality, err := codec.ParseQuality(cfg.Export.Quality)
	if err != nil {
		return Options{}, fmt.Errorf("export quality: %w", err)
	}
	opts.MaxFrames = cfg.Import.MaxFrames
	opts.ImportExtension = cfg.Import.Extension
	opts.Pattern = cfg.Import.Pattern
	opts.ThreadedImport = cfg.Import.Threaded
	opts.ThreadedExport = cfg.Export.Threaded
	opts.Overwrite = cfg.Export.Overwrite
	opts.ExportExtension = cfg.Export.Extension
	opts.Quality = quality
	opts.FrameRate = cfg.Playback.FrameRate
	opts.Filter = framestore.Filter{Min: cfg.Playback.MinFilter, Mag: cfg.Playback.MagFilter}
	opts.NamePadding = cfg.Playback.NamePadding
	opts.ImportDelay = cfg.ImportFrameDelay()
	opts.ExportDelay = cfg.ExportFrameDelay()
	opts.MinFreeMiB = cfg.Export.MinFreeMiB
	return opts, nil
}

// Deps are the collaborators a Controller needs. Zero values get defaults:
// the filesystem codec, no uploader, a private task loop driven by
// Controller.Tick, a no-op logger, no metrics, the wall clock and UUID run ids.
type Deps struct {
	Decoder   codec.Decoder
	Encoder   codec.Encoder
	Uploader  framestore.Uploader
	Scheduler task.Scheduler
	Logger    *slog.Logger
	Metrics   *metrics.Recorder
	Clock     func() time.Time
	NewRunID  func() string
}

func (d Deps) withDefaults() Deps {
	if d.Decoder == nil {
		d.Decoder = codec.New()
	}
	if d.Encoder == nil {
		d.Encoder = codec.New()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.NewRunID == nil {
		d.NewRunID = uuid.NewString
	}
	return d
}

package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/bmatcuk/doublestar/v4"

	"imageseq/internal/codec"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validatePlayback(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ExportDir == "" {
		return fmt.Errorf("paths.export_dir must be set (or set %s)", exportDirEnv)
	}
	return nil
}

func (c *Config) validateImport() error {
	if c.Import.MaxFrames < 0 {
		return errors.New("import.max_frames must be >= 0")
	}
	if c.Import.Pattern != "" && !doublestar.ValidatePattern(c.Import.Pattern) {
		return fmt.Errorf("import.pattern %q is not a valid glob", c.Import.Pattern)
	}
	return nil
}

func (c *Config) validateExport() error {
	if !codec.CanEncode(c.Export.Extension) {
		return fmt.Errorf("export.extension %q is not supported (use png, jpg, jpeg, bmp, tif or tiff)", c.Export.Extension)
	}
	if _, err := codec.ParseQuality(c.Export.Quality); err != nil {
		return fmt.Errorf("export.quality: %w", err)
	}
	return nil
}

func (c *Config) validatePlayback() error {
	rate := c.Playback.FrameRate
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return errors.New("playback.frame_rate must be positive")
	}
	return ensurePositiveMap(map[string]int{
		"playback.name_padding": c.Playback.NamePadding,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

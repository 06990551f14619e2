package config

import (
	"fmt"
	"os"
	"strings"

	"imageseq/internal/codec"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImport()
	c.normalizeExport()
	c.normalizePlayback()
	c.normalizeLogging()
	c.Metrics.Addr = strings.TrimSpace(c.Metrics.Addr)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ExportDir) == "" {
		if value, ok := os.LookupEnv(exportDirEnv); ok && strings.TrimSpace(value) != "" {
			c.Paths.ExportDir = strings.TrimSpace(value)
		} else {
			c.Paths.ExportDir = defaultExportDir
		}
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.CatalogPath, err = expandPath(strings.TrimSpace(c.Paths.CatalogPath)); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeImport() {
	c.Import.Extension = codec.NormalizeExt(c.Import.Extension)
	c.Import.Pattern = strings.TrimSpace(c.Import.Pattern)
	if c.Import.FrameDelayMS < 0 {
		c.Import.FrameDelayMS = 0
	}
}

func (c *Config) normalizeExport() {
	c.Export.Extension = codec.NormalizeExt(c.Export.Extension)
	if c.Export.Extension == "" {
		c.Export.Extension = defaultExportExtension
	}
	c.Export.Quality = strings.ToLower(strings.TrimSpace(c.Export.Quality))
	if c.Export.Quality == "" {
		c.Export.Quality = defaultExportQuality
	}
	if c.Export.FrameDelayMS < 0 {
		c.Export.FrameDelayMS = 0
	}
	if c.Export.MinFreeMiB < 0 {
		c.Export.MinFreeMiB = 0
	}
}

func (c *Config) normalizePlayback() {
	if c.Playback.NamePadding <= 0 {
		c.Playback.NamePadding = defaultNamePadding
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

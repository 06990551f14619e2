package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ExportDir   string `toml:"export_dir"`
	LogDir      string `toml:"log_dir"`
	CatalogPath string `toml:"catalog_path"`
}

// Import controls how folders become sequences.
type Import struct {
	Threaded     bool   `toml:"threaded"`
	Extension    string `toml:"extension"`
	MaxFrames    int    `toml:"max_frames"`
	Pattern      string `toml:"pattern"`
	FrameDelayMS int    `toml:"frame_delay_ms"`
}

// Export controls how sequences are written back to disk.
type Export struct {
	Threaded     bool   `toml:"threaded"`
	Extension    string `toml:"extension"`
	Quality      string `toml:"quality"`
	Overwrite    bool   `toml:"overwrite"`
	MinFreeMiB   int64  `toml:"min_free_mib"`
	FrameDelayMS int    `toml:"frame_delay_ms"`
}

// Playback controls navigation and display uploads.
type Playback struct {
	FrameRate   float64 `toml:"frame_rate"`
	MinFilter   int     `toml:"min_filter"`
	MagFilter   int     `toml:"mag_filter"`
	NamePadding int     `toml:"name_padding"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Addr string `toml:"addr"`
}

// Config encapsulates all configuration values for imageseq.
//
// Configuration sections by subsystem:
//   - Paths: export root, log directory, run catalog
//   - Import: folder scanning and background import
//   - Export: output format, quality and overwrite policy
//   - Playback: frame rate and upload filters
//   - Logging: log format and level
//   - Metrics: Prometheus listener
type Config struct {
	Paths    Paths    `toml:"paths"`
	Import   Import   `toml:"import"`
	Export   Export   `toml:"export"`
	Playback Playback `toml:"playback"`
	Logging  Logging  `toml:"logging"`
	Metrics  Metrics  `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the export and log directories and the catalog's
// parent directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.ExportDir, c.Paths.LogDir}
	if c.Paths.CatalogPath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.CatalogPath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ImportFrameDelay returns the pause between frames of a background import.
func (c *Config) ImportFrameDelay() time.Duration {
	return time.Duration(c.Import.FrameDelayMS) * time.Millisecond
}

// ExportFrameDelay returns the pause between frames of a background export.
func (c *Config) ExportFrameDelay() time.Duration {
	return time.Duration(c.Export.FrameDelayMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() (string, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

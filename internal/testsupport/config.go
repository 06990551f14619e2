package testsupport

import (
	"path/filepath"
	"testing"

	"imageseq/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Frame delays are zeroed so workers run at full speed.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ExportDir = filepath.Join(base, "exports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CatalogPath = filepath.Join(base, "catalog.db")
	cfgVal.Import.FrameDelayMS = 0
	cfgVal.Export.FrameDelayMS = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithSynchronous disables threaded import and export.
func WithSynchronous() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.Threaded = false
		b.cfg.Export.Threaded = false
	}
}

// WithMaxFrames caps imports.
func WithMaxFrames(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.MaxFrames = n
	}
}

// WithOverwrite enables overwrite on export.
func WithOverwrite() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Export.Overwrite = true
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ExportDir)
}

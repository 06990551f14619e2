package config

const (
	defaultConfigPath      = "~/.config/imageseq/config.toml"
	projectConfigName      = "imageseq.toml"
	defaultExportDir       = "~/.local/share/imageseq/exports"
	defaultLogDir          = "~/.local/share/imageseq/logs"
	defaultCatalogPath     = "~/.local/share/imageseq/catalog.db"
	defaultFrameDelayMS    = 5
	defaultExportExtension = "png"
	defaultExportQuality   = "best"
	defaultFrameRate       = 30
	defaultFilter          = -1
	defaultNamePadding     = 3
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	exportDirEnv           = "IMAGESEQ_EXPORT_DIR"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ExportDir:   defaultExportDir,
			LogDir:      defaultLogDir,
			CatalogPath: defaultCatalogPath,
		},
		Import: Import{
			Threaded:     true,
			FrameDelayMS: defaultFrameDelayMS,
		},
		Export: Export{
			Threaded:     true,
			Extension:    defaultExportExtension,
			Quality:      defaultExportQuality,
			FrameDelayMS: defaultFrameDelayMS,
		},
		Playback: Playback{
			FrameRate:   defaultFrameRate,
			MinFilter:   defaultFilter,
			MagFilter:   defaultFilter,
			NamePadding: defaultNamePadding,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

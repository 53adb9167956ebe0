package config

const (
	defaultConfigPath    = "~/.config/reelforge/config.toml"
	defaultStateDir      = "~/.local/share/reelforge"
	defaultLogDir        = "~/.local/share/reelforge/logs"
	defaultOutputDir     = "~/Videos/reelforge"
	defaultArchiveDir    = "~/Videos/reelforge/archive"
	defaultFFmpeg        = "ffmpeg"
	defaultFFprobe       = "ffprobe"
	defaultFPS           = 30
	defaultVideoCodec    = "libx264"
	defaultPixelFormat   = "yuv420p"
	defaultCRF           = 20
	defaultPreviewWidth  = 640
	defaultPreviewHeight = 360
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
			OutputDir: defaultOutputDir,
		},
		Render: Render{
			FPS:           defaultFPS,
			VideoCodec:    defaultVideoCodec,
			PixelFormat:   defaultPixelFormat,
			CRF:           defaultCRF,
			KeepAudio:     true,
			PreviewWidth:  defaultPreviewWidth,
			PreviewHeight: defaultPreviewHeight,
		},
		Tools: Tools{
			FFmpeg:  defaultFFmpeg,
			FFprobe: defaultFFprobe,
		},
		Archive: Archive{
			Enabled:   false,
			OutputDir: defaultArchiveDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

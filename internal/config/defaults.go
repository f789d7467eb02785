package config

const (
	defaultOutputDir     = "~/.local/share/cadence/output"
	defaultWorkDir       = "~/.local/share/cadence/work"
	defaultLogDir        = "~/.local/share/cadence/logs"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultFrameWidth    = 1920
	defaultFrameHeight   = 1080
	defaultFPS           = 30
	defaultSafeLeft      = 120
	defaultSafeRight     = 120
	defaultSafeTop       = 150
	defaultSafeBottom    = 350
	defaultCanvasPad     = 200
	defaultWorkers       = 4
	defaultPoolSize      = 6
	defaultReorderWindow = 16
	defaultFrameTimeout  = 10
	defaultFrameRetries  = 2
	defaultShrinkSteps   = 4
	defaultEncoderPref   = "auto"
	defaultFFmpeg        = "ffmpeg"
	defaultFFprobe       = "ffprobe"
	defaultCRF           = 18
	defaultPreset        = "medium"
	defaultAudioBitrate  = "192k"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			WorkDir:   defaultWorkDir,
			LogDir:    defaultLogDir,
		},
		Frame: Frame{
			Width:  defaultFrameWidth,
			Height: defaultFrameHeight,
			FPS:    defaultFPS,
		},
		SafeZone: SafeZone{
			Left:   defaultSafeLeft,
			Right:  defaultSafeRight,
			Top:    defaultSafeTop,
			Bottom: defaultSafeBottom,
		},
		Canvas: Canvas{
			Pad: defaultCanvasPad,
		},
		Pipeline: Pipeline{
			Workers:         defaultWorkers,
			PoolSize:        defaultPoolSize,
			ReorderWindow:   defaultReorderWindow,
			FrameTimeout:    defaultFrameTimeout,
			FrameRetries:    defaultFrameRetries,
			ShrinkFontSteps: defaultShrinkSteps,
		},
		Encoder: Encoder{
			Preferred:     defaultEncoderPref,
			FFmpegBinary:  defaultFFmpeg,
			FFprobeBinary: defaultFFprobe,
			CRF:           defaultCRF,
			Preset:        defaultPreset,
			AudioBitrate:  defaultAudioBitrate,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePipeline()
	c.normalizeEncoder()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.FontPath) != "" {
		if c.Paths.FontPath, err = expandPath(c.Paths.FontPath); err != nil {
			return fmt.Errorf("paths.font_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = defaultWorkers
	}
	if c.Pipeline.PoolSize <= 0 {
		c.Pipeline.PoolSize = defaultPoolSize
	}
	if c.Pipeline.ReorderWindow <= 0 {
		c.Pipeline.ReorderWindow = defaultReorderWindow
	}
	if c.Pipeline.FrameTimeout <= 0 {
		c.Pipeline.FrameTimeout = defaultFrameTimeout
	}
	if c.Pipeline.FrameRetries < 0 {
		c.Pipeline.FrameRetries = defaultFrameRetries
	}
	if c.Pipeline.ShrinkFontSteps < 0 {
		c.Pipeline.ShrinkFontSteps = defaultShrinkSteps
	}
}

func (c *Config) normalizeEncoder() {
	c.Encoder.Preferred = strings.ToLower(strings.TrimSpace(c.Encoder.Preferred))
	if c.Encoder.Preferred == "" {
		c.Encoder.Preferred = defaultEncoderPref
	}
	if strings.TrimSpace(c.Encoder.FFmpegBinary) == "" {
		c.Encoder.FFmpegBinary = defaultFFmpeg
	}
	if strings.TrimSpace(c.Encoder.FFprobeBinary) == "" {
		c.Encoder.FFprobeBinary = defaultFFprobe
	}
	if c.Encoder.CRF <= 0 {
		c.Encoder.CRF = defaultCRF
	}
	if strings.TrimSpace(c.Encoder.Preset) == "" {
		c.Encoder.Preset = defaultPreset
	}
	if strings.TrimSpace(c.Encoder.AudioBitrate) == "" {
		c.Encoder.AudioBitrate = defaultAudioBitrate
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

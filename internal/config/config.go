package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	WorkDir   string `toml:"work_dir"`
	LogDir    string `toml:"log_dir"`
	FontPath  string `toml:"font_path"`
}

// Frame contains output frame geometry and rate.
type Frame struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	FPS    int `toml:"fps"`
}

// SafeZone contains text margins in final-frame space.
type SafeZone struct {
	Left   int `toml:"left"`
	Right  int `toml:"right"`
	Top    int `toml:"top"`
	Bottom int `toml:"bottom"`
}

// Canvas contains the working-buffer padding added around the frame to absorb
// effect bleed before cropping.
type Canvas struct {
	Pad int `toml:"pad"`
}

// Pipeline contains frame production concurrency settings.
type Pipeline struct {
	Workers         int `toml:"workers"`
	PoolSize        int `toml:"pool_size"`
	ReorderWindow   int `toml:"reorder_window"`
	FrameTimeout    int `toml:"frame_timeout"`
	FrameRetries    int `toml:"frame_retries"`
	ShrinkFontSteps int `toml:"shrink_font_steps"`
}

// Encoder contains encoding path selection and codec settings.
type Encoder struct {
	Preferred     string `toml:"preferred"` // auto, hardware, software
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	CRF           int    `toml:"crf"`
	Preset        string `toml:"preset"`
	AudioBitrate  string `toml:"audio_bitrate"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Cadence.
//
// Configuration sections by subsystem:
//   - Paths: output/work/log directories and the default font
//   - Frame: output geometry and frame rate
//   - SafeZone: text margins in final-frame space
//   - Canvas: working-buffer padding for effect bleed
//   - Pipeline: worker count, buffer pool size, reorder window, retries
//   - Encoder: hardware/software preference and codec settings
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Frame    Frame    `toml:"frame"`
	SafeZone SafeZone `toml:"safe_zone"`
	Canvas   Canvas   `toml:"canvas"`
	Pipeline Pipeline `toml:"pipeline"`
	Encoder  Encoder  `toml:"encoder"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cadence/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cadence.toml")
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

// EnsureDirectories creates required directories for render operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SampleConfig returns the embedded sample configuration file.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes the sample configuration file to the specified location.
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

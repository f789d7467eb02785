package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cadence/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Frame.Width != 1920 || cfg.Frame.FPS != 30 {
		t.Fatalf("expected defaults, got %+v", cfg.Frame)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := strings.Join([]string{
		"[frame]",
		"width = 1280",
		"height = 720",
		"fps = 24",
		"[canvas]",
		"pad = 64",
		"[paths]",
		`output_dir = "` + filepath.Join(dir, "out") + `"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Frame.Width != 1280 || cfg.Frame.Height != 720 || cfg.Frame.FPS != 24 {
		t.Fatalf("unexpected frame config: %+v", cfg.Frame)
	}
	if cfg.Canvas.Pad != 64 {
		t.Fatalf("unexpected pad: %d", cfg.Canvas.Pad)
	}
	if cfg.Encoder.Preferred != "auto" {
		t.Fatalf("expected encoder default, got %q", cfg.Encoder.Preferred)
	}
}

func TestValidateRejectsOversizedMargins(t *testing.T) {
	cfg := config.Default()
	cfg.SafeZone.Top = 600
	cfg.SafeZone.Bottom = 600
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for margins consuming frame height")
	}
}

func TestValidateRejectsOddFrameSize(t *testing.T) {
	cfg := config.Default()
	cfg.Frame.Width = 1921
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for odd frame width")
	}
}

func TestValidateRejectsUnknownEncoderPreference(t *testing.T) {
	cfg := config.Default()
	cfg.Encoder.Preferred = "quantum"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown encoder preference")
	}
}

func TestSampleConfigRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := os.WriteFile(path, []byte(config.SampleConfig()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config must load cleanly: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.Canvas.Pad != 200 {
		t.Fatalf("unexpected sample pad: %d", cfg.Canvas.Pad)
	}
}

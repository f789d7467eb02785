package testsupport

import (
	"path/filepath"
	"testing"

	"cadence/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Geometry is kept small so full-frame pixel scans stay cheap.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.FontPath = ""
	cfg.Frame.Width = 320
	cfg.Frame.Height = 180
	cfg.Frame.FPS = 10
	cfg.SafeZone.Left = 20
	cfg.SafeZone.Right = 20
	cfg.SafeZone.Top = 30
	cfg.SafeZone.Bottom = 40
	// Large enough for the default style's worst-case effect bleed.
	cfg.Canvas.Pad = 64
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.PoolSize = 2
	cfg.Pipeline.ReorderWindow = 4

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

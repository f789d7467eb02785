package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateFrame(); err != nil {
		return err
	}
	if err := c.validateSafeZone(); err != nil {
		return err
	}
	if err := c.validateCanvas(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateEncoder(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateFrame() error {
	if c.Frame.Width <= 0 || c.Frame.Height <= 0 {
		return errors.New("frame.width and frame.height must be positive")
	}
	if c.Frame.Width%2 != 0 || c.Frame.Height%2 != 0 {
		return errors.New("frame.width and frame.height must be even for 4:2:0 encoding")
	}
	if c.Frame.FPS <= 0 || c.Frame.FPS > 240 {
		return errors.New("frame.fps must be between 1 and 240")
	}
	return nil
}

func (c *Config) validateSafeZone() error {
	for name, v := range map[string]int{
		"safe_zone.left":   c.SafeZone.Left,
		"safe_zone.right":  c.SafeZone.Right,
		"safe_zone.top":    c.SafeZone.Top,
		"safe_zone.bottom": c.SafeZone.Bottom,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.SafeZone.Left+c.SafeZone.Right >= c.Frame.Width {
		return errors.New("safe_zone horizontal margins leave no usable width")
	}
	if c.SafeZone.Top+c.SafeZone.Bottom >= c.Frame.Height {
		return errors.New("safe_zone vertical margins leave no usable height")
	}
	return nil
}

func (c *Config) validateCanvas() error {
	if c.Canvas.Pad < 0 {
		return errors.New("canvas.pad must not be negative")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 64 {
		return errors.New("pipeline.workers must be between 1 and 64")
	}
	if c.Pipeline.PoolSize < 2 {
		return errors.New("pipeline.pool_size must be at least 2")
	}
	if c.Pipeline.ReorderWindow < c.Pipeline.PoolSize {
		return errors.New("pipeline.reorder_window must be at least pipeline.pool_size")
	}
	return nil
}

func (c *Config) validateEncoder() error {
	switch c.Encoder.Preferred {
	case "auto", "hardware", "software":
	default:
		return fmt.Errorf("encoder.preferred must be auto, hardware, or software (got %q)", c.Encoder.Preferred)
	}
	if c.Encoder.CRF < 0 || c.Encoder.CRF > 51 {
		return errors.New("encoder.crf must be between 0 and 51")
	}
	return nil
}

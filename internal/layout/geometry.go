package layout

import "fmt"

// SafeZoneConfig holds the text margins in final-frame space. Margins are
// independent of canvas padding; the two are composed additively exactly once
// during canvas translation.
type SafeZoneConfig struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// CanvasConfig describes the padded working buffer. The padded dimensions are
// frame dimensions plus pad on every side.
type CanvasConfig struct {
	FrameWidth  int
	FrameHeight int
	Pad         int
}

// PaddedWidth returns the working canvas width.
func (c CanvasConfig) PaddedWidth() int { return c.FrameWidth + 2*c.Pad }

// PaddedHeight returns the working canvas height.
func (c CanvasConfig) PaddedHeight() int { return c.FrameHeight + 2*c.Pad }

// Validate rejects geometry the engine cannot lay out into.
func (z SafeZoneConfig) Validate(c CanvasConfig) error {
	if z.Left < 0 || z.Right < 0 || z.Top < 0 || z.Bottom < 0 {
		return fmt.Errorf("safe zone margins must not be negative")
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame dimensions must be positive")
	}
	if c.Pad < 0 {
		return fmt.Errorf("canvas pad must not be negative")
	}
	if z.Left+z.Right >= c.FrameWidth {
		return fmt.Errorf("horizontal margins (%d+%d) leave no usable width in %d", z.Left, z.Right, c.FrameWidth)
	}
	if z.Top+z.Bottom >= c.FrameHeight {
		return fmt.Errorf("vertical margins (%d+%d) leave no usable height in %d", z.Top, z.Bottom, c.FrameHeight)
	}
	return nil
}

package layout

import (
	"fmt"
	"image/color"
	"strings"
)

// Alignment controls horizontal placement within the safe zone.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// VerticalPosition controls vertical placement within the safe zone.
type VerticalPosition string

const (
	PositionTop    VerticalPosition = "top"
	PositionCenter VerticalPosition = "center"
	PositionBottom VerticalPosition = "bottom"
)

// Animation selects the audio-reactive treatment applied by the compositor.
type Animation string

const (
	AnimationNone  Animation = "none"
	AnimationPulse Animation = "pulse"
	AnimationGlow  Animation = "glow"
)

// Style is the fully-resolved text styling for one job, optionally overridden
// per cue. Immutable at render time; no dynamic lookups.
type Style struct {
	FontPath         string
	FontSize         float64
	Color            color.RGBA
	StrokeWidth      int
	GlowRadius       int
	GlowScale        float64
	PulseScale       float64
	Alignment        Alignment
	VerticalPosition VerticalPosition
	Animation        Animation
}

// DefaultStyle returns the baseline style used when a job supplies none.
func DefaultStyle() Style {
	return Style{
		FontSize:         96,
		Color:            color.RGBA{R: 255, G: 255, B: 255, A: 255},
		StrokeWidth:      2,
		GlowRadius:       24,
		GlowScale:        32,
		PulseScale:       0.15,
		Alignment:        AlignCenter,
		VerticalPosition: PositionBottom,
		Animation:        AnimationGlow,
	}
}

// Validate rejects styles layout and compositing cannot honor.
func (s Style) Validate() error {
	if s.FontSize <= 0 {
		return fmt.Errorf("font size must be positive, got %.1f", s.FontSize)
	}
	switch s.Alignment {
	case AlignLeft, AlignCenter, AlignRight:
	default:
		return fmt.Errorf("unknown alignment %q", s.Alignment)
	}
	switch s.VerticalPosition {
	case PositionTop, PositionCenter, PositionBottom:
	default:
		return fmt.Errorf("unknown vertical position %q", s.VerticalPosition)
	}
	switch s.Animation {
	case AnimationNone, AnimationPulse, AnimationGlow:
	default:
		return fmt.Errorf("unknown animation %q", s.Animation)
	}
	if s.StrokeWidth < 0 || s.GlowRadius < 0 {
		return fmt.Errorf("stroke width and glow radius must not be negative")
	}
	return nil
}

// ParseAlignment converts a config string to an Alignment.
func ParseAlignment(value string) (Alignment, error) {
	switch Alignment(strings.ToLower(strings.TrimSpace(value))) {
	case AlignLeft:
		return AlignLeft, nil
	case AlignCenter, "":
		return AlignCenter, nil
	case AlignRight:
		return AlignRight, nil
	}
	return "", fmt.Errorf("unknown alignment %q", value)
}

// ParseVerticalPosition converts a config string to a VerticalPosition.
func ParseVerticalPosition(value string) (VerticalPosition, error) {
	switch VerticalPosition(strings.ToLower(strings.TrimSpace(value))) {
	case PositionTop:
		return PositionTop, nil
	case PositionCenter:
		return PositionCenter, nil
	case PositionBottom, "":
		return PositionBottom, nil
	}
	return "", fmt.Errorf("unknown vertical position %q", value)
}

// ParseAnimation converts a config string to an Animation.
func ParseAnimation(value string) (Animation, error) {
	switch Animation(strings.ToLower(strings.TrimSpace(value))) {
	case AnimationNone:
		return AnimationNone, nil
	case AnimationPulse:
		return AnimationPulse, nil
	case AnimationGlow, "":
		return AnimationGlow, nil
	}
	return "", fmt.Errorf("unknown animation %q", value)
}

package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"cadence/internal/layout"
	"cadence/internal/services"
	"cadence/internal/timing"
)

// effectParams are the audio-reactive values for one frame, derived from the
// style's base values and the current render context.
type effectParams struct {
	glowRadius  int
	glowOpacity float64
	textOpacity float64
}

// MaxEffectExtent returns the largest distance, in pixels, any effect for this
// style can paint beyond the glyph bounding box.
func MaxEffectExtent(style layout.Style) int {
	extent := style.StrokeWidth
	if style.Animation == layout.AnimationGlow || style.Animation == layout.AnimationPulse {
		// Band energies are normalized to [0,1]; the glow can spread at most
		// base radius plus the full scale term.
		extent += style.GlowRadius + int(math.Ceil(style.GlowScale))
	}
	return extent
}

// ValidateEffects rejects styles whose maximum possible effect extent exceeds
// the canvas padding. Reported at job start, never discovered per frame.
func ValidateEffects(style layout.Style, pad int) error {
	if err := style.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "render", "validate-effects", "invalid style", err)
	}
	if extent := MaxEffectExtent(style); extent > pad {
		return services.Wrap(services.ErrEffectConfig, "render", "validate-effects",
			fmt.Sprintf("maximum effect extent %dpx exceeds canvas pad %dpx", extent, pad), nil)
	}
	return nil
}

// paramsFor computes the per-frame effect values as base + scale·energy.
func paramsFor(style layout.Style, rc timing.RenderContext) effectParams {
	params := effectParams{
		glowRadius:  style.GlowRadius,
		glowOpacity: 0.6,
		textOpacity: 1.0,
	}

	energy := dominantEnergy(rc.BandEnergies)
	switch style.Animation {
	case layout.AnimationGlow:
		params.glowRadius = style.GlowRadius + int(math.Round(style.GlowScale*energy))
		params.glowOpacity = 0.4 + 0.6*energy
	case layout.AnimationPulse:
		params.glowRadius = style.GlowRadius + int(math.Round(style.GlowScale*energy))
		// Beat phase pulses brightness: strongest on the beat, easing off.
		pulse := 1 - rc.BeatPhase
		params.textOpacity = clamp01(1 - style.PulseScale + style.PulseScale*pulse)
		params.glowOpacity = clamp01(0.3 + 0.7*pulse*energy)
	case layout.AnimationNone:
		params.glowRadius = 0
		params.glowOpacity = 0
	}
	return params
}

func dominantEnergy(bands []float64) float64 {
	var max float64
	for _, e := range bands {
		if e > max {
			max = e
		}
	}
	return clamp01(max)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// blurAlpha box-blurs an alpha mask with the given radius, restricted to the
// dirty region to keep the per-frame cost proportional to the glyph box.
func blurAlpha(src *image.Alpha, region image.Rectangle, radius int) *image.Alpha {
	if radius <= 0 {
		return src
	}
	bounds := src.Bounds()
	region = region.Inset(-radius).Intersect(bounds)

	horizontal := image.NewAlpha(bounds)
	window := 2*radius + 1
	for y := region.Min.Y; y < region.Max.Y; y++ {
		var sum int
		for x := region.Min.X - radius; x <= region.Min.X+radius; x++ {
			sum += int(alphaAt(src, x, y))
		}
		for x := region.Min.X; x < region.Max.X; x++ {
			horizontal.SetAlpha(x, y, color.Alpha{A: uint8(sum / window)})
			sum += int(alphaAt(src, x+radius+1, y)) - int(alphaAt(src, x-radius, y))
		}
	}

	out := image.NewAlpha(bounds)
	for x := region.Min.X; x < region.Max.X; x++ {
		var sum int
		for y := region.Min.Y - radius; y <= region.Min.Y+radius; y++ {
			sum += int(alphaAt(horizontal, x, y))
		}
		for y := region.Min.Y; y < region.Max.Y; y++ {
			out.SetAlpha(x, y, color.Alpha{A: uint8(sum / window)})
			sum += int(alphaAt(horizontal, x, y+radius+1)) - int(alphaAt(horizontal, x, y-radius))
		}
	}
	return out
}

func alphaAt(img *image.Alpha, x, y int) uint8 {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return 0
	}
	return img.AlphaAt(x, y).A
}

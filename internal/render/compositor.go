package render

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"cadence/internal/layout"
	"cadence/internal/pipeline"
	"cadence/internal/services"
	"cadence/internal/timing"
)

// Layer is one entry in a frame's composite stack. Transient: layers exist
// only during a single composite pass.
type Layer struct {
	Z      int
	Source image.Image
	Mask   *image.Alpha
	Rect   image.Rectangle
	Point  image.Point
	Op     draw.Op
}

// Compositor renders one frame at a time into buffers provided by the
// scheduler. Safe for concurrent use by render workers; all mutable state is
// per-call.
type Compositor struct {
	engine     *layout.Engine
	background BackgroundSource
	// styles holds the effective per-cue style after the runner's font-shrink
	// policy has been applied.
	styles []layout.Style
}

// NewCompositor validates every cue style's effect extents against the canvas
// padding and returns a compositor ready for render workers.
func NewCompositor(engine *layout.Engine, background BackgroundSource, styles []layout.Style) (*Compositor, error) {
	if background == nil {
		return nil, services.Wrap(services.ErrValidation, "render", "new-compositor", "background source required", nil)
	}
	pad := engine.Canvas().Pad
	for _, style := range styles {
		if err := ValidateEffects(style, pad); err != nil {
			return nil, err
		}
	}
	return &Compositor{engine: engine, background: background, styles: styles}, nil
}

// Render composites the frame for the given render context into buf. The
// buffer's crop region is set to the final-frame rectangle; everything
// outside it is effect bleed that the crop discards.
func (c *Compositor) Render(ctx context.Context, rc timing.RenderContext, buf *pipeline.FrameBuffer) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrCancelled, "render", "render", "frame cancelled", err)
	}

	canvas := c.engine.Canvas()
	frameRect := image.Rect(canvas.Pad, canvas.Pad, canvas.Pad+canvas.FrameWidth, canvas.Pad+canvas.FrameHeight)
	buf.Crop = frameRect

	bg, err := c.background.FrameAt(rc.Timestamp)
	if err != nil {
		return services.Wrap(services.ErrValidation, "render", "background", "background frame", err)
	}

	layers := []Layer{{
		Z:      0,
		Source: bg,
		Rect:   frameRect,
		Point:  bg.Bounds().Min,
		Op:     draw.Src,
	}}

	if rc.ActiveCue != nil {
		style := c.styleFor(rc.CueIndex)
		textLayers, err := c.textLayers(rc, style)
		if err != nil {
			return err
		}
		layers = append(layers, textLayers...)
	}

	compose(buf.Img, layers)
	return nil
}

func (c *Compositor) styleFor(cueIndex int) layout.Style {
	if cueIndex >= 0 && cueIndex < len(c.styles) {
		return c.styles[cueIndex]
	}
	return layout.DefaultStyle()
}

// textLayers builds the z-ordered stack above the background: glow under the
// text (z=1), stroke and fill (z=2), and the over-text highlight (z=3).
func (c *Compositor) textLayers(rc timing.RenderContext, style layout.Style) ([]Layer, error) {
	placement, err := c.engine.Layout(rc.ActiveCue.Text, style)
	if err != nil {
		return nil, err
	}
	face, err := c.engine.Face(style.FontPath, style.FontSize)
	if err != nil {
		return nil, err
	}

	canvasBounds := image.Rect(0, 0, c.engine.Canvas().PaddedWidth(), c.engine.Canvas().PaddedHeight())
	glyphRect := image.Rectangle{Min: placement.Canvas, Max: placement.Canvas.Add(placement.Size)}
	mask := glyphMask(canvasBounds, face, rc.ActiveCue.Text, placement)

	params := paramsFor(style, rc)
	var layers []Layer

	if params.glowRadius > 0 && params.glowOpacity > 0 {
		glow := blurAlpha(mask, glyphRect, params.glowRadius)
		layers = append(layers, Layer{
			Z:      1,
			Source: image.NewUniform(withOpacity(style.Color, params.glowOpacity)),
			Mask:   glow,
			Rect:   glyphRect.Inset(-params.glowRadius).Intersect(canvasBounds),
			Op:     draw.Over,
		})
	}

	if style.StrokeWidth > 0 {
		stroke := image.NewUniform(color.NRGBA{A: uint8(255 * params.textOpacity)})
		for dy := -style.StrokeWidth; dy <= style.StrokeWidth; dy++ {
			for dx := -style.StrokeWidth; dx <= style.StrokeWidth; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				offset := image.Pt(dx, dy)
				layers = append(layers, Layer{
					Z:      2,
					Source: stroke,
					Mask:   mask,
					Rect:   glyphRect.Add(offset).Intersect(canvasBounds),
					Point:  glyphRect.Min,
					Op:     draw.Over,
				})
			}
		}
	}

	layers = append(layers, Layer{
		Z:      2,
		Source: image.NewUniform(withOpacity(style.Color, params.textOpacity)),
		Mask:   mask,
		Rect:   glyphRect,
		Point:  glyphRect.Min,
		Op:     draw.Over,
	})

	if highlight := sungFraction(rc); highlight > 0 {
		clip := glyphRect
		clip.Max.X = clip.Min.X + int(float64(placement.Size.X)*highlight)
		layers = append(layers, Layer{
			Z:      3,
			Source: image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: 140}),
			Mask:   mask,
			Rect:   clip,
			Point:  clip.Min,
			Op:     draw.Over,
		})
	}

	return layers, nil
}

// compose blends the layer stack in z-order. Stable sort keeps insertion
// order for equal z values (stroke passes before fill).
func compose(dst *image.RGBA, layers []Layer) {
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].Z < layers[j].Z })
	for _, layer := range layers {
		if layer.Rect.Empty() {
			continue
		}
		if layer.Mask != nil {
			maskPoint := layer.Point
			if maskPoint == (image.Point{}) {
				maskPoint = layer.Rect.Min
			}
			draw.DrawMask(dst, layer.Rect, layer.Source, layer.Point, layer.Mask, maskPoint, layer.Op)
			continue
		}
		draw.Draw(dst, layer.Rect, layer.Source, layer.Point, layer.Op)
	}
}

// glyphMask renders the cue text into an alpha mask at its canvas position.
func glyphMask(bounds image.Rectangle, face font.Face, text string, placement layout.Placement) *image.Alpha {
	mask := image.NewAlpha(bounds)
	drawer := &font.Drawer{
		Dst:  mask,
		Src:  image.NewUniform(color.Alpha{A: 255}),
		Face: face,
		Dot:  fixed.P(placement.Canvas.X, placement.Canvas.Y+placement.Ascent),
	}
	drawer.DrawString(text)
	return mask
}

// sungFraction estimates how much of the cue has been sung, preferring
// word-level timings and falling back to cue progress.
func sungFraction(rc timing.RenderContext) float64 {
	if rc.ActiveCue == nil {
		return 0
	}
	if len(rc.WordProgress) == 0 {
		return clamp01(rc.CueProgress)
	}
	var total float64
	for _, p := range rc.WordProgress {
		total += clamp01(p)
	}
	return total / float64(len(rc.WordProgress))
}

func withOpacity(c color.RGBA, opacity float64) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(float64(c.A) * clamp01(opacity))}
}

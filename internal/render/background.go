package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"time"
)

// BackgroundSource yields the background image for a given timestamp.
// Looping and clamping semantics are owned by the source.
type BackgroundSource interface {
	FrameAt(ts time.Duration) (image.Image, error)
}

// SolidSource fills the frame with one color.
type SolidSource struct {
	img *image.Uniform
}

// NewSolidSource returns a background of a single color.
func NewSolidSource(c color.Color) *SolidSource {
	return &SolidSource{img: image.NewUniform(c)}
}

// FrameAt returns the same uniform image for every timestamp.
func (s *SolidSource) FrameAt(time.Duration) (image.Image, error) {
	return s.img, nil
}

// StillSource serves one still image scaled to the frame for every timestamp.
type StillSource struct {
	scaled *image.RGBA
}

// NewStillSource loads a PNG or JPEG and pre-scales it to width x height with
// nearest-neighbor sampling, which is fast and adequate for video backgrounds.
func NewStillSource(path string, width, height int) (*StillSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open background: %w", err)
	}
	defer file.Close()

	src, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode background %s: %w", path, err)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	bounds := src.Bounds()
	scaleX := float64(bounds.Dx()) / float64(width)
	scaleY := float64(bounds.Dy()) / float64(height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sx := bounds.Min.X + int(float64(x)*scaleX)
			sy := bounds.Min.Y + int(float64(y)*scaleY)
			scaled.Set(x, y, src.At(sx, sy))
		}
	}
	return &StillSource{scaled: scaled}, nil
}

// FrameAt returns the pre-scaled image for every timestamp.
func (s *StillSource) FrameAt(time.Duration) (image.Image, error) {
	return s.scaled, nil
}

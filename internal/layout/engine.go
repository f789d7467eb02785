package layout

import (
	"image"
	"os"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"

	"cadence/internal/services"
)

// Placement is the result of laying out one piece of text.
type Placement struct {
	// Frame is the top-left corner of the text box in final-frame space.
	Frame image.Point
	// Canvas is the same position translated onto the padded canvas. This is
	// the only place pad and margins meet.
	Canvas image.Point
	// Size is the measured text extent.
	Size image.Point
	// Ascent is the baseline offset from the top of the text box, in pixels.
	Ascent int
}

// Engine lays text out inside the safe zone. Construction resolves the font;
// the measurement cache is owned by the engine and scoped to its lifetime
// (one job), never process-wide.
type Engine struct {
	safe   SafeZoneConfig
	canvas CanvasConfig

	mu          sync.Mutex
	defaultFont *opentype.Font
	fonts       map[string]*opentype.Font
	faces       map[faceKey]font.Face
	measures    *measureCache
}

// faceKey caches faces by (font path, size); an empty path is the engine's
// default font.
type faceKey struct {
	path string
	size float64
}

// NewEngine validates geometry, loads the style's font file (an empty path
// selects a built-in bitmap face, used by tests), and returns an engine ready
// for concurrent Layout calls.
func NewEngine(safe SafeZoneConfig, canvas CanvasConfig, fontPath string) (*Engine, error) {
	if err := safe.Validate(canvas); err != nil {
		return nil, services.Wrap(services.ErrValidation, "layout", "new-engine", "invalid geometry", err)
	}

	e := &Engine{
		safe:     safe,
		canvas:   canvas,
		fonts:    make(map[string]*opentype.Font),
		faces:    make(map[faceKey]font.Face),
		measures: newMeasureCache(measureCacheCapacity),
	}

	if fontPath != "" {
		otf, err := loadFont(fontPath)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "layout", "new-engine", "load font", err)
		}
		e.defaultFont = otf
	}

	return e, nil
}

func loadFont(path string) (*opentype.Font, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return opentype.Parse(raw)
}

// SafeZone returns the configured margins.
func (e *Engine) SafeZone() SafeZoneConfig { return e.safe }

// Canvas returns the configured canvas geometry.
func (e *Engine) Canvas() CanvasConfig { return e.canvas }

// Face returns the cached font face for the given font path and size. An
// empty path selects the engine's default font.
func (e *Engine) Face(fontPath string, size float64) (font.Face, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.faceLocked(fontPath, size)
}

func (e *Engine) faceLocked(fontPath string, size float64) (font.Face, error) {
	key := faceKey{path: fontPath, size: size}
	if face, ok := e.faces[key]; ok {
		return face, nil
	}
	otf, err := e.fontLocked(fontPath)
	if err != nil {
		return nil, err
	}
	var face font.Face
	if otf == nil {
		face = basicfont.Face7x13
	} else {
		created, err := opentype.NewFace(otf, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "layout", "face", "create font face", err)
		}
		face = created
	}
	e.faces[key] = face
	return face, nil
}

// fontLocked resolves a style's font path, loading and caching override fonts
// on first use.
func (e *Engine) fontLocked(fontPath string) (*opentype.Font, error) {
	if fontPath == "" {
		return e.defaultFont, nil
	}
	if otf, ok := e.fonts[fontPath]; ok {
		return otf, nil
	}
	otf, err := loadFont(fontPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "layout", "face", "load font", err)
	}
	e.fonts[fontPath] = otf
	return otf, nil
}

// Measure returns the text extent and ascent for the given font path and
// size, consulting the bounded measurement cache first.
func (e *Engine) Measure(text, fontPath string, size float64) (image.Point, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if m, ok := e.measures.get(text, fontPath, size); ok {
		return m.size, m.ascent, nil
	}

	face, err := e.faceLocked(fontPath, size)
	if err != nil {
		return image.Point{}, 0, err
	}
	metrics := face.Metrics()
	width := font.MeasureString(face, text).Ceil()
	height := (metrics.Ascent + metrics.Descent).Ceil()
	ascent := metrics.Ascent.Ceil()

	m := measurement{size: image.Pt(width, height), ascent: ascent}
	e.measures.put(text, fontPath, size, m)
	return m.size, m.ascent, nil
}

// Layout computes the placement for one piece of text.
//
// Horizontal: text that fits availableWidth is aligned per the style; wider
// text starts at the left margin and may overflow the right edge, which is the
// documented degraded-but-safe behavior (the x coordinate never goes
// negative). Vertical: the requested position is clamped into
// [top, frameHeight-bottom-textHeight] unconditionally. Text taller than the
// available height fails with a layout-overflow error so the caller can decide
// between shrinking the font and accepting the clip.
func (e *Engine) Layout(text string, style Style) (Placement, error) {
	if err := style.Validate(); err != nil {
		return Placement{}, services.Wrap(services.ErrValidation, "layout", "layout", "invalid style", err)
	}

	size, ascent, err := e.Measure(text, style.FontPath, style.FontSize)
	if err != nil {
		return Placement{}, err
	}

	availableWidth := e.canvas.FrameWidth - e.safe.Left - e.safe.Right
	availableHeight := e.canvas.FrameHeight - e.safe.Top - e.safe.Bottom

	if size.Y > availableHeight {
		return Placement{}, services.Wrap(services.ErrLayoutOverflow, "layout", "layout",
			"text height exceeds safe zone", nil)
	}

	var x int
	if size.X <= availableWidth {
		switch style.Alignment {
		case AlignLeft:
			x = e.safe.Left
		case AlignRight:
			x = e.safe.Left + availableWidth - size.X
		default:
			x = e.safe.Left + (availableWidth-size.X)/2
		}
	} else {
		// Wide-text fallback: overflow the right edge rather than produce a
		// negative or out-of-canvas coordinate.
		x = e.safe.Left
	}

	var y int
	switch style.VerticalPosition {
	case PositionTop:
		y = e.safe.Top
	case PositionCenter:
		y = e.safe.Top + (availableHeight-size.Y)/2
	default:
		y = e.safe.Top + availableHeight - size.Y
	}

	// Absolute safety net regardless of the requested position.
	maxY := e.canvas.FrameHeight - e.safe.Bottom - size.Y
	if y > maxY {
		y = maxY
	}
	if y < e.safe.Top {
		y = e.safe.Top
	}

	framePos := image.Pt(x, y)
	return Placement{
		Frame: framePos,
		// The single composition of margins and padding: canvas = frame + pad,
		// applied here and nowhere else. The crop subtracts pad symmetrically.
		Canvas: framePos.Add(image.Pt(e.canvas.Pad, e.canvas.Pad)),
		Size:   size,
		Ascent: ascent,
	}, nil
}

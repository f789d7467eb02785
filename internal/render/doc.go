// Package render composites lyric frames: background, audio-reactive effect
// layers, and the text surface, blended in z-order on the padded canvas and
// cropped to the final frame.
//
// Effects read the per-timestamp render context: band energies scale glow
// spread, beat phase drives the pulse. Anything an effect paints outside the
// glyph box must stay within the canvas padding; extents are validated once at
// job start so a mis-sized effect is a configuration error, not a per-frame
// surprise.
package render

// Package layout computes text placement inside the safe zone of the final
// frame and translates it onto the padded working canvas.
//
// The engine holds two orthogonal pieces of geometry: safe-zone margins
// defined in final-frame space, and the canvas padding added around the frame
// to absorb effect bleed. The two are composed additively exactly once, when a
// frame-space position is translated to a canvas paint position. Folding the
// pad into the margins (or vice versa) historically produced text that sat on
// the crop boundary; keeping the composition in one place is the core
// invariant of this package.
//
// Layout is a pure function of (text, style, engine config): identical inputs
// always produce identical placements, which makes the measurement cache a
// transparent optimization.
package layout

// Package timing merges a pre-computed audio feature track with parsed lyric
// cues into a queryable per-timestamp render context.
//
// The Model is immutable once built and safe for concurrent use by render
// workers. Lookup is binary search over sorted cues and samples; band energies
// are interpolated linearly between bracketing samples. Construction fails
// with a timing-gap error when the audio and cue tracks cover disjoint time
// ranges, because that indicates misaligned inputs rather than silence.
package timing

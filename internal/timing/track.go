package timing

import (
	"fmt"
	"sort"
	"time"
)

// Sample is one timestamped observation from the audio feature track.
type Sample struct {
	Timestamp    time.Duration `json:"timestamp_ms"`
	BeatPhase    float64       `json:"beat_phase"`
	Onset        bool          `json:"onset"`
	BandEnergies []float64     `json:"band_energies"`
}

// Track is an ordered sequence of audio feature samples. Immutable once built.
type Track struct {
	samples []Sample
}

// NewTrack validates ordering and returns an immutable track.
func NewTrack(samples []Sample) (*Track, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("timing track requires at least one sample")
	}
	cp := make([]Sample, len(samples))
	copy(cp, samples)
	if !sort.SliceIsSorted(cp, func(i, j int) bool { return cp[i].Timestamp < cp[j].Timestamp }) {
		return nil, fmt.Errorf("timing track samples must be ordered by timestamp")
	}
	for i, s := range cp {
		if s.BeatPhase < 0 || s.BeatPhase >= 1 {
			return nil, fmt.Errorf("sample %d: beat phase %.3f outside [0,1)", i, s.BeatPhase)
		}
	}
	return &Track{samples: cp}, nil
}

// Len returns the number of samples.
func (t *Track) Len() int { return len(t.samples) }

// Start returns the timestamp of the first sample.
func (t *Track) Start() time.Duration { return t.samples[0].Timestamp }

// End returns the timestamp of the last sample.
func (t *Track) End() time.Duration { return t.samples[len(t.samples)-1].Timestamp }

// Bands returns the band count of the first sample. Samples with fewer bands
// are zero-extended during interpolation.
func (t *Track) Bands() int { return len(t.samples[0].BandEnergies) }

// at interpolates the feature values for ts. Timestamps outside the track are
// clamped to the boundary samples.
func (t *Track) at(ts time.Duration) (beatPhase float64, onset bool, energies []float64) {
	n := len(t.samples)
	idx := sort.Search(n, func(i int) bool { return t.samples[i].Timestamp > ts })
	// idx is the first sample strictly after ts.
	switch {
	case idx == 0:
		s := t.samples[0]
		return s.BeatPhase, s.Onset, copyEnergies(s.BandEnergies)
	case idx >= n:
		s := t.samples[n-1]
		return s.BeatPhase, s.Onset, copyEnergies(s.BandEnergies)
	}

	lo, hi := t.samples[idx-1], t.samples[idx]
	span := hi.Timestamp - lo.Timestamp
	if span <= 0 {
		return lo.BeatPhase, lo.Onset, copyEnergies(lo.BandEnergies)
	}
	frac := float64(ts-lo.Timestamp) / float64(span)

	bands := len(lo.BandEnergies)
	if len(hi.BandEnergies) > bands {
		bands = len(hi.BandEnergies)
	}
	energies = make([]float64, bands)
	for i := range energies {
		var a, b float64
		if i < len(lo.BandEnergies) {
			a = lo.BandEnergies[i]
		}
		if i < len(hi.BandEnergies) {
			b = hi.BandEnergies[i]
		}
		energies[i] = a + (b-a)*frac
	}

	return interpolatePhase(lo.BeatPhase, hi.BeatPhase, frac), lo.Onset, energies
}

// interpolatePhase blends beat phases with wraparound: a phase approaching 1.0
// followed by one near 0.0 means the beat boundary was crossed, not that the
// phase ran backwards.
func interpolatePhase(a, b, frac float64) float64 {
	if b < a {
		b++
	}
	p := a + (b-a)*frac
	if p >= 1 {
		p--
	}
	return p
}

func copyEnergies(src []float64) []float64 {
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

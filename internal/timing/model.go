package timing

import (
	"sort"
	"time"

	"cadence/internal/services"
)

// RenderContext is the per-timestamp view render code consumes. ActiveCue is
// nil when the timestamp falls outside every cue.
type RenderContext struct {
	Timestamp    time.Duration
	ActiveCue    *Cue
	CueIndex     int
	CueProgress  float64
	WordProgress []float64
	BeatPhase    float64
	Onset        bool
	BandEnergies []float64
}

// Model answers per-timestamp queries against an audio feature track merged
// with lyric cues. Read-only after construction; safe for concurrent use.
type Model struct {
	track *Track
	cues  []Cue
}

// NewModel validates that the audio track and cue track overlap in time and
// returns a queryable model. Disjoint ranges indicate a misaligned input and
// fail with a timing-gap error rather than defaulting silently.
func NewModel(track *Track, cues []Cue) (*Model, error) {
	if track == nil || track.Len() == 0 {
		return nil, services.Wrap(services.ErrValidation, "timing", "new-model", "timing track is empty", nil)
	}
	normalized, err := normalizeCues(cues)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "timing", "new-model", "invalid cues", err)
	}

	cueStart := normalized[0].Start
	cueEnd := normalized[len(normalized)-1].End
	if track.End() < cueStart || track.Start() > cueEnd {
		return nil, services.Wrap(services.ErrTimingGap, "timing", "new-model",
			"audio feature track and lyric cues cover disjoint time ranges", nil)
	}

	return &Model{track: track, cues: normalized}, nil
}

// Cues returns the normalized cue list.
func (m *Model) Cues() []Cue {
	cp := make([]Cue, len(m.cues))
	copy(cp, m.cues)
	return cp
}

// Span returns the union of the track and cue time ranges.
func (m *Model) Span() (start, end time.Duration) {
	start = m.track.Start()
	if s := m.cues[0].Start; s < start {
		start = s
	}
	end = m.track.End()
	if e := m.cues[len(m.cues)-1].End; e > end {
		end = e
	}
	return start, end
}

// ContextAt returns the render context for the given timestamp. Lookup is
// O(log n) over the sorted cue and sample sequences.
func (m *Model) ContextAt(ts time.Duration) RenderContext {
	beat, onset, energies := m.track.at(ts)
	rc := RenderContext{
		Timestamp:    ts,
		CueIndex:     -1,
		BeatPhase:    beat,
		Onset:        onset,
		BandEnergies: energies,
	}

	idx := sort.Search(len(m.cues), func(i int) bool { return m.cues[i].End > ts })
	if idx >= len(m.cues) {
		return rc
	}
	cue := m.cues[idx]
	if ts < cue.Start {
		return rc
	}

	rc.ActiveCue = &cue
	rc.CueIndex = idx
	rc.CueProgress = progress(ts, cue.Start, cue.End)
	if len(cue.Words) > 0 {
		rc.WordProgress = make([]float64, len(cue.Words))
		for i, w := range cue.Words {
			rc.WordProgress[i] = progress(ts, w.Start, w.End)
		}
	}
	return rc
}

func progress(ts, start, end time.Duration) float64 {
	if end <= start {
		if ts >= end {
			return 1
		}
		return 0
	}
	p := float64(ts-start) / float64(end-start)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

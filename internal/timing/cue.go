package timing

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Word is an optional word-level sub-timing inside a cue.
type Word struct {
	Start time.Duration `json:"start_ms"`
	End   time.Duration `json:"end_ms"`
	Text  string        `json:"text"`
}

// Cue is a timed lyric line. Cues are ordered and non-overlapping within a
// track and owned by the pipeline for the duration of a job.
type Cue struct {
	Start time.Duration `json:"start_ms"`
	End   time.Duration `json:"end_ms"`
	Text  string        `json:"text"`
	Words []Word        `json:"words,omitempty"`
}

// normalizeCues validates ordering and non-overlap, NFC-normalizes text, and
// clamps word sub-timings into their cue interval.
func normalizeCues(cues []Cue) ([]Cue, error) {
	if len(cues) == 0 {
		return nil, fmt.Errorf("at least one lyric cue is required")
	}
	out := make([]Cue, len(cues))
	copy(out, cues)
	for i := range out {
		cue := &out[i]
		if cue.End <= cue.Start {
			return nil, fmt.Errorf("cue %d: end %v not after start %v", i, cue.End, cue.Start)
		}
		if i > 0 && cue.Start < out[i-1].End {
			return nil, fmt.Errorf("cue %d overlaps cue %d", i, i-1)
		}
		cue.Text = norm.NFC.String(strings.TrimSpace(cue.Text))
		if cue.Text == "" {
			return nil, fmt.Errorf("cue %d: empty text", i)
		}
		if len(cue.Words) == 0 {
			continue
		}
		words := make([]Word, len(cue.Words))
		copy(words, cue.Words)
		for j := range words {
			w := &words[j]
			w.Text = norm.NFC.String(strings.TrimSpace(w.Text))
			if w.Start < cue.Start {
				w.Start = cue.Start
			}
			if w.End > cue.End {
				w.End = cue.End
			}
			if w.End < w.Start {
				w.End = w.Start
			}
		}
		cue.Words = words
	}
	return out, nil
}

package timing

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// File formats are the JSON interchange the external analysis and parsing
// collaborators produce: timestamps in integer milliseconds.

type trackFile struct {
	Samples []sampleRecord `json:"samples"`
}

type sampleRecord struct {
	TimestampMS  int64     `json:"timestamp_ms"`
	BeatPhase    float64   `json:"beat_phase"`
	Onset        bool      `json:"onset"`
	BandEnergies []float64 `json:"band_energies"`
}

type cueFile struct {
	Cues []cueRecord `json:"cues"`
}

type cueRecord struct {
	StartMS int64        `json:"start_ms"`
	EndMS   int64        `json:"end_ms"`
	Text    string       `json:"text"`
	Words   []wordRecord `json:"words,omitempty"`
}

type wordRecord struct {
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

// LoadTrack reads a pre-computed audio feature track from a JSON file.
func LoadTrack(path string) (*Track, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read timing track: %w", err)
	}
	var file trackFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse timing track %s: %w", path, err)
	}
	samples := make([]Sample, 0, len(file.Samples))
	for _, rec := range file.Samples {
		samples = append(samples, Sample{
			Timestamp:    time.Duration(rec.TimestampMS) * time.Millisecond,
			BeatPhase:    rec.BeatPhase,
			Onset:        rec.Onset,
			BandEnergies: rec.BandEnergies,
		})
	}
	track, err := NewTrack(samples)
	if err != nil {
		return nil, fmt.Errorf("timing track %s: %w", path, err)
	}
	return track, nil
}

// LoadCues reads pre-parsed lyric cues from a JSON file. Validation and text
// normalization happen later in NewModel.
func LoadCues(path string) ([]Cue, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cues: %w", err)
	}
	var file cueFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse cues %s: %w", path, err)
	}
	cues := make([]Cue, 0, len(file.Cues))
	for _, rec := range file.Cues {
		cue := Cue{
			Start: time.Duration(rec.StartMS) * time.Millisecond,
			End:   time.Duration(rec.EndMS) * time.Millisecond,
			Text:  rec.Text,
		}
		for _, w := range rec.Words {
			cue.Words = append(cue.Words, Word{
				Start: time.Duration(w.StartMS) * time.Millisecond,
				End:   time.Duration(w.EndMS) * time.Millisecond,
				Text:  w.Text,
			})
		}
		cues = append(cues, cue)
	}
	return cues, nil
}

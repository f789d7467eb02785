package timing_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"cadence/internal/services"
	"cadence/internal/timing"
)

func second(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func testTrack(t *testing.T) *timing.Track {
	t.Helper()
	track, err := timing.NewTrack([]timing.Sample{
		{Timestamp: second(0), BeatPhase: 0, BandEnergies: []float64{0.0, 1.0}},
		{Timestamp: second(1), BeatPhase: 0.5, BandEnergies: []float64{1.0, 0.0}},
		{Timestamp: second(2), BeatPhase: 0.9, Onset: true, BandEnergies: []float64{0.5, 0.5}},
	})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	return track
}

func testCues() []timing.Cue {
	return []timing.Cue{
		{Start: second(0.5), End: second(1.5), Text: "first line", Words: []timing.Word{
			{Start: second(0.5), End: second(1.0), Text: "first"},
			{Start: second(1.0), End: second(1.5), Text: "line"},
		}},
		{Start: second(1.5), End: second(2.5), Text: "second line"},
	}
}

func TestNewModelRejectsDisjointRanges(t *testing.T) {
	track := testTrack(t)
	cues := []timing.Cue{{Start: second(100), End: second(105), Text: "late"}}

	_, err := timing.NewModel(track, cues)
	if err == nil {
		t.Fatal("expected timing gap error")
	}
	if !errors.Is(err, services.ErrTimingGap) {
		t.Fatalf("expected ErrTimingGap, got %v", err)
	}
}

func TestNewModelRejectsOverlappingCues(t *testing.T) {
	track := testTrack(t)
	cues := []timing.Cue{
		{Start: second(0), End: second(1), Text: "a"},
		{Start: second(0.5), End: second(2), Text: "b"},
	}
	if _, err := timing.NewModel(track, cues); err == nil {
		t.Fatal("expected error for overlapping cues")
	}
}

func TestContextAtActiveCueAndProgress(t *testing.T) {
	model, err := timing.NewModel(testTrack(t), testCues())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	rc := model.ContextAt(second(1.0))
	if rc.ActiveCue == nil {
		t.Fatal("expected active cue at 1.0s")
	}
	if rc.ActiveCue.Text != "first line" {
		t.Fatalf("unexpected cue %q", rc.ActiveCue.Text)
	}
	if math.Abs(rc.CueProgress-0.5) > 1e-9 {
		t.Fatalf("CueProgress = %f, want 0.5", rc.CueProgress)
	}
	if len(rc.WordProgress) != 2 {
		t.Fatalf("expected 2 word progress entries, got %d", len(rc.WordProgress))
	}
	if math.Abs(rc.WordProgress[0]-1.0) > 1e-9 {
		t.Fatalf("first word should be complete, got %f", rc.WordProgress[0])
	}
	if math.Abs(rc.WordProgress[1]-0.0) > 1e-9 {
		t.Fatalf("second word should not have started, got %f", rc.WordProgress[1])
	}
}

func TestContextAtOutOfRangeHasNoActiveCue(t *testing.T) {
	model, err := timing.NewModel(testTrack(t), testCues())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	for _, ts := range []time.Duration{second(0.1), second(10)} {
		rc := model.ContextAt(ts)
		if rc.ActiveCue != nil {
			t.Fatalf("expected no active cue at %v, got %q", ts, rc.ActiveCue.Text)
		}
		if rc.CueIndex != -1 {
			t.Fatalf("expected cue index -1 at %v, got %d", ts, rc.CueIndex)
		}
	}
}

func TestContextAtInterpolatesBandEnergies(t *testing.T) {
	model, err := timing.NewModel(testTrack(t), testCues())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	rc := model.ContextAt(second(0.5))
	if len(rc.BandEnergies) != 2 {
		t.Fatalf("expected 2 bands, got %d", len(rc.BandEnergies))
	}
	if math.Abs(rc.BandEnergies[0]-0.5) > 1e-9 || math.Abs(rc.BandEnergies[1]-0.5) > 1e-9 {
		t.Fatalf("expected midpoint interpolation, got %v", rc.BandEnergies)
	}
}

func TestContextAtClampsBeyondTrack(t *testing.T) {
	model, err := timing.NewModel(testTrack(t), testCues())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	rc := model.ContextAt(second(2.4))
	if !rc.Onset {
		t.Fatal("expected clamped onset from the last sample")
	}
	if math.Abs(rc.BandEnergies[0]-0.5) > 1e-9 {
		t.Fatalf("expected clamped energies, got %v", rc.BandEnergies)
	}
	if rc.ActiveCue == nil || rc.ActiveCue.Text != "second line" {
		t.Fatal("expected second cue active at 2.4s")
	}
}

func TestBeatPhaseWraparoundInterpolation(t *testing.T) {
	track, err := timing.NewTrack([]timing.Sample{
		{Timestamp: second(0), BeatPhase: 0.9},
		{Timestamp: second(1), BeatPhase: 0.1},
	})
	if err != nil {
		t.Fatalf("NewTrack: %v", err)
	}
	model, err := timing.NewModel(track, []timing.Cue{{Start: second(0), End: second(1), Text: "x"}})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}

	rc := model.ContextAt(second(0.25))
	if rc.BeatPhase < 0 || rc.BeatPhase >= 1 {
		t.Fatalf("beat phase %f outside [0,1)", rc.BeatPhase)
	}
	if math.Abs(rc.BeatPhase-0.95) > 1e-9 {
		t.Fatalf("expected wraparound interpolation to 0.95, got %f", rc.BeatPhase)
	}
}

func TestCueTextNormalized(t *testing.T) {
	// e + combining acute accent should normalize to the precomposed form.
	decomposed := "café"
	model, err := timing.NewModel(testTrack(t), []timing.Cue{
		{Start: second(0), End: second(1), Text: decomposed},
	})
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	cues := model.Cues()
	if cues[0].Text != "café" {
		t.Fatalf("expected NFC-normalized text, got %q", cues[0].Text)
	}
}

package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// WriteTrackFile writes a timing track covering [0, span] with samples every
// interval, a sawtooth beat phase, and flat band energies.
func WriteTrackFile(t testing.TB, dir string, span, interval time.Duration) string {
	t.Helper()

	var samples []string
	beat := 0.0
	for ts := time.Duration(0); ts <= span; ts += interval {
		samples = append(samples, fmt.Sprintf(
			`{"timestamp_ms": %d, "beat_phase": %.2f, "onset": false, "band_energies": [0.5, 0.3, 0.1]}`,
			ts.Milliseconds(), beat))
		beat += 0.25
		if beat >= 1 {
			beat = 0
		}
	}
	path := filepath.Join(dir, "track.json")
	content := `{"samples": [` + strings.Join(samples, ",") + `]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write track fixture: %v", err)
	}
	return path
}

// CueSpec describes one fixture cue.
type CueSpec struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// WriteCuesFile writes a cue file with the given lines.
func WriteCuesFile(t testing.TB, dir string, cues []CueSpec) string {
	t.Helper()

	var records []string
	for _, cue := range cues {
		records = append(records, fmt.Sprintf(
			`{"start_ms": %d, "end_ms": %d, "text": %q}`,
			cue.Start.Milliseconds(), cue.End.Milliseconds(), cue.Text))
	}
	path := filepath.Join(dir, "cues.json")
	content := `{"cues": [` + strings.Join(records, ",") + `]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write cues fixture: %v", err)
	}
	return path
}

// WriteFile fills the target path with the requested number of bytes.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = 0x42
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cadence/internal/config"
	"cadence/internal/encode"
	"cadence/internal/logging"
	"cadence/internal/media"
	"cadence/internal/pipeline"
	"cadence/internal/services"
)

func runnerConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.FontPath = ""
	cfg.Frame.Width = 320
	cfg.Frame.Height = 180
	cfg.Frame.FPS = 10
	cfg.SafeZone.Left = 20
	cfg.SafeZone.Right = 20
	cfg.SafeZone.Top = 30
	cfg.SafeZone.Bottom = 40
	// Large enough for the default style's worst-case effect bleed.
	cfg.Canvas.Pad = 64
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.PoolSize = 2
	cfg.Pipeline.ReorderWindow = 4
	return &cfg
}

func writeFixtures(t *testing.T) (trackPath, cuesPath string) {
	t.Helper()
	dir := t.TempDir()

	var samples []string
	for ms := int64(0); ms <= 1000; ms += 100 {
		samples = append(samples, fmt.Sprintf(
			`{"timestamp_ms": %d, "beat_phase": 0.5, "onset": false, "band_energies": [0.5, 0.2, 0.1]}`, ms))
	}
	trackPath = filepath.Join(dir, "track.json")
	if err := os.WriteFile(trackPath, []byte(`{"samples": [`+strings.Join(samples, ",")+`]}`), 0o644); err != nil {
		t.Fatalf("write track: %v", err)
	}

	cuesPath = filepath.Join(dir, "cues.json")
	cues := `{"cues": [{"start_ms": 100, "end_ms": 500, "text": "HI"}, {"start_ms": 600, "end_ms": 900, "text": "YO"}]}`
	if err := os.WriteFile(cuesPath, []byte(cues), 0o644); err != nil {
		t.Fatalf("write cues: %v", err)
	}
	return trackPath, cuesPath
}

// fakeEncoder records submissions in place of ffmpeg.
type fakeEncoder struct {
	mu        sync.Mutex
	started   bool
	finalized bool
	frames    int64
	lastIndex int64
	failAt    int64
	output    string
	orderErr  error
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{failAt: -1, lastIndex: -1, output: "fake-output.mp4"}
}

func (f *fakeEncoder) Start(ctx context.Context, params encode.EncodeParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	return nil
}

func (f *fakeEncoder) SubmitFrame(buf *pipeline.FrameBuffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt >= 0 && buf.Index == f.failAt {
		return services.Wrap(services.ErrEncoding, "encode", "submit", "synthetic failure", nil)
	}
	if buf.Index != f.lastIndex+1 && f.orderErr == nil {
		f.orderErr = fmt.Errorf("frame %d delivered after %d", buf.Index, f.lastIndex)
	}
	f.lastIndex = buf.Index
	f.frames++
	return nil
}

func (f *fakeEncoder) Finalize(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = true
	return f.output, nil
}

func (f *fakeEncoder) FramesEncoded() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func (f *fakeEncoder) FellBack() bool { return false }

func newTestRunner(t *testing.T, cfg *config.Config, enc *fakeEncoder) (*Runner, *Store) {
	t.Helper()
	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	runner := NewRunner(cfg, store, logging.NewNop())
	runner.newEncoder = func(ctx context.Context) (renderEncoder, error) { return enc, nil }
	runner.probeAudio = func(path string) (media.AudioInfo, error) {
		return media.AudioInfo{Path: path, Duration: time.Second, CodecName: "mp3", SampleRate: 44100, Channels: 2}, nil
	}
	return runner, store
}

func TestRunnerCompletesJob(t *testing.T) {
	cfg := runnerConfig(t)
	enc := newFakeEncoder()
	runner, store := newTestRunner(t, cfg, enc)
	trackPath, cuesPath := writeFixtures(t)

	j, err := runner.Render(context.Background(), Request{
		AudioPath: "/music/song.mp3",
		TrackPath: trackPath,
		CuesPath:  cuesPath,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if j.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", j.Status)
	}
	if j.FramesExpected != 10 {
		t.Fatalf("frames expected = %d, want 10", j.FramesExpected)
	}
	if j.FramesEncoded != 10 {
		t.Fatalf("frames encoded = %d, want 10", j.FramesEncoded)
	}
	if j.OutputPath != enc.output {
		t.Fatalf("output = %s", j.OutputPath)
	}
	if enc.orderErr != nil {
		t.Fatalf("frame order violated: %v", enc.orderErr)
	}
	if !enc.finalized {
		t.Fatal("encoder never finalized")
	}

	persisted, err := store.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if persisted.Status != StatusCompleted || persisted.FramesEncoded != 10 {
		t.Fatalf("persisted = %s %d frames", persisted.Status, persisted.FramesEncoded)
	}
}

func TestRunnerEmitsProgressEvents(t *testing.T) {
	cfg := runnerConfig(t)
	enc := newFakeEncoder()
	runner, _ := newTestRunner(t, cfg, enc)
	trackPath, cuesPath := writeFixtures(t)

	events := make(chan ProgressEvent, 64)
	_, err := runner.Render(context.Background(), Request{
		AudioPath: "song.mp3",
		TrackPath: trackPath,
		CuesPath:  cuesPath,
		Events:    events,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	close(events)

	seen := map[Status]bool{}
	var last ProgressEvent
	for event := range events {
		seen[event.Status] = true
		last = event
	}
	for _, want := range []Status{StatusAnalyzing, StatusRendering, StatusEncoding, StatusCompleted} {
		if !seen[want] {
			t.Fatalf("no event for status %s", want)
		}
	}
	if last.Status != StatusCompleted || last.FramesEncoded != 10 {
		t.Fatalf("final event = %+v", last)
	}
}

func TestRunnerFailsOnTimingGap(t *testing.T) {
	cfg := runnerConfig(t)
	enc := newFakeEncoder()
	runner, store := newTestRunner(t, cfg, enc)
	trackPath, _ := writeFixtures(t)

	dir := t.TempDir()
	cuesPath := filepath.Join(dir, "cues.json")
	// Cue range lies entirely past the end of the feature track.
	if err := os.WriteFile(cuesPath, []byte(`{"cues": [{"start_ms": 2000, "end_ms": 5000, "text": "LATE"}]}`), 0o644); err != nil {
		t.Fatalf("write cues: %v", err)
	}

	j, err := runner.Render(context.Background(), Request{
		AudioPath: "song.mp3",
		TrackPath: trackPath,
		CuesPath:  cuesPath,
	})
	if !errors.Is(err, services.ErrTimingGap) {
		t.Fatalf("got %v, want ErrTimingGap", err)
	}
	if j.Status != StatusFailed {
		t.Fatalf("status = %s", j.Status)
	}
	if enc.started {
		t.Fatal("encoder must not start for an invalid job")
	}

	persisted, getErr := store.Get(context.Background(), j.ID)
	if getErr != nil {
		t.Fatalf("get: %v", getErr)
	}
	if persisted.ErrorKind != string(services.KindTimingGap) {
		t.Fatalf("error kind = %s", persisted.ErrorKind)
	}
}

func TestRunnerFailsOnUnfittableCue(t *testing.T) {
	cfg := runnerConfig(t)
	// Pinch the vertical safe zone below the bitmap face's line height so no
	// amount of font shrinking can make the cue fit.
	cfg.SafeZone.Top = 90
	cfg.SafeZone.Bottom = 85
	enc := newFakeEncoder()
	runner, _ := newTestRunner(t, cfg, enc)
	trackPath, cuesPath := writeFixtures(t)

	j, err := runner.Render(context.Background(), Request{
		AudioPath: "song.mp3",
		TrackPath: trackPath,
		CuesPath:  cuesPath,
	})
	if !errors.Is(err, services.ErrLayoutOverflow) {
		t.Fatalf("got %v, want ErrLayoutOverflow", err)
	}
	if j.Status != StatusFailed {
		t.Fatalf("status = %s", j.Status)
	}
}

func TestRunnerFailsWhenEncoderRejectsFrame(t *testing.T) {
	cfg := runnerConfig(t)
	enc := newFakeEncoder()
	enc.failAt = 4
	runner, store := newTestRunner(t, cfg, enc)
	trackPath, cuesPath := writeFixtures(t)

	j, err := runner.Render(context.Background(), Request{
		AudioPath: "song.mp3",
		TrackPath: trackPath,
		CuesPath:  cuesPath,
	})
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("got %v, want ErrEncoding", err)
	}

	persisted, getErr := store.Get(context.Background(), j.ID)
	if getErr != nil {
		t.Fatalf("get: %v", getErr)
	}
	if persisted.Status != StatusFailed || persisted.ErrorKind != string(services.KindEncoding) {
		t.Fatalf("persisted = %s %s", persisted.Status, persisted.ErrorKind)
	}
	if persisted.FailedFrame < 0 {
		t.Fatalf("failed frame = %d, want recorded index", persisted.FailedFrame)
	}
}

func TestRunnerDerivesOutputPath(t *testing.T) {
	cfg := runnerConfig(t)
	runner := &Runner{cfg: cfg}

	got := runner.outputPath(Request{AudioPath: "/music/my song.flac"})
	want := filepath.Join(cfg.Paths.OutputDir, "my song.mp4")
	if got != want {
		t.Fatalf("output = %s, want %s", got, want)
	}

	explicit := runner.outputPath(Request{AudioPath: "a.mp3", OutputPath: "/tmp/out.mp4"})
	if explicit != "/tmp/out.mp4" {
		t.Fatalf("explicit output = %s", explicit)
	}
}

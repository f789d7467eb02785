package encode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"cadence/internal/logging"
	"cadence/internal/pipeline"
	"cadence/internal/services"
)

func testParams(t *testing.T) EncodeParams {
	t.Helper()
	dir := t.TempDir()
	return EncodeParams{
		Width:        4,
		Height:       2,
		FPS:          30,
		OutputPath:   filepath.Join(dir, "out.mp4"),
		WorkDir:      dir,
		CRF:          18,
		Preset:       "medium",
		AudioBitrate: "192k",
	}
}

// stubCommands redirects ffmpeg launches to shell stubs chosen by the codec
// argument, so encoder behaviour can be exercised without ffmpeg installed.
func stubCommands(t *testing.T, scripts map[string]string) {
	t.Helper()
	orig := commandContext
	t.Cleanup(func() { commandContext = orig })
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		for codec, script := range scripts {
			for _, arg := range args {
				if arg == codec {
					return exec.CommandContext(ctx, "sh", "-c", script)
				}
			}
		}
		t.Fatalf("no stub for command %s %v", name, args)
		return nil
	}
}

func frameBuffer(t *testing.T, index int64) *pipeline.FrameBuffer {
	t.Helper()
	pool := pipeline.NewBufferPool(1, 8, 6)
	buf, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	buf.Index = index
	buf.Crop = image.Rect(2, 2, 6, 4)
	for i := range buf.Img.Pix {
		buf.Img.Pix[i] = byte(i)
	}
	return buf
}

func TestSegmentEncoderPipesCroppedFrames(t *testing.T) {
	params := testParams(t)
	capture := filepath.Join(params.WorkDir, "capture.bin")
	stubCommands(t, map[string]string{
		"libx264": "cat > " + capture,
		"concat":  "true",
	})

	enc := NewSoftwareEncoder("ffmpeg", logging.NewNop())
	if err := enc.Start(context.Background(), params); err != nil {
		t.Fatalf("start: %v", err)
	}

	const frames = 3
	for i := int64(0); i < frames; i++ {
		buf := frameBuffer(t, i)
		if err := enc.SubmitFrame(buf); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		buf.Release()
	}
	if enc.Frames() != frames {
		t.Fatalf("frames = %d, want %d", enc.Frames(), frames)
	}

	if _, err := enc.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	data, err := os.ReadFile(capture)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	wantLen := frames * 4 * 2 * 4 // frames * width * height * bytes per pixel
	if len(data) != wantLen {
		t.Fatalf("captured %d bytes, want %d", len(data), wantLen)
	}
}

func TestSubmitFrameRejectsWrongSize(t *testing.T) {
	params := testParams(t)
	stubCommands(t, map[string]string{"libx264": "cat > /dev/null"})

	enc := NewSoftwareEncoder("ffmpeg", logging.NewNop())
	if err := enc.Start(context.Background(), params); err != nil {
		t.Fatalf("start: %v", err)
	}

	buf := frameBuffer(t, 0)
	buf.Crop = image.Rect(0, 0, 8, 6)
	if err := enc.SubmitFrame(buf); !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("got %v, want ErrEncoding", err)
	}
}

func TestSubmitBeforeStart(t *testing.T) {
	enc := NewSoftwareEncoder("ffmpeg", logging.NewNop())
	err := enc.SubmitFrame(frameBuffer(t, 0))
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("got %v, want ErrEncoding", err)
	}
}

func TestEncodeParamsValidate(t *testing.T) {
	base := testParams(t)
	cases := []struct {
		name   string
		mutate func(*EncodeParams)
	}{
		{"odd width", func(p *EncodeParams) { p.Width = 3 }},
		{"zero height", func(p *EncodeParams) { p.Height = 0 }},
		{"zero fps", func(p *EncodeParams) { p.FPS = 0 }},
		{"no output", func(p *EncodeParams) { p.OutputPath = " " }},
		{"no workdir", func(p *EncodeParams) { p.WorkDir = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := base
			tc.mutate(&params)
			if err := params.validate(); !errors.Is(err, services.ErrValidation) {
				t.Fatalf("got %v, want ErrValidation", err)
			}
		})
	}
	if err := base.validate(); err != nil {
		t.Fatalf("valid params rejected: %v", err)
	}
}

func TestFallbackContinuesFromFailedFrame(t *testing.T) {
	// Pipe-buffer-sized frames so a write fails as soon as the hardware stub
	// dies instead of draining silently into the kernel buffer.
	const side = 128
	const frameBytes = side * side * 4

	params := testParams(t)
	params.Width = side
	params.Height = side
	capture := filepath.Join(params.WorkDir, "software.bin")
	stubCommands(t, map[string]string{
		"h264_nvenc": fmt.Sprintf("head -c %d > /dev/null; exit 1", 2*frameBytes),
		"libx264":    "cat > " + capture,
		"concat":     "true",
	})

	indexed := func(index int64) *pipeline.FrameBuffer {
		pool := pipeline.NewBufferPool(1, side, side)
		buf, err := pool.Acquire(context.Background())
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		buf.Index = index
		buf.Crop = image.Rect(0, 0, side, side)
		for i := range buf.Img.Pix {
			buf.Img.Pix[i] = byte(index + 1)
		}
		return buf
	}

	enc := NewFallbackEncoder(
		NewHardwareEncoder("ffmpeg", "h264_nvenc", logging.NewNop()),
		NewSoftwareEncoder("ffmpeg", logging.NewNop()),
		logging.NewNop(),
	)
	if err := enc.Start(context.Background(), params); err != nil {
		t.Fatalf("start: %v", err)
	}

	const frames = 10
	for i := int64(0); i < frames; i++ {
		buf := indexed(i)
		if err := enc.SubmitFrame(buf); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		buf.Release()
	}

	if !enc.FellBack() {
		t.Fatal("expected fallback to software")
	}
	if got := enc.FramesEncoded(); got != frames {
		t.Fatalf("frames encoded = %d, want %d", got, frames)
	}

	if _, err := enc.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Every frame not committed to the hardware segment must be in the
	// software capture, with no frame encoded twice.
	data, err := os.ReadFile(capture)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	softwareFrames := len(data) / frameBytes
	if len(data)%frameBytes != 0 {
		t.Fatalf("software capture holds a partial frame: %d bytes", len(data))
	}
	if int64(softwareFrames)+enc.resumeFrame != frames {
		t.Fatalf("segments cover %d frames, want %d", int64(softwareFrames)+enc.resumeFrame, frames)
	}
}

func TestParseProgressFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seg.ts.progress")
	if got := parseProgressFrames(path); got != -1 {
		t.Fatalf("missing file: got %d, want -1", got)
	}
	content := "frame=1\nfps=30.0\nprogress=continue\nframe=17\nprogress=end\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write progress: %v", err)
	}
	if got := parseProgressFrames(path); got != 17 {
		t.Fatalf("got %d, want 17", got)
	}
}

func TestFallbackReplaysUnflushedFrames(t *testing.T) {
	// Pipe-buffer-sized frames so a write fails as soon as the hardware stub
	// dies instead of draining silently into the kernel buffer.
	const side = 128
	const frameBytes = side * side * 4

	params := testParams(t)
	params.Width = side
	params.Height = side
	capture := filepath.Join(params.WorkDir, "software.bin")
	// The hardware stub consumes two frames, then reports only one of them
	// flushed before dying. The second sat in the codec buffer and was lost;
	// replay has to regenerate it for the software segment.
	progress := filepath.Join(params.WorkDir, "segment-h264_nvenc.ts.progress")
	stubCommands(t, map[string]string{
		"h264_nvenc": fmt.Sprintf("head -c %d > /dev/null; printf 'frame=1\\nprogress=continue\\n' > %s; exit 1", 2*frameBytes, progress),
		"libx264":    "cat > " + capture,
		"concat":     "true",
	})

	indexed := func(index int64) *pipeline.FrameBuffer {
		pool := pipeline.NewBufferPool(1, side, side)
		buf, err := pool.Acquire(context.Background())
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		buf.Index = index
		buf.Crop = image.Rect(0, 0, side, side)
		for i := range buf.Img.Pix {
			buf.Img.Pix[i] = byte(index + 1)
		}
		return buf
	}

	enc := NewFallbackEncoder(
		NewHardwareEncoder("ffmpeg", "h264_nvenc", logging.NewNop()),
		NewSoftwareEncoder("ffmpeg", logging.NewNop()),
		logging.NewNop(),
	)
	enc.SetReplay(func(ctx context.Context, index int64, submit func(*pipeline.FrameBuffer) error) error {
		buf := indexed(index)
		defer buf.Release()
		return submit(buf)
	})
	if err := enc.Start(context.Background(), params); err != nil {
		t.Fatalf("start: %v", err)
	}

	const frames = 10
	for i := int64(0); i < frames; i++ {
		buf := indexed(i)
		if err := enc.SubmitFrame(buf); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
		buf.Release()
	}

	if !enc.FellBack() {
		t.Fatal("expected fallback to software")
	}
	if got := enc.FramesEncoded(); got != frames {
		t.Fatalf("frames encoded = %d, want %d", got, frames)
	}
	if enc.resumeFrame != 1 {
		t.Fatalf("resume frame = %d, want 1", enc.resumeFrame)
	}
	if _, err := enc.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// The software capture must hold frames 1..9 exactly once, in order, no
	// matter which pipe write actually failed.
	data, err := os.ReadFile(capture)
	if err != nil {
		t.Fatalf("read capture: %v", err)
	}
	if len(data) != (frames-1)*frameBytes {
		t.Fatalf("captured %d bytes, want %d", len(data), (frames-1)*frameBytes)
	}
	for j := 1; j < frames; j++ {
		chunk := data[(j-1)*frameBytes : j*frameBytes]
		for _, b := range chunk {
			if b != byte(j+1) {
				t.Fatalf("frame %d payload corrupted: got %d, want %d", j, b, j+1)
			}
		}
	}
}

func TestFallbackHappensOnlyOnce(t *testing.T) {
	// Pipe-buffer-sized frames so a write fails as soon as a stub dies
	// instead of draining silently into the kernel buffer.
	const side = 128

	params := testParams(t)
	params.Width = side
	params.Height = side
	stubCommands(t, map[string]string{
		"h264_nvenc": "exit 1",
		"libx264":    "head -c 8 > /dev/null; exit 1",
	})

	indexed := func(index int64) *pipeline.FrameBuffer {
		pool := pipeline.NewBufferPool(1, side, side)
		buf, err := pool.Acquire(context.Background())
		if err != nil {
			t.Fatalf("acquire: %v", err)
		}
		buf.Index = index
		buf.Crop = image.Rect(0, 0, side, side)
		for i := range buf.Img.Pix {
			buf.Img.Pix[i] = byte(index + 1)
		}
		return buf
	}

	enc := NewFallbackEncoder(
		NewHardwareEncoder("ffmpeg", "h264_nvenc", logging.NewNop()),
		NewSoftwareEncoder("ffmpeg", logging.NewNop()),
		logging.NewNop(),
	)
	if err := enc.Start(context.Background(), params); err != nil {
		t.Fatalf("start: %v", err)
	}

	var failed error
	for i := int64(0); i < 50 && failed == nil; i++ {
		buf := indexed(i)
		failed = enc.SubmitFrame(buf)
		buf.Release()
	}
	if !errors.Is(failed, services.ErrEncoding) {
		t.Fatalf("got %v, want ErrEncoding after both paths fail", failed)
	}
}

func TestSoftwareOnlyNeverReportsFallback(t *testing.T) {
	params := testParams(t)
	stubCommands(t, map[string]string{
		"libx264": "cat > /dev/null",
		"concat":  "true",
	})

	enc := NewFallbackEncoder(nil, NewSoftwareEncoder("ffmpeg", logging.NewNop()), logging.NewNop())
	if err := enc.Start(context.Background(), params); err != nil {
		t.Fatalf("start: %v", err)
	}
	buf := frameBuffer(t, 0)
	if err := enc.SubmitFrame(buf); err != nil {
		t.Fatalf("submit: %v", err)
	}
	buf.Release()
	if enc.FellBack() {
		t.Fatal("software-only encoder must not report fallback")
	}
	if _, err := enc.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize: %v", err)
	}
}

package encode

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestMuxWritesConcatListAndMapsAudio(t *testing.T) {
	params := testParams(t)
	params.AudioPath = filepath.Join(params.WorkDir, "song.mp3")

	var gotArgs []string
	orig := commandContext
	t.Cleanup(func() { commandContext = orig })
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotArgs = args
		return exec.CommandContext(ctx, "true")
	}

	segments := []string{
		filepath.Join(params.WorkDir, "segment-h264_nvenc.ts"),
		filepath.Join(params.WorkDir, "segment-libx264.ts"),
	}
	output, err := mux(context.Background(), "ffmpeg", params, segments)
	if err != nil {
		t.Fatalf("mux: %v", err)
	}
	if output != params.OutputPath {
		t.Fatalf("output = %s, want %s", output, params.OutputPath)
	}

	list, err := os.ReadFile(filepath.Join(params.WorkDir, "segments.txt"))
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	for _, segment := range segments {
		if !strings.Contains(string(list), "file '"+segment+"'") {
			t.Fatalf("concat list missing %s:\n%s", segment, list)
		}
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"-f concat", params.AudioPath, "-c:a aac", "-c:v copy", "-shortest"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("mux args missing %q: %s", want, joined)
		}
	}
}

func TestMuxWithoutAudioSkipsAudioMapping(t *testing.T) {
	params := testParams(t)

	var gotArgs []string
	orig := commandContext
	t.Cleanup(func() { commandContext = orig })
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotArgs = args
		return exec.CommandContext(ctx, "true")
	}

	if _, err := mux(context.Background(), "ffmpeg", params, []string{"a.ts"}); err != nil {
		t.Fatalf("mux: %v", err)
	}
	joined := strings.Join(gotArgs, " ")
	if strings.Contains(joined, "-c:a") {
		t.Fatalf("unexpected audio args: %s", joined)
	}
}

func TestMuxNoSegments(t *testing.T) {
	params := testParams(t)
	if _, err := mux(context.Background(), "ffmpeg", params, nil); err == nil {
		t.Fatal("expected error for empty segment list")
	}
}

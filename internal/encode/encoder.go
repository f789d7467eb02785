package encode

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"cadence/internal/logging"
	"cadence/internal/pipeline"
	"cadence/internal/services"
)

// Encoder consumes ordered frames and produces the final video file. It
// satisfies the scheduler's frame consumer contract.
type Encoder interface {
	Start(ctx context.Context, params EncodeParams) error
	SubmitFrame(buf *pipeline.FrameBuffer) error
	Finalize(ctx context.Context) (string, error)
}

var commandContext = exec.CommandContext

// segmentEncoder pipes raw RGBA frames into one ffmpeg process that writes an
// MPEG-TS segment. TS survives a dying encoder: frames already flushed stay
// decodable, which is what makes mid-job fallback possible.
type segmentEncoder struct {
	binary    string
	label     string
	codecArgs func(EncodeParams) []string
	logger    *slog.Logger

	mu           sync.Mutex
	cmd          *exec.Cmd
	stdin        io.WriteCloser
	stderr       bytes.Buffer
	params       EncodeParams
	segmentPath  string
	progressPath string
	frames       int64
}

// HardwareEncoder drives a GPU H.264 encoder such as h264_nvenc or
// h264_videotoolbox.
type HardwareEncoder struct {
	segmentEncoder
}

// NewHardwareEncoder returns an encoder for the given hardware codec name as
// reported by the encoder probe.
func NewHardwareEncoder(binary, codec string, logger *slog.Logger) *HardwareEncoder {
	return &HardwareEncoder{segmentEncoder{
		binary: binary,
		label:  codec,
		logger: logging.NewComponentLogger(logger, "encode"),
		codecArgs: func(EncodeParams) []string {
			return []string{"-c:v", codec, "-pix_fmt", "yuv420p"}
		},
	}}
}

// SoftwareEncoder drives libx264.
type SoftwareEncoder struct {
	segmentEncoder
}

func NewSoftwareEncoder(binary string, logger *slog.Logger) *SoftwareEncoder {
	return &SoftwareEncoder{segmentEncoder{
		binary: binary,
		label:  "libx264",
		logger: logging.NewComponentLogger(logger, "encode"),
		codecArgs: func(p EncodeParams) []string {
			return []string{
				"-c:v", "libx264",
				"-preset", p.Preset,
				"-crf", strconv.Itoa(p.CRF),
				"-pix_fmt", "yuv420p",
			}
		},
	}}
}

func (e *segmentEncoder) Start(ctx context.Context, params EncodeParams) error {
	if err := params.validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		return services.Wrap(services.ErrEncoding, "encode", "start", "encoder already started", nil)
	}

	e.params = params
	e.segmentPath = filepath.Join(params.WorkDir, fmt.Sprintf("segment-%s.ts", e.label))
	e.progressPath = e.segmentPath + ".progress"

	args := []string{
		"-hide_banner", "-y",
		"-progress", e.progressPath,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"-framerate", strconv.Itoa(params.FPS),
		"-i", "-",
	}
	args = append(args, e.codecArgs(params)...)
	args = append(args, "-an", "-f", "mpegts", e.segmentPath)

	cmd := commandContext(ctx, e.binary, args...)
	cmd.Stderr = &e.stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return services.Wrap(services.ErrEncoding, "encode", "start", "ffmpeg stdin pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrEncoding, "encode", "start", "launch ffmpeg", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	e.logger.Info("encoder started",
		logging.String("codec", e.label),
		logging.String("segment", e.segmentPath))
	return nil
}

// SubmitFrame writes the buffer's cropped pixels to the encoder. Frames must
// arrive in playback order; ordering is the scheduler's job.
func (e *segmentEncoder) SubmitFrame(buf *pipeline.FrameBuffer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stdin == nil {
		return services.Wrap(services.ErrEncoding, "encode", "submit", "encoder not started", nil)
	}

	cropped := buf.Cropped()
	size := cropped.Bounds().Size()
	if size.X != e.params.Width || size.Y != e.params.Height {
		return services.Wrap(services.ErrEncoding, "encode", "submit",
			fmt.Sprintf("frame %d is %dx%d, want %dx%d", buf.Index, size.X, size.Y, e.params.Width, e.params.Height), nil)
	}

	if err := writeRGBA(e.stdin, cropped); err != nil {
		return services.Wrap(services.ErrEncoding, "encode", "submit",
			fmt.Sprintf("write frame %d: %s", buf.Index, e.stderrTail()), err)
	}
	e.frames++
	return nil
}

// Finalize closes the pipe, waits for ffmpeg to flush, and returns the
// segment path.
func (e *segmentEncoder) Finalize(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil {
		return "", services.Wrap(services.ErrEncoding, "encode", "finalize", "encoder not started", nil)
	}

	if err := e.stdin.Close(); err != nil {
		return "", services.Wrap(services.ErrEncoding, "encode", "finalize", "close ffmpeg stdin", err)
	}
	if err := e.cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", services.Wrap(services.ErrCancelled, "encode", "finalize", "encode cancelled", ctxErr)
		}
		return "", services.Wrap(services.ErrEncoding, "encode", "finalize", e.stderrTail(), err)
	}
	return e.segmentPath, nil
}

// Frames returns the number of frames accepted so far.
func (e *segmentEncoder) Frames() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// flushedFrames reports how many frames ffmpeg actually wrote to the segment,
// from its -progress output. Accepted frames can sit in the codec's delay
// buffer when the process dies, so this can trail Frames. Returns -1 when no
// progress was ever recorded.
func (e *segmentEncoder) flushedFrames() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return parseProgressFrames(e.progressPath)
}

func parseProgressFrames(path string) int64 {
	raw, err := os.ReadFile(path)
	if err != nil {
		return -1
	}
	frames := int64(-1)
	for _, line := range strings.Split(string(raw), "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "frame=")
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			frames = n
		}
	}
	return frames
}

// abort tears the process down after a mid-stream failure, keeping whatever
// the segment already holds.
func (e *segmentEncoder) abort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil {
		return
	}
	if e.stdin != nil {
		e.stdin.Close()
	}
	e.cmd.Wait()
	e.cmd = nil
	e.stdin = nil
}

func (e *segmentEncoder) stderrTail() string {
	const tail = 400
	out := strings.TrimSpace(e.stderr.String())
	if len(out) > tail {
		out = "..." + out[len(out)-tail:]
	}
	if out == "" {
		return "ffmpeg failed with no diagnostic output"
	}
	return out
}

// writeRGBA streams the image row by row so cropped subimages with a wider
// backing stride come out packed.
func writeRGBA(w io.Writer, img *image.RGBA) error {
	bounds := img.Bounds()
	rowLen := 4 * bounds.Dx()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		offset := img.PixOffset(bounds.Min.X, y)
		if _, err := w.Write(img.Pix[offset : offset+rowLen]); err != nil {
			return err
		}
	}
	return nil
}

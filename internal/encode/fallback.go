package encode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cadence/internal/logging"
	"cadence/internal/pipeline"
	"cadence/internal/services"
)

// ReplayFunc re-renders a single frame and hands it to submit. Frames are a
// pure function of their index, so the fallback path can regenerate the ones
// a dying hardware encoder accepted but never flushed to its segment.
type ReplayFunc func(ctx context.Context, index int64, submit func(*pipeline.FrameBuffer) error) error

// FallbackEncoder runs the hardware path and switches to software at most
// once if the hardware encoder fails mid-job. Frames already flushed to the
// hardware segment are never re-encoded; the software segment continues from
// the first frame the hardware path did not accept.
type FallbackEncoder struct {
	hardware *HardwareEncoder
	software *SoftwareEncoder
	logger   *slog.Logger

	mu sync.Mutex
	// startCtx is retained because fallback has to launch the software
	// process from SubmitFrame, which carries no context.
	startCtx context.Context
	params   EncodeParams
	active   *segmentEncoder
	fellBack bool
	replay   ReplayFunc
	segments []string
	// resumeFrame counts frames committed to completed segments.
	resumeFrame int64
}

// NewFallbackEncoder wraps the two paths. A nil hardware encoder means
// software-only with no fallback available.
func NewFallbackEncoder(hardware *HardwareEncoder, software *SoftwareEncoder, logger *slog.Logger) *FallbackEncoder {
	return &FallbackEncoder{
		hardware: hardware,
		software: software,
		logger:   logging.NewComponentLogger(logger, "encode"),
	}
}

// SetReplay installs the frame regeneration hook. Without one, fallback
// resumes from the last frame the hardware path accepted and any frames lost
// in its codec buffer stay lost.
func (f *FallbackEncoder) SetReplay(fn ReplayFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replay = fn
}

func (f *FallbackEncoder) Start(ctx context.Context, params EncodeParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active != nil {
		return services.Wrap(services.ErrEncoding, "encode", "start", "encoder already started", nil)
	}
	f.startCtx = ctx
	f.params = params

	if f.hardware == nil {
		f.fellBack = true
		f.active = &f.software.segmentEncoder
		return f.active.Start(ctx, params)
	}

	f.active = &f.hardware.segmentEncoder
	if err := f.active.Start(ctx, params); err != nil {
		return f.fallBackLocked(err)
	}
	return nil
}

func (f *FallbackEncoder) SubmitFrame(buf *pipeline.FrameBuffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := f.active.SubmitFrame(buf)
	if err == nil {
		return nil
	}
	if f.fellBack || f.startCtx.Err() != nil {
		return err
	}
	if fbErr := f.fallBackLocked(err); fbErr != nil {
		return fbErr
	}
	return f.active.SubmitFrame(buf)
}

// fallBackLocked retires the hardware path after cause, keeping its segment,
// and brings up the software encoder in its place. Frames the hardware path
// accepted but never flushed are regenerated through the replay hook.
func (f *FallbackEncoder) fallBackLocked(cause error) error {
	f.fellBack = true

	accepted := f.hardware.Frames()
	f.hardware.abort()

	resume := accepted
	if flushed := f.hardware.flushedFrames(); flushed >= 0 && flushed < accepted {
		if f.replay != nil {
			resume = flushed
		} else {
			f.logger.Warn("frames buffered by the failing encoder were lost",
				logging.Int64("dropped", accepted-flushed))
		}
	}
	if resume > 0 {
		f.segments = append(f.segments, f.hardware.segmentPath)
		f.resumeFrame = resume
	}
	f.logger.Warn("hardware encoder failed, falling back to software",
		logging.String(logging.FieldEncoderPath, f.software.label),
		logging.Int64("resume_frame", f.resumeFrame),
		logging.Error(cause))

	f.active = &f.software.segmentEncoder
	if err := f.active.Start(f.startCtx, f.params); err != nil {
		return services.Wrap(services.ErrEncoding, "encode", "fallback", "software fallback failed to start", err)
	}
	for index := resume; index < accepted; index++ {
		if err := f.replay(f.startCtx, index, f.active.SubmitFrame); err != nil {
			return services.Wrap(services.ErrEncoding, "encode", "fallback",
				fmt.Sprintf("replay frame %d", index), err)
		}
	}
	return nil
}

// Finalize flushes the active encoder, concatenates all segments, and muxes
// the audio track into the output file.
func (f *FallbackEncoder) Finalize(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		return "", services.Wrap(services.ErrEncoding, "encode", "finalize", "encoder not started", nil)
	}

	segment, err := f.active.Finalize(ctx)
	if err != nil {
		return "", err
	}
	f.segments = append(f.segments, segment)

	output, err := mux(ctx, f.active.binary, f.params, f.segments)
	if err != nil {
		return "", err
	}
	f.logger.Info("encode finalized",
		logging.String("output", output),
		logging.Int64("frames", f.framesEncodedLocked()))
	return output, nil
}

// FramesEncoded reports total frames accepted across both paths.
func (f *FallbackEncoder) FramesEncoded() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.framesEncodedLocked()
}

func (f *FallbackEncoder) framesEncodedLocked() int64 {
	if f.active == nil {
		return f.resumeFrame
	}
	return f.resumeFrame + f.active.Frames()
}

// FellBack reports whether the software path took over mid-job.
func (f *FallbackEncoder) FellBack() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fellBack && f.hardware != nil
}

package job

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cadence/internal/config"
	"cadence/internal/encode"
	"cadence/internal/layout"
	"cadence/internal/logging"
	"cadence/internal/media"
	"cadence/internal/pipeline"
	"cadence/internal/render"
	"cadence/internal/services"
	"cadence/internal/timing"
)

// Request describes one render.
type Request struct {
	AudioPath      string
	TrackPath      string
	CuesPath       string
	BackgroundPath string
	OutputPath     string
	// Style overrides the default text style when non-zero.
	Style *layout.Style
	// Events receives progress updates when set. Sends never block; a slow
	// receiver just misses intermediate updates.
	Events chan<- ProgressEvent
}

// ProgressEvent is one progress update emitted while a job runs.
type ProgressEvent struct {
	JobID          string
	Status         Status
	FramesEncoded  int64
	FramesExpected int64
}

type renderEncoder interface {
	encode.Encoder
	FramesEncoded() int64
	FellBack() bool
}

// Runner drives a job through analysis, rendering, and encoding.
type Runner struct {
	cfg    *config.Config
	store  *Store
	logger *slog.Logger

	// Seams for tests.
	newEncoder func(ctx context.Context) (renderEncoder, error)
	probeAudio func(path string) (media.AudioInfo, error)
}

func NewRunner(cfg *config.Config, store *Store, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "job"),
		newEncoder: func(ctx context.Context) (renderEncoder, error) {
			return encode.SelectEncoder(ctx, cfg, logger)
		},
		probeAudio: media.ProbeAudio,
	}
}

// Render runs the request to completion. The returned job carries the
// terminal state; the error reflects the failure cause when the job did not
// complete.
func (r *Runner) Render(ctx context.Context, req Request) (*Job, error) {
	job := &Job{
		ID:             uuid.NewString(),
		Status:         StatusQueued,
		AudioPath:      req.AudioPath,
		CuesPath:       req.CuesPath,
		BackgroundPath: req.BackgroundPath,
		FailedFrame:    -1,
	}
	if err := r.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, r.logger)
	logger.Info("job created", logging.String("audio", req.AudioPath))

	if err := r.run(ctx, job, req, logger); err != nil {
		kind := services.FailureKind(err)
		failedFrame := int64(-1)
		if kind == services.KindFrameTimeout || kind == services.KindEncoding {
			failedFrame = job.FramesEncoded
		}
		if markErr := r.store.MarkFailed(ctx, job, kind, err.Error(), failedFrame); markErr != nil {
			logger.Error("persist failure state", logging.Error(markErr))
		}
		r.emit(req, job)
		logger.Error("job failed",
			logging.String("kind", string(kind)),
			logging.Error(err))
		return job, err
	}

	r.emit(req, job)
	logger.Info("job completed",
		logging.String("output", job.OutputPath),
		logging.Int64("frames", job.FramesEncoded),
		logging.Bool("used_fallback", job.UsedFallback))
	return job, nil
}

func (r *Runner) run(ctx context.Context, job *Job, req Request, logger *slog.Logger) error {
	if err := r.transition(ctx, job, StatusAnalyzing, req); err != nil {
		return err
	}

	plan, err := r.analyze(ctx, job, req, logger)
	if err != nil {
		return err
	}

	if err := r.transition(ctx, job, StatusRendering, req); err != nil {
		return err
	}
	encoder, err := r.renderFrames(ctx, job, req, plan, logger)
	if err != nil {
		return err
	}

	if err := r.transition(ctx, job, StatusEncoding, req); err != nil {
		return err
	}
	output, err := encoder.Finalize(ctx)
	if err != nil {
		return err
	}
	job.OutputPath = output
	job.FramesEncoded = encoder.FramesEncoded()
	job.UsedFallback = encoder.FellBack()
	if err := r.store.UpdateProgress(ctx, job); err != nil {
		return err
	}
	return r.transition(ctx, job, StatusCompleted, req)
}

// renderPlan is everything analysis produces for the render stage.
type renderPlan struct {
	model      *timing.Model
	compositor *render.Compositor
	canvas     layout.CanvasConfig
	params     encode.EncodeParams
}

func (r *Runner) analyze(ctx context.Context, job *Job, req Request, logger *slog.Logger) (*renderPlan, error) {
	ctx = services.WithStage(ctx, "analyze")
	logger = logging.WithContext(ctx, r.logger)

	track, err := timing.LoadTrack(req.TrackPath)
	if err != nil {
		return nil, err
	}
	cues, err := timing.LoadCues(req.CuesPath)
	if err != nil {
		return nil, err
	}
	model, err := timing.NewModel(track, cues)
	if err != nil {
		return nil, err
	}

	audio, err := r.probeAudio(req.AudioPath)
	if err != nil {
		return nil, err
	}
	job.FramesExpected = audio.FrameCount(r.cfg.Frame.FPS)
	if job.FramesExpected <= 0 {
		return nil, services.Wrap(services.ErrValidation, "job", "analyze", "audio yields no frames", nil)
	}
	if err := r.store.UpdateProgress(ctx, job); err != nil {
		return nil, err
	}

	safe := layout.SafeZoneConfig{
		Left:   r.cfg.SafeZone.Left,
		Right:  r.cfg.SafeZone.Right,
		Top:    r.cfg.SafeZone.Top,
		Bottom: r.cfg.SafeZone.Bottom,
	}
	canvas := layout.CanvasConfig{
		FrameWidth:  r.cfg.Frame.Width,
		FrameHeight: r.cfg.Frame.Height,
		Pad:         r.cfg.Canvas.Pad,
	}
	engine, err := layout.NewEngine(safe, canvas, r.cfg.Paths.FontPath)
	if err != nil {
		return nil, err
	}

	base := layout.DefaultStyle()
	if req.Style != nil {
		base = *req.Style
	}
	styles, err := resolveStyles(engine, model.Cues(), base, r.cfg.Pipeline.ShrinkFontSteps, logger)
	if err != nil {
		return nil, err
	}

	background, err := r.backgroundSource(req)
	if err != nil {
		return nil, err
	}
	compositor, err := render.NewCompositor(engine, background, styles)
	if err != nil {
		return nil, err
	}

	workDir := filepath.Join(r.cfg.Paths.WorkDir, job.ID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("create job work dir: %w", err)
	}

	params := encode.EncodeParams{
		Width:        r.cfg.Frame.Width,
		Height:       r.cfg.Frame.Height,
		FPS:          r.cfg.Frame.FPS,
		AudioPath:    req.AudioPath,
		OutputPath:   r.outputPath(req),
		WorkDir:      workDir,
		CRF:          r.cfg.Encoder.CRF,
		Preset:       r.cfg.Encoder.Preset,
		AudioBitrate: r.cfg.Encoder.AudioBitrate,
	}

	logger.Info("analysis complete",
		logging.Int64("frames_expected", job.FramesExpected),
		logging.Int("cues", len(model.Cues())),
		logging.Int("bands", track.Bands()),
		logging.Duration("audio_duration", audio.Duration))
	return &renderPlan{model: model, compositor: compositor, canvas: canvas, params: params}, nil
}

func (r *Runner) renderFrames(ctx context.Context, job *Job, req Request, plan *renderPlan, logger *slog.Logger) (renderEncoder, error) {
	ctx = services.WithStage(ctx, "render")
	logger = logging.WithContext(ctx, r.logger)

	encoder, err := r.newEncoder(ctx)
	if err != nil {
		return nil, err
	}
	if err := encoder.Start(ctx, plan.params); err != nil {
		return nil, err
	}

	pool := pipeline.NewBufferPool(r.cfg.Pipeline.PoolSize, plan.canvas.PaddedWidth(), plan.canvas.PaddedHeight())
	sampler := logging.NewProgressSampler(5)

	delivered := func(index int64) {
		job.FramesEncoded = encoder.FramesEncoded()
		r.emit(req, job)
		percent := 100 * float64(job.FramesEncoded) / float64(job.FramesExpected)
		if sampler.ShouldLog(percent, string(StatusRendering)) {
			if err := r.store.UpdateProgress(ctx, job); err != nil {
				logger.Warn("persist progress", logging.Error(err))
			}
			logger.Info("render progress",
				logging.Int64(logging.FieldFrameIndex, index),
				logging.Int64("frames_encoded", job.FramesEncoded),
				logging.Int64("frames_expected", job.FramesExpected))
		}
	}

	scheduler := pipeline.NewScheduler(pipeline.SchedulerConfig{
		Workers:       r.cfg.Pipeline.Workers,
		ReorderWindow: r.cfg.Pipeline.ReorderWindow,
		FrameTimeout:  time.Duration(r.cfg.Pipeline.FrameTimeout) * time.Second,
		FrameRetries:  r.cfg.Pipeline.FrameRetries,
	}, pool, encoder, logger, delivered)

	fps := r.cfg.Frame.FPS
	renderFn := func(ctx context.Context, index int64, buf *pipeline.FrameBuffer) error {
		ts := time.Duration(index) * time.Second / time.Duration(fps)
		return plan.compositor.Render(ctx, plan.model.ContextAt(ts), buf)
	}

	// Frames are a pure function of their index, so the fallback path can
	// regenerate any the hardware encoder accepted but never flushed.
	if fb, ok := encoder.(interface{ SetReplay(encode.ReplayFunc) }); ok {
		scratch := pipeline.NewBufferPool(1, plan.canvas.PaddedWidth(), plan.canvas.PaddedHeight())
		fb.SetReplay(func(ctx context.Context, index int64, submit func(*pipeline.FrameBuffer) error) error {
			buf, err := scratch.Acquire(ctx)
			if err != nil {
				return err
			}
			defer buf.Release()
			buf.Index = index
			if err := renderFn(ctx, index, buf); err != nil {
				return err
			}
			return submit(buf)
		})
	}

	if err := scheduler.Run(ctx, job.FramesExpected, renderFn); err != nil {
		return nil, err
	}
	job.FramesEncoded = encoder.FramesEncoded()
	return encoder, r.store.UpdateProgress(ctx, job)
}

// resolveStyles applies the shrink policy per cue: a line that overflows the
// safe zone retries at a smaller size before the job is rejected.
func resolveStyles(engine *layout.Engine, cues []timing.Cue, base layout.Style, shrinkSteps int, logger *slog.Logger) ([]layout.Style, error) {
	styles := make([]layout.Style, len(cues))
	for i, cue := range cues {
		style := base
		var err error
		for step := 0; ; step++ {
			_, err = engine.Layout(cue.Text, style)
			if err == nil {
				break
			}
			if services.FailureKind(err) != services.KindLayoutOverflow || step >= shrinkSteps {
				return nil, err
			}
			style.FontSize *= 0.9
		}
		if style.FontSize != base.FontSize {
			logger.Warn("cue shrunk to fit safe zone",
				logging.Int("cue", i),
				logging.Float64("font_size", style.FontSize))
		}
		styles[i] = style
	}
	return styles, nil
}

func (r *Runner) backgroundSource(req Request) (render.BackgroundSource, error) {
	if strings.TrimSpace(req.BackgroundPath) == "" {
		return render.NewSolidSource(color.RGBA{A: 255}), nil
	}
	return render.NewStillSource(req.BackgroundPath, r.cfg.Frame.Width, r.cfg.Frame.Height)
}

func (r *Runner) outputPath(req Request) string {
	if strings.TrimSpace(req.OutputPath) != "" {
		return req.OutputPath
	}
	base := strings.TrimSuffix(filepath.Base(req.AudioPath), filepath.Ext(req.AudioPath))
	return filepath.Join(r.cfg.Paths.OutputDir, base+".mp4")
}

func (r *Runner) transition(ctx context.Context, job *Job, to Status, req Request) error {
	if err := r.store.Transition(ctx, job, to); err != nil {
		return err
	}
	r.emit(req, job)
	return nil
}

func (r *Runner) emit(req Request, job *Job) {
	if req.Events == nil {
		return
	}
	event := ProgressEvent{
		JobID:          job.ID,
		Status:         job.Status,
		FramesEncoded:  job.FramesEncoded,
		FramesExpected: job.FramesExpected,
	}
	select {
	case req.Events <- event:
	default:
	}
}

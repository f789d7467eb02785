package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cadence/internal/logging"
	"cadence/internal/services"
)

// RenderFunc fills one frame buffer for the given frame index. It must
// overwrite every pixel of the buffer's crop region and respect the context
// deadline.
type RenderFunc func(ctx context.Context, index int64, buf *FrameBuffer) error

// Consumer receives frames in strictly increasing index order. SubmitFrame
// may block; backpressure propagates to the render workers through the
// reorder window and the buffer pool.
type Consumer interface {
	SubmitFrame(buf *FrameBuffer) error
}

// SchedulerConfig bounds the scheduler's concurrency and retry behavior.
type SchedulerConfig struct {
	Workers       int
	ReorderWindow int
	FrameTimeout  time.Duration
	FrameRetries  int
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.ReorderWindow < 1 {
		c.ReorderWindow = 1
	}
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = 10 * time.Second
	}
	if c.FrameRetries < 0 {
		c.FrameRetries = 0
	}
	return c
}

// Scheduler renders a contiguous range of frame indices across a worker set
// and delivers completed buffers to the consumer in order.
type Scheduler struct {
	cfg      SchedulerConfig
	pool     *BufferPool
	consumer Consumer
	logger   *slog.Logger

	// Rendered reports how many frames have been delivered; the runner polls
	// it for progress events.
	delivered func(index int64)
}

// NewScheduler wires a scheduler to its pool and consumer. The delivered
// callback is optional and invoked after each in-order submission.
func NewScheduler(cfg SchedulerConfig, pool *BufferPool, consumer Consumer, logger *slog.Logger, delivered func(index int64)) *Scheduler {
	return &Scheduler{
		cfg:       cfg.withDefaults(),
		pool:      pool,
		consumer:  consumer,
		logger:    logging.NewComponentLogger(logger, "scheduler"),
		delivered: delivered,
	}
}

// Run renders frames [0, total) and returns once every frame has been
// delivered or the first unrecoverable error occurs. Cancellation of ctx
// fails in-flight acquires fast and stops workers after their current frame.
func (s *Scheduler) Run(ctx context.Context, total int64, render RenderFunc) error {
	if total <= 0 {
		return services.Wrap(services.ErrValidation, "scheduler", "run", "no frames to render", nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		failOnce sync.Once
		firstErr error
	)
	fail := func(err error) {
		failOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	indices := make(chan int64)
	go func() {
		defer close(indices)
		for i := int64(0); i < total; i++ {
			select {
			case indices <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	rendered := make(chan *FrameBuffer, s.cfg.ReorderWindow)
	var workers sync.WaitGroup
	for w := 0; w < s.cfg.Workers; w++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for {
				// Acquire before taking an index. Every in-flight index then
				// holds a buffer, so the lowest undelivered frame can always
				// render and the reorder map cannot absorb the whole pool
				// while a predecessor starves in Acquire.
				buf, err := s.pool.Acquire(ctx)
				if err != nil {
					return
				}
				index, ok := <-indices
				if !ok {
					buf.Release()
					return
				}
				buf.Index = index
				if err := s.renderInto(ctx, index, buf, render); err != nil {
					buf.Release()
					fail(err)
					return
				}
				select {
				case rendered <- buf:
				case <-ctx.Done():
					buf.Release()
					return
				}
			}
		}()
	}

	go func() {
		workers.Wait()
		close(rendered)
	}()

	next := int64(0)
	submitFailed := false
	pending := make(map[int64]*FrameBuffer, s.cfg.ReorderWindow)
	for buf := range rendered {
		if submitFailed {
			buf.Release()
			continue
		}
		if _, dup := pending[buf.Index]; dup || buf.Index < next {
			buf.Release()
			fail(services.Wrap(services.ErrValidation, "scheduler", "reorder",
				fmt.Sprintf("duplicate frame index %d", buf.Index), nil))
			continue
		}
		pending[buf.Index] = buf
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			err := s.consumer.SubmitFrame(ready)
			ready.Release()
			if err != nil {
				submitFailed = true
				fail(services.Wrap(services.ErrEncoding, "scheduler", "submit",
					fmt.Sprintf("frame %d", next), err))
				break
			}
			if s.delivered != nil {
				s.delivered(next)
			}
			next++
		}
	}

	for _, buf := range pending {
		buf.Release()
	}

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrCancelled, "scheduler", "run", "job cancelled", err)
	}
	if next != total {
		return services.Wrap(services.ErrValidation, "scheduler", "run",
			fmt.Sprintf("delivered %d of %d frames", next, total), nil)
	}
	return nil
}

// renderInto renders one frame into an already-acquired buffer under a
// deadline, retrying a bounded number of times so a single slow frame cannot
// stall the job indefinitely. The buffer is reused across attempts; the
// caller releases it on error.
func (s *Scheduler) renderInto(ctx context.Context, index int64, buf *FrameBuffer, render RenderFunc) error {
	attempts := s.cfg.FrameRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrCancelled, "scheduler", "render", "job cancelled", ctx.Err())
		}

		frameCtx, cancel := context.WithTimeout(ctx, s.cfg.FrameTimeout)
		err := render(frameCtx, index, buf)
		cancel()
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return services.Wrap(services.ErrCancelled, "scheduler", "render", "job cancelled", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			lastErr = services.Wrap(services.ErrFrameTimeout, "scheduler", "render",
				fmt.Sprintf("frame %d attempt %d", index, attempt), err)
			s.logger.Warn("frame render timed out",
				logging.Int64(logging.FieldFrameIndex, index),
				logging.Int("attempt", attempt))
			continue
		}
		return err
	}
	return lastErr
}

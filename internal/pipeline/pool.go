package pipeline

import (
	"context"
	"image"

	"cadence/internal/services"
)

// FrameBuffer is a reusable pixel buffer checked out from a pool. Img is
// canvas-sized; Crop is the final-frame region the encoder consumes. Exactly
// one owner holds a buffer at any time.
type FrameBuffer struct {
	Index int64
	Img   *image.RGBA
	Crop  image.Rectangle

	pool *BufferPool
}

// Cropped returns the final-frame view of the buffer. The returned image
// shares pixels with Img; it is valid until the buffer is released.
func (b *FrameBuffer) Cropped() *image.RGBA {
	return b.Img.SubImage(b.Crop).(*image.RGBA)
}

// Release returns the buffer to its pool. The caller must not touch the
// buffer afterwards.
func (b *FrameBuffer) Release() {
	if b == nil || b.pool == nil {
		return
	}
	pool := b.pool
	b.pool = nil
	pool.put(b.Img)
}

// BufferPool maintains a bounded set of reusable canvas-sized buffers.
type BufferPool struct {
	buffers chan *image.RGBA
	size    int
}

// NewBufferPool allocates size buffers of width x height pixels up front.
func NewBufferPool(size, width, height int) *BufferPool {
	if size < 1 {
		size = 1
	}
	pool := &BufferPool{
		buffers: make(chan *image.RGBA, size),
		size:    size,
	}
	for i := 0; i < size; i++ {
		pool.buffers <- image.NewRGBA(image.Rect(0, 0, width, height))
	}
	return pool
}

// Size returns the fixed pool capacity.
func (p *BufferPool) Size() int { return p.size }

// Available returns how many buffers are currently idle.
func (p *BufferPool) Available() int { return len(p.buffers) }

// Acquire blocks until a buffer is free or the context is cancelled. The
// buffer contents are whatever the previous frame left behind; renderers are
// expected to overwrite every pixel.
func (p *BufferPool) Acquire(ctx context.Context) (*FrameBuffer, error) {
	select {
	case img := <-p.buffers:
		return &FrameBuffer{Img: img, pool: p}, nil
	case <-ctx.Done():
		return nil, services.Wrap(services.ErrCancelled, "pipeline", "acquire", "buffer wait interrupted", ctx.Err())
	}
}

func (p *BufferPool) put(img *image.RGBA) {
	select {
	case p.buffers <- img:
	default:
		// Double release; drop the buffer rather than grow the pool.
	}
}

package paint

import (
	"errors"
	"log/slog"

	"github.com/e7canasta/scanview/modules/framebuffer"
	"github.com/e7canasta/scanview/modules/scanline"
)

// BatchResult counts what happened to one composited batch.
type BatchResult struct {
	Written    int
	OutOfRange int
	Malformed  int
}

// CompositorStats accumulates BatchResults since the last Reset.
type CompositorStats struct {
	Written    uint64
	OutOfRange uint64
	Malformed  uint64
}

// Compositor writes batches of scanlines into a frame buffer.
//
// Rows are independent, so order across rows does not matter. Duplicate
// rows are not merged: within and across batches the most recently applied
// write for a row wins.
type Compositor struct {
	fb     *framebuffer.Buffer
	logger *slog.Logger
	stats  CompositorStats
}

// NewCompositor returns a compositor writing into fb.
// A nil logger uses slog.Default().
func NewCompositor(fb *framebuffer.Buffer, logger *slog.Logger) *Compositor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compositor{fb: fb, logger: logger}
}

// Buffer returns the frame buffer the compositor writes into.
func (c *Compositor) Buffer() *framebuffer.Buffer {
	return c.fb
}

// CompositeBatch writes each scanline in order. A rejected scanline is
// counted and logged, then skipped; it never aborts the batch.
func (c *Compositor) CompositeBatch(batch []scanline.Scanline) BatchResult {
	var res BatchResult

	for _, s := range batch {
		err := c.fb.WriteScanline(s)
		switch {
		case err == nil:
			res.Written++
		case errors.Is(err, framebuffer.ErrRowOutOfRange):
			res.OutOfRange++
			c.logger.Warn("paint: scanline dropped",
				"kind", "row_out_of_range",
				"row", s.Row,
				"height", c.fb.Height(),
			)
		default:
			res.Malformed++
			c.logger.Warn("paint: scanline dropped",
				"kind", "malformed_scanline",
				"row", s.Row,
				"error", err,
			)
		}
	}

	c.stats.Written += uint64(res.Written)
	c.stats.OutOfRange += uint64(res.OutOfRange)
	c.stats.Malformed += uint64(res.Malformed)
	return res
}

// Stats returns the accumulated counters.
func (c *Compositor) Stats() CompositorStats {
	return c.stats
}

// Reset clears the counters (new job).
func (c *Compositor) Reset() {
	c.stats = CompositorStats{}
}

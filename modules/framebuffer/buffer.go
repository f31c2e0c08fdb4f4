// Package framebuffer owns the raster surface a progressive render is
// composited into.
//
// Pixels are 8-bit RGBA, row-major, at offset (row*width+col)*4. Scanlines
// carry RGB only; alpha is forced to 255 whenever a pixel is written, so a
// pixel never shows a stale alpha once new data lands in it.
//
// A Buffer is mutated by a single compositor and is not safe for
// concurrent use.
package framebuffer

import (
	"errors"
	"fmt"
	"image"

	"github.com/e7canasta/scanview/modules/scanline"
)

// MaxPixels caps width*height of a raster (256 MiB of RGBA).
const MaxPixels = 1 << 26

// ErrRowOutOfRange is returned when a scanline targets a row outside
// [0, height). The write is skipped; the image is untouched.
var ErrRowOutOfRange = errors.New("row out of range")

// Buffer is the full-image raster state of one render job.
type Buffer struct {
	width  int
	height int
	pix    []uint8 // RGBA, 4 bytes per pixel

	written     []bool // rows that received at least one valid write
	rowsWritten int
}

// New returns a zero-filled buffer of the given dimensions.
func New(width, height int) *Buffer {
	b := &Buffer{}
	b.Allocate(width, height)
	return b
}

// Allocate replaces the raster with a zero-filled one of the given size.
// Non-positive dimensions, or more than MaxPixels pixels, produce an empty
// 0x0 raster on which every write is out of range.
func (b *Buffer) Allocate(width, height int) {
	if width <= 0 || height <= 0 || width > MaxPixels/height {
		width, height = 0, 0
	}
	b.width = width
	b.height = height
	b.pix = make([]uint8, width*height*4)
	b.written = make([]bool, height)
	b.rowsWritten = 0
}

// Width returns the raster width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the raster height in pixels.
func (b *Buffer) Height() int { return b.height }

// RowsWritten returns how many distinct rows received a valid write since
// the last Allocate.
func (b *Buffer) RowsWritten() int { return b.rowsWritten }

// WriteScanline writes one row.
//
// Returns an error wrapping ErrRowOutOfRange when s.Row is outside
// [0, height), or wrapping scanline.ErrMalformedScanline when the sample
// count is not width*3. In both cases the raster is left untouched.
// Repeated writes to the same row overwrite: the last write wins.
func (b *Buffer) WriteScanline(s scanline.Scanline) error {
	if s.Row < 0 || s.Row >= b.height {
		return fmt.Errorf("%w: row %d, height %d", ErrRowOutOfRange, s.Row, b.height)
	}
	if len(s.Pixels) != b.width*3 {
		return fmt.Errorf("%w: row %d has %d samples, want %d",
			scanline.ErrMalformedScanline, s.Row, len(s.Pixels), b.width*3)
	}

	dst := b.pix[s.Row*b.width*4 : (s.Row+1)*b.width*4]
	for col := 0; col < b.width; col++ {
		i := col * 4
		j := col * 3
		dst[i+0] = s.Pixels[j+0]
		dst[i+1] = s.Pixels[j+1]
		dst[i+2] = s.Pixels[j+2]
		dst[i+3] = 255
	}

	if !b.written[s.Row] {
		b.written[s.Row] = true
		b.rowsWritten++
	}
	return nil
}

// Snapshot returns a read-only view of the current raster.
//
// The view shares memory with the buffer (no copy). Presenters MUST NOT
// modify it and MUST copy it (see Clone) if they keep it past the call that
// handed it to them; the next composite overwrites it in place.
func (b *Buffer) Snapshot() *image.RGBA {
	return &image.RGBA{
		Pix:    b.pix,
		Stride: b.width * 4,
		Rect:   image.Rect(0, 0, b.width, b.height),
	}
}

// Clone returns a deep copy of the current raster.
func (b *Buffer) Clone() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.width, b.height))
	copy(img.Pix, b.pix)
	return img
}

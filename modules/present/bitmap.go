package present

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"golang.org/x/image/draw"
)

var (
	// ErrInvalidSize is returned for non-positive surface dimensions.
	ErrInvalidSize = errors.New("present: invalid surface size")

	// ErrUnknownScaler is returned by ParseScaler for an unsupported name.
	ErrUnknownScaler = errors.New("present: unknown scaler")
)

// ParseScaler maps a config name to an interpolator.
// Accepted: nearest, approx-bilinear, bilinear, catmull-rom.
func ParseScaler(name string) (draw.Scaler, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "nearest":
		return draw.NearestNeighbor, nil
	case "approx-bilinear":
		return draw.ApproxBiLinear, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "catmull-rom":
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScaler, name)
	}
}

// Bitmap is a fixed-size surface. Each frame is scaled to fill it.
// Safe for concurrent use: Present runs on the paint goroutine while Image
// may be called from anywhere.
type Bitmap struct {
	mu     sync.Mutex
	dst    *image.RGBA
	scaler draw.Scaler
	frames uint64
}

// NewBitmap returns a width x height surface. A nil scaler uses nearest neighbor.
func NewBitmap(width, height int, scaler draw.Scaler) (*Bitmap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if scaler == nil {
		scaler = draw.NearestNeighbor
	}
	return &Bitmap{
		dst:    image.NewRGBA(image.Rect(0, 0, width, height)),
		scaler: scaler,
	}, nil
}

// Present scales img over the whole surface. An empty frame clears it.
func (b *Bitmap) Present(img *image.RGBA) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if img == nil || img.Bounds().Empty() {
		clear(b.dst.Pix)
	} else {
		b.scaler.Scale(b.dst, b.dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	}
	b.frames++
	return nil
}

// Image returns a copy of the surface.
func (b *Bitmap) Image() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := image.NewRGBA(b.dst.Rect)
	copy(cp.Pix, b.dst.Pix)
	return cp
}

// Frames returns the number of frames presented.
func (b *Bitmap) Frames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

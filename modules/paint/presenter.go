// Package paint turns queued scanlines into presented frames at a fixed
// cadence.
//
// Pipeline per paint tick:
//
//	ingest.Queue ──TakeBatch(n)──▶ Compositor ──WriteScanline──▶ framebuffer.Buffer
//	                                                                   │
//	                                                 Snapshot ◀────────┘
//	                                                    │
//	                                                 Presenter
//
// The Scheduler bounds each tick's work to one batch, so a burst of arrivals
// never stalls presentation, and a slow producer still gets steady ticks
// that present without compositing anything.
package paint

import "image"

// Presenter is the presentation boundary: an external surface that shows
// the current raster.
//
// img is a zero-copy view of the frame buffer and is only valid for the
// duration of the call. Implementations MUST NOT modify it and MUST copy
// whatever they keep.
type Presenter interface {
	Present(img *image.RGBA) error
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(img *image.RGBA) error

// Present calls f(img).
func (f PresenterFunc) Present(img *image.RGBA) error {
	return f(img)
}

// nopPresenter discards frames; used when no surface is attached.
type nopPresenter struct{}

func (nopPresenter) Present(*image.RGBA) error { return nil }

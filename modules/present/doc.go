// Package present implements paint.Presenter surfaces.
//
//   - Bitmap scales every frame into a fixed-size raster (golang.org/x/image/draw)
//     that other goroutines can copy out.
//   - Terminal draws frames as truecolor half-block cells (github.com/muesli/termenv).
//   - Multi fans one frame out to several surfaces.
//
// Presenters receive the frame buffer's live raster. They read it during
// Present and never retain it.
package present

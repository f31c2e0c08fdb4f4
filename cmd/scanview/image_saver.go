package main

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/e7canasta/scanview/modules/framebuffer"
)

// ImageSaver writes settled images to disk.
//
// With indexed naming, job n of a run is saved as <base>_<n><ext>.
// A bitmap preview, when given, is saved next to it as <base>_preview<ext>.
type ImageSaver struct {
	path        string
	format      framebuffer.Format
	jpegQuality int
	indexed     bool

	saved  atomic.Uint64
	failed atomic.Uint64
}

// NewImageSaver creates a saver for path. An empty format is inferred from
// the path extension.
func NewImageSaver(path, format string, jpegQuality int, indexed bool) (*ImageSaver, error) {
	var (
		f   framebuffer.Format
		err error
	)
	if format != "" {
		f, err = framebuffer.ParseFormat(format)
	} else {
		f, err = framebuffer.FormatFromPath(path)
	}
	if err != nil {
		return nil, err
	}

	return &ImageSaver{
		path:        path,
		format:      f,
		jpegQuality: jpegQuality,
		indexed:     indexed,
	}, nil
}

// Format returns the output encoding.
func (s *ImageSaver) Format() framebuffer.Format {
	return s.format
}

// Save writes the image of job n and an optional preview.
func (s *ImageSaver) Save(n int, img, preview *image.RGBA) error {
	path := s.Path(n)
	if err := framebuffer.SaveFile(path, img, s.format, s.jpegQuality); err != nil {
		s.failed.Add(1)
		return err
	}
	s.saved.Add(1)

	if preview == nil {
		return nil
	}
	if err := framebuffer.SaveFile(withSuffix(path, "preview"), preview, s.format, s.jpegQuality); err != nil {
		s.failed.Add(1)
		return fmt.Errorf("preview: %w", err)
	}
	s.saved.Add(1)
	return nil
}

// Path returns the file path used for job n.
func (s *ImageSaver) Path(n int) string {
	if !s.indexed {
		return s.path
	}
	return withSuffix(s.path, fmt.Sprintf("%d", n))
}

// Stats returns saved and failed counts.
func (s *ImageSaver) Stats() (saved, failed uint64) {
	return s.saved.Load(), s.failed.Load()
}

func withSuffix(path, suffix string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + suffix + ext
}

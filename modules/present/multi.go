package present

import (
	"image"

	"github.com/e7canasta/scanview/modules/paint"
)

// Multi presents every frame to each surface in order.
type Multi []paint.Presenter

// NewMulti skips nil presenters.
func NewMulti(presenters ...paint.Presenter) Multi {
	m := make(Multi, 0, len(presenters))
	for _, p := range presenters {
		if p != nil {
			m = append(m, p)
		}
	}
	return m
}

// Present calls every surface and returns the first error.
func (m Multi) Present(img *image.RGBA) error {
	var first error
	for _, p := range m {
		if err := p.Present(img); err != nil && first == nil {
			first = err
		}
	}
	return first
}

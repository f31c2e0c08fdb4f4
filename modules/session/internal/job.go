package internal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/e7canasta/scanview/modules/framebuffer"
	"github.com/google/uuid"
)

// ErrInvalidJob is returned by NewJob for settings that cannot produce a raster.
var ErrInvalidJob = errors.New("session: invalid job")

// Job describes one render job. Dimensions are fixed for the job's lifetime.
type Job struct {
	ID          string
	Width       int
	Height      int
	Samples     int
	AspectRatio float64
	CreatedAt   time.Time
}

// NewJob derives the job's height as floor(width / aspect) and assigns an ID.
func NewJob(width, samples int, aspect float64) (Job, error) {
	if width <= 0 {
		return Job{}, fmt.Errorf("%w: width must be positive, got %d", ErrInvalidJob, width)
	}
	if samples <= 0 {
		return Job{}, fmt.Errorf("%w: samples must be positive, got %d", ErrInvalidJob, samples)
	}
	if !(aspect > 0) || math.IsInf(aspect, 0) {
		return Job{}, fmt.Errorf("%w: aspect ratio must be positive and finite, got %v", ErrInvalidJob, aspect)
	}

	rows := math.Floor(float64(width) / aspect)
	if rows < 1 {
		return Job{}, fmt.Errorf("%w: width %d with aspect %v yields no rows", ErrInvalidJob, width, aspect)
	}
	if rows*float64(width) > framebuffer.MaxPixels {
		return Job{}, fmt.Errorf("%w: width %d with aspect %v exceeds %d pixels",
			ErrInvalidJob, width, aspect, framebuffer.MaxPixels)
	}
	height := int(rows)

	return Job{
		ID:          uuid.NewString(),
		Width:       width,
		Height:      height,
		Samples:     samples,
		AspectRatio: aspect,
		CreatedAt:   time.Now(),
	}, nil
}

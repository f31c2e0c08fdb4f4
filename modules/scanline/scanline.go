package scanline

import (
	"bytes"
	"errors"
	"fmt"
	"math"
)

// EndSentinel is the text message that closes a job's row stream.
const EndSentinel = "end"

// ErrMalformedScanline is returned when a payload does not describe a row.
// Callers drop the message and keep the stream flowing.
var ErrMalformedScanline = errors.New("malformed scanline")

// Scanline is one decoded image row.
//
// Pixels holds RGB triplets (len(Pixels) is a multiple of 3). Ownership moves
// from the ingest queue to the compositor, which discards it after writing.
type Scanline struct {
	// Row is the 0-indexed target row. Never negative after Decode.
	Row int

	// Pixels are the R, G, B samples of the row, left to right.
	Pixels []uint8
}

// Width returns the number of pixels carried by the scanline.
func (s Scanline) Width() int {
	return len(s.Pixels) / 3
}

// Decode parses one textual payload into a Scanline.
//
// Equivalent to JSONCodec{}.Decode.
func Decode(payload []byte) (Scanline, error) {
	return JSONCodec{}.Decode(payload)
}

// IsEndSentinel reports whether payload is the end-of-stream marker.
// Surrounding whitespace is tolerated.
func IsEndSentinel(payload []byte) bool {
	return string(bytes.TrimSpace(payload)) == EndSentinel
}

// malformed wraps ErrMalformedScanline with a reason.
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedScanline, fmt.Sprintf(format, args...))
}

// build validates decoded wire fields and produces a Scanline.
func build(row *int64, samples []float64) (Scanline, error) {
	if row == nil {
		return Scanline{}, malformed("missing row")
	}
	if *row < 0 || *row > math.MaxInt32 {
		return Scanline{}, malformed("row %d out of representable range", *row)
	}
	if len(samples) == 0 {
		return Scanline{}, malformed("missing pixels")
	}
	if len(samples)%3 != 0 {
		return Scanline{}, malformed("pixels length %d is not a multiple of 3", len(samples))
	}

	pixels := make([]uint8, len(samples))
	for i, v := range samples {
		if v != math.Trunc(v) || v < 0 || v > 255 {
			return Scanline{}, malformed("sample %d has invalid value %v", i, v)
		}
		pixels[i] = uint8(v)
	}

	return Scanline{Row: int(*row), Pixels: pixels}, nil
}

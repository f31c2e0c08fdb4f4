package scanline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec converts between Scanline and one wire encoding.
type Codec interface {
	// Name identifies the encoding in logs ("json", "msgpack").
	Name() string

	// Decode parses one payload. Errors wrap ErrMalformedScanline.
	Decode(payload []byte) (Scanline, error)

	// Encode serializes s. Used by producers and tests.
	Encode(s Scanline) ([]byte, error)
}

// CodecFor returns the codec used for a frame type: msgpack for binary
// frames, JSON for text frames.
func CodecFor(binary bool) Codec {
	if binary {
		return MsgpackCodec{}
	}
	return JSONCodec{}
}

// jsonScanline is the textual wire shape. Samples decode as float64 so that
// fractional values can be reported instead of silently truncated.
type jsonScanline struct {
	Row    *int64    `json:"row"`
	Pixels []float64 `json:"pixels"`
}

// JSONCodec handles text frames.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Decode(payload []byte) (Scanline, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Scanline{}, malformed("payload is not an object")
	}

	var wire jsonScanline
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return Scanline{}, fmt.Errorf("%w: %v", ErrMalformedScanline, err)
	}
	return build(wire.Row, wire.Pixels)
}

func (JSONCodec) Encode(s Scanline) ([]byte, error) {
	return json.Marshal(struct {
		Row    int   `json:"row"`
		Pixels []int `json:"pixels"`
	}{Row: s.Row, Pixels: widen(s.Pixels)})
}

// msgpackScanline is the binary wire shape. Pixels are an array of
// integers, not a bin blob, to keep the two encodings field-compatible.
type msgpackScanline struct {
	Row    *int64    `msgpack:"row"`
	Pixels []float64 `msgpack:"pixels"`
}

// MsgpackCodec handles binary frames.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Decode(payload []byte) (Scanline, error) {
	if len(payload) == 0 {
		return Scanline{}, malformed("empty payload")
	}

	var wire msgpackScanline
	if err := msgpack.Unmarshal(payload, &wire); err != nil {
		return Scanline{}, fmt.Errorf("%w: %v", ErrMalformedScanline, err)
	}
	return build(wire.Row, wire.Pixels)
}

func (MsgpackCodec) Encode(s Scanline) ([]byte, error) {
	return msgpack.Marshal(struct {
		Row    int   `msgpack:"row"`
		Pixels []int `msgpack:"pixels"`
	}{Row: s.Row, Pixels: widen(s.Pixels)})
}

func widen(pixels []uint8) []int {
	out := make([]int, len(pixels))
	for i, v := range pixels {
		out[i] = int(v)
	}
	return out
}

// Package scanline decodes the inbound protocol units of a progressive render.
//
// A producer streams one message per finished image row:
//
//	{"row": 3, "pixels": [255, 0, 0, 0, 255, 0, ...]}
//
// followed by the textual sentinel "end" once the job has no more rows.
// Pixels are RGB triplets without alpha, so a valid row carries width*3
// samples in [0,255]. Rows may arrive in any order and may repeat.
//
// Decode never looks at the active job: whether a row fits the current
// image is decided when the row is composited (see modules/framebuffer).
//
// Text frames use JSONCodec. Binary frames use MsgpackCodec, which carries
// the same two fields. CodecFor picks one from the frame type.
package scanline

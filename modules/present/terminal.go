package present

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/muesli/termenv"
	"golang.org/x/image/draw"
)

// DefaultColumns is the terminal width budget when none is configured.
const DefaultColumns = 80

// upperHalf is drawn with the top pixel as foreground and the bottom pixel
// as background, so one cell shows two raster rows.
const upperHalf = "▀"

// Terminal draws frames into a terminal.
type Terminal struct {
	out     *termenv.Output
	columns int

	cells  *image.RGBA
	last   []byte
	lastW  int
	drawn  bool
	frames uint64
	skips  uint64
}

// NewTerminal renders to out, downsampling frames wider than columns.
// A non-positive columns uses DefaultColumns.
func NewTerminal(out *termenv.Output, columns int) *Terminal {
	if columns <= 0 {
		columns = DefaultColumns
	}
	return &Terminal{out: out, columns: columns}
}

// Present redraws the terminal from the top-left corner. A frame identical to
// the last one drawn is skipped.
func (t *Terminal) Present(img *image.RGBA) error {
	if img == nil || img.Bounds().Empty() {
		return nil
	}
	if t.drawn && t.lastW == img.Rect.Dx() && bytes.Equal(t.last, img.Pix) {
		t.skips++
		return nil
	}
	t.last = append(t.last[:0], img.Pix...)
	t.lastW = img.Rect.Dx()

	cells := t.downsample(img)

	var sb strings.Builder
	b := cells.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			top := cells.RGBAAt(x, y)
			style := t.out.String(upperHalf).Foreground(t.color(top))
			if y+1 < b.Max.Y {
				style = style.Background(t.color(cells.RGBAAt(x, y+1)))
			}
			sb.WriteString(style.String())
		}
		sb.WriteByte('\n')
	}

	if t.drawn {
		t.out.MoveCursor(1, 1)
	} else {
		t.out.ClearScreen()
		t.drawn = true
	}
	if _, err := fmt.Fprint(t.out, sb.String()); err != nil {
		return fmt.Errorf("present: terminal write: %w", err)
	}
	t.frames++
	return nil
}

// downsample fits img into the column budget, keeping the aspect ratio.
func (t *Terminal) downsample(img *image.RGBA) *image.RGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= t.columns {
		return img
	}
	cw := t.columns
	ch := h * cw / w
	if ch < 1 {
		ch = 1
	}
	if t.cells == nil || t.cells.Rect.Dx() != cw || t.cells.Rect.Dy() != ch {
		t.cells = image.NewRGBA(image.Rect(0, 0, cw, ch))
	}
	draw.ApproxBiLinear.Scale(t.cells, t.cells.Bounds(), img, img.Bounds(), draw.Src, nil)
	return t.cells
}

func (t *Terminal) color(c color.RGBA) termenv.Color {
	return t.out.FromColor(c)
}

// Frames returns how many frames were drawn and how many were skipped as
// identical.
func (t *Terminal) Frames() (drawn, skipped uint64) {
	return t.frames, t.skips
}

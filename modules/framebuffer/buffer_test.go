package framebuffer

import (
	"bytes"
	"errors"
	"image/color"
	"testing"

	"github.com/e7canasta/scanview/modules/scanline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(row, width int, r, g, b uint8) scanline.Scanline {
	pixels := make([]uint8, 0, width*3)
	for i := 0; i < width; i++ {
		pixels = append(pixels, r, g, b)
	}
	return scanline.Scanline{Row: row, Pixels: pixels}
}

func TestAllocateZeroFills(t *testing.T) {
	b := New(4, 2)
	assert.Equal(t, 4, b.Width())
	assert.Equal(t, 2, b.Height())
	assert.Len(t, b.Snapshot().Pix, 4*2*4)
	for _, v := range b.Snapshot().Pix {
		require.Zero(t, v)
	}

	require.NoError(t, b.WriteScanline(solid(0, 4, 9, 9, 9)))
	b.Allocate(3, 5)
	assert.Equal(t, 3, b.Width())
	assert.Equal(t, 5, b.Height())
	assert.Zero(t, b.RowsWritten())
	for _, v := range b.Snapshot().Pix {
		require.Zero(t, v)
	}
}

func TestAllocateNonPositive(t *testing.T) {
	b := New(0, 7)
	assert.Zero(t, b.Width())
	assert.Zero(t, b.Height())
	assert.ErrorIs(t, b.WriteScanline(solid(0, 0, 1, 1, 1)), ErrRowOutOfRange)
}

func TestAllocateOverCap(t *testing.T) {
	b := New(MaxPixels, 2)
	assert.Zero(t, b.Width())
	assert.Zero(t, b.Height())

	b = New(1<<40, 1<<40)
	assert.Zero(t, b.Width())
	assert.ErrorIs(t, b.WriteScanline(solid(0, 0, 1, 1, 1)), ErrRowOutOfRange)
}

func TestWriteScanlineForcesAlpha(t *testing.T) {
	b := New(4, 2)
	err := b.WriteScanline(scanline.Scanline{Row: 0, Pixels: []uint8{
		255, 0, 0, 0, 255, 0, 0, 0, 255, 255, 255, 255,
	}})
	require.NoError(t, err)
	require.NoError(t, b.WriteScanline(solid(1, 4, 0, 0, 0)))

	img := b.Snapshot()
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{0, 255, 0, 255}, img.RGBAAt(1, 0))
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(2, 0))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, img.RGBAAt(3, 0))
	for x := 0; x < 4; x++ {
		assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(x, 1))
	}
	assert.Equal(t, 2, b.RowsWritten())
}

func TestWriteScanlineLastWriteWins(t *testing.T) {
	b := New(6, 8)
	require.NoError(t, b.WriteScanline(solid(5, 6, 10, 10, 10)))
	require.NoError(t, b.WriteScanline(solid(5, 6, 200, 200, 200)))

	img := b.Snapshot()
	for x := 0; x < 6; x++ {
		assert.Equal(t, color.RGBA{200, 200, 200, 255}, img.RGBAAt(x, 5))
	}
	assert.Equal(t, 1, b.RowsWritten())
}

func TestWriteScanlineBoundsSafety(t *testing.T) {
	b := New(3, 2)
	before := b.Clone().Pix

	for _, r := range []int{2, -1, 1 << 20} {
		err := b.WriteScanline(solid(r, 3, 1, 2, 3))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrRowOutOfRange), "row %d: %v", r, err)
	}
	assert.Equal(t, before, b.Snapshot().Pix)

	// The buffer keeps working after a rejected row
	require.NoError(t, b.WriteScanline(solid(1, 3, 7, 7, 7)))
	assert.Equal(t, color.RGBA{7, 7, 7, 255}, b.Snapshot().RGBAAt(2, 1))
}

func TestWriteScanlineWidthMismatch(t *testing.T) {
	b := New(3, 2)
	before := b.Clone().Pix

	for _, width := range []int{2, 4} {
		err := b.WriteScanline(solid(0, width, 1, 2, 3))
		assert.ErrorIs(t, err, scanline.ErrMalformedScanline)
	}
	assert.Equal(t, before, b.Snapshot().Pix)
	assert.Zero(t, b.RowsWritten())
}

func TestWriteOrderIndependentAcrossRows(t *testing.T) {
	rows := []scanline.Scanline{
		solid(0, 2, 1, 2, 3),
		solid(1, 2, 4, 5, 6),
		solid(2, 2, 7, 8, 9),
	}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}

	var reference []uint8
	for _, perm := range perms {
		b := New(2, 3)
		for _, i := range perm {
			require.NoError(t, b.WriteScanline(rows[i]))
		}
		if reference == nil {
			reference = b.Clone().Pix
			continue
		}
		assert.Equal(t, reference, b.Snapshot().Pix, "permutation %v", perm)
	}
}

func TestSnapshotIsStableWithoutWrites(t *testing.T) {
	b := New(2, 2)
	require.NoError(t, b.WriteScanline(solid(1, 2, 50, 60, 70)))

	first := b.Snapshot()
	second := b.Snapshot()
	assert.True(t, bytes.Equal(first.Pix, second.Pix))
	assert.Equal(t, first.Rect, second.Rect)
}

func TestCloneIsIndependent(t *testing.T) {
	b := New(2, 1)
	clone := b.Clone()
	require.NoError(t, b.WriteScanline(solid(0, 2, 1, 1, 1)))
	assert.Equal(t, color.RGBA{}, clone.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{1, 1, 1, 255}, b.Snapshot().RGBAAt(0, 0))
}

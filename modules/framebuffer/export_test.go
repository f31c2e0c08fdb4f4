package framebuffer

import (
	"bytes"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/e7canasta/scanview/modules/scanline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePPM(t *testing.T) {
	b := New(2, 1)
	require.NoError(t, b.WriteScanline(scanline.Scanline{Row: 0, Pixels: []uint8{1, 2, 3, 4, 5, 6}}))

	var out bytes.Buffer
	require.NoError(t, Encode(&out, b.Snapshot(), FormatPPM, 0))
	assert.Equal(t, "P3\n2 1\n255\n1 2 3\n4 5 6\n", out.String())
}

func TestSaveFilePNG(t *testing.T) {
	b := New(3, 2)
	require.NoError(t, b.WriteScanline(solid(1, 3, 10, 20, 30)))

	path := filepath.Join(t.TempDir(), "nested", "frame.png")
	require.NoError(t, SaveFile(path, b.Clone(), FormatPNG, 0))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, b.Snapshot().Bounds(), img.Bounds())

	r, g, bl, a := img.At(2, 1).RGBA()
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8), uint8(a >> 8)})
}

func TestEncodeJPEG(t *testing.T) {
	b := New(8, 8)
	var out bytes.Buffer
	require.NoError(t, Encode(&out, b.Snapshot(), FormatJPEG, 500))
	assert.True(t, bytes.HasPrefix(out.Bytes(), []byte{0xFF, 0xD8}), "missing JPEG SOI marker")
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"png":  FormatPNG,
		".PNG": FormatPNG,
		"jpg":  FormatJPEG,
		"jpeg": FormatJPEG,
		"ppm":  FormatPPM,
	}
	for name, want := range cases {
		got, err := ParseFormat(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseFormat("gif")
	assert.Error(t, err)

	f, err := FormatFromPath("/tmp/out/render.ppm")
	require.NoError(t, err)
	assert.Equal(t, "ppm", f.String())
}

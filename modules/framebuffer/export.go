package framebuffer

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format selects an export encoding.
type Format int

const (
	// FormatPNG is lossless PNG.
	FormatPNG Format = iota
	// FormatJPEG is JPEG at a configurable quality (alpha dropped).
	FormatJPEG
	// FormatPPM is plain-text PPM (P3), one "r g b" line per pixel.
	FormatPPM
)

// String returns the canonical name of the format.
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatPPM:
		return "ppm"
	default:
		return "unknown"
	}
}

// ParseFormat maps a name ("png", "jpeg"/"jpg", "ppm") to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "png":
		return FormatPNG, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "ppm":
		return FormatPPM, nil
	default:
		return 0, fmt.Errorf("framebuffer: unsupported format %q (must be png, jpeg or ppm)", name)
	}
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Encode writes img to w in the given format. quality applies to JPEG only
// (1-100); values outside the range use jpeg.DefaultQuality.
func Encode(w io.Writer, img *image.RGBA, format Format, quality int) error {
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPEG:
		if quality < 1 || quality > 100 {
			quality = jpeg.DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatPPM:
		return encodePPM(w, img)
	default:
		return fmt.Errorf("framebuffer: unsupported format %v", format)
	}
}

// SaveFile encodes img into a new file at path.
func SaveFile(path string, img *image.RGBA, format Format, quality int) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("framebuffer: failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return fmt.Errorf("framebuffer: failed to create file: %w", err)
	}

	if err := Encode(f, img, format, quality); err != nil {
		_ = f.Close()
		return fmt.Errorf("framebuffer: %s encoding failed: %w", format, err)
	}
	return f.Close()
}

func encodePPM(w io.Writer, img *image.RGBA) error {
	bounds := img.Bounds()
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "P3\n%d %d\n255\n", bounds.Dx(), bounds.Dy()); err != nil {
		return err
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := img.PixOffset(x, y)
			if _, err := fmt.Fprintf(bw, "%d %d %d\n", img.Pix[i], img.Pix[i+1], img.Pix[i+2]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

package mandel

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// GrayImage wraps pix as an 8-bit grayscale image without copying.
func GrayImage(pix []byte, g Geometry) *image.Gray {
	return &image.Gray{
		Pix:    pix,
		Stride: g.Width,
		Rect:   image.Rect(0, 0, g.Width, g.Height),
	}
}

// FormatFromPath returns the image format implied by the file extension of path.
func FormatFromPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return "png", nil
	case ".bmp":
		return "bmp", nil
	case ".tif", ".tiff":
		return "tiff", nil
	default:
		return "", fmt.Errorf("unsupported image extension %q", ext)
	}
}

// EncodeImage encodes pix as a grayscale image in the given format ("png", "bmp" or "tiff").
func EncodeImage(w io.Writer, format string, pix []byte, g Geometry) error {
	if len(pix) != g.Pixels() {
		return fmt.Errorf("pixel buffer holds %d bytes, want %d (%dx%d)", len(pix), g.Pixels(), g.Width, g.Height)
	}
	img := GrayImage(pix, g)
	switch format {
	case "png":
		return png.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}

// WriteImage saves pix to path, choosing the encoder from the file extension.
func WriteImage(path string, pix []byte, g Geometry) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("write image %q: %w", path, err)
		}
	}()

	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return EncodeImage(f, format, pix, g)
}

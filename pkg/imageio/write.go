package imageio

import (
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// Format is an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatBMP  Format = "bmp"
)

// jpegQuality is used for JPEG outputs.
const jpegQuality = 95

// FormatFromPath picks the output format from a file extension.
// Unknown extensions fall back to PNG.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".bmp":
		return FormatBMP
	default:
		return FormatPNG
	}
}

// Write encodes t to w in the given format.
func Write(w io.Writer, t *tensor.Tensor, format Format) error {
	img, err := FromTensor(t)
	if err != nil {
		return err
	}
	switch format {
	case FormatPNG, "":
		err = png.Encode(w, img)
	case FormatJPEG:
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case FormatBMP:
		err = bmp.Encode(w, img)
	default:
		return errors.New(errors.ErrCodeUnsupported, "unsupported output format: %q", format)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", format, err)
	}
	return nil
}

// Save writes t to path, creating the parent directory if needed.
func Save(t *tensor.Tensor, path string) error {
	if err := errors.ValidatePath(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, t, FormatFromPath(path)); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Package imageio loads and saves images as tensors.
//
// Images become 3×H×W tensors with values in [0, 1]. PNG, JPEG, GIF, BMP
// and WebP inputs are recognized by content; outputs are written as PNG,
// JPEG or BMP depending on the file extension.
//
// # Loading
//
//	t, err := imageio.Load("cat.jpg", imageio.Options{FineSize: 512})
//
// FineSize scales the longer side to the given size (keeping the aspect
// ratio); Gray replaces the colors with their luminance in all three
// channels.
//
// # Saving
//
//	err := imageio.Save(t, imageio.OutputPath("cat.jpg", imageio.PathOptions{Dir: "out", Ext: "png"}))
package imageio

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/matzehuels/stylewct/pkg/blend"
	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// Options controls how images are loaded.
type Options struct {
	// FineSize scales the longer side to FineSize pixels. Zero keeps the
	// original size.
	FineSize int `toml:"fine_size" json:"fine_size,omitempty"`

	// Gray loads the luminance only, replicated into three channels.
	Gray bool `toml:"gray" json:"gray,omitempty"`

	// MaxPixels rejects images whose header declares more pixels. Zero
	// means DefaultMaxPixels.
	MaxPixels int `toml:"max_pixels" json:"max_pixels,omitempty"`
}

// DefaultMaxPixels is the decode limit when Options.MaxPixels is zero.
const DefaultMaxPixels = 40_000_000

func (o Options) maxPixels() int {
	if o.MaxPixels > 0 {
		return o.MaxPixels
	}
	return DefaultMaxPixels
}

// Read decodes an image from r and converts it to a tensor.
func Read(r io.Reader, opts Options) (*tensor.Tensor, error) {
	img, err := decode(r, opts.maxPixels())
	if err != nil {
		return nil, err
	}
	return ToTensor(Resize(img, opts.FineSize), opts.Gray), nil
}

// Load reads the image file at path. See [Read].
func Load(path string, opts Options) (*tensor.Tensor, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := Read(f, opts)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "load %s", path)
	}
	return t, nil
}

// ReadSaliency decodes a saliency map; its luminance is the saliency.
// Maps are subject to DefaultMaxPixels.
func ReadSaliency(r io.Reader) (*blend.Saliency, error) {
	img, err := decode(r, DefaultMaxPixels)
	if err != nil {
		return nil, err
	}
	return blend.SaliencyFromImage(img), nil
}

// LoadSaliency reads a saliency map file. See [ReadSaliency].
func LoadSaliency(path string) (*blend.Saliency, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	s, err := ReadSaliency(f)
	if err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "load saliency %s", path)
	}
	return s, nil
}

// Resize scales img so that its longer side equals size. Smaller images are
// enlarged. A size of zero, or an image already at size, is returned as is.
func Resize(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if size <= 0 || max(w, h) == size {
		return img
	}
	var nw, nh int
	if w > h {
		nw, nh = size, max(1, h*size/w)
	} else {
		nw, nh = max(1, w*size/h), size
	}
	dst := image.NewNRGBA64(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// decode reads the header first and refuses images above maxPixels before
// any pixel buffer is allocated. The header bytes are replayed for the full
// decode.
func decode(r io.Reader, maxPixels int) (image.Image, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode image")
	}
	if n := int64(cfg.Width) * int64(cfg.Height); n > int64(maxPixels) {
		return nil, errors.New(errors.ErrCodeInvalidInput,
			"image is %dx%d (%d pixels), limit is %d", cfg.Width, cfg.Height, n, maxPixels)
	}
	img, _, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode image")
	}
	return img, nil
}

func open(path string) (*os.File, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "image not found: %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "open %s", path)
	}
	return f, nil
}

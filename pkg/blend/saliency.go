package blend

import (
	"encoding/binary"
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/matzehuels/stylewct/pkg/errors"
)

// SaliencyPeak is the per-pixel weight the most salient pixel maps to.
const SaliencyPeak = 0.2

// Saliency is a single-channel importance map with values in [0, 1].
// It is read-only after construction and safe for concurrent use.
type Saliency struct {
	img *image.Gray16
}

// NewSaliency builds a map from h×w row-major values. Values outside [0, 1]
// are clamped.
func NewSaliency(vals []float32, h, w int) (*Saliency, error) {
	if h <= 0 || w <= 0 || len(vals) != h*w {
		return nil, errors.New(errors.ErrCodeInvalidShape,
			"saliency map of %d values does not match %d×%d", len(vals), h, w)
	}
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			v := min(max(vals[y*w+x], 0), 1)
			img.SetGray16(x, y, color.Gray16{Y: uint16(v*0xffff + 0.5)})
		}
	}
	return &Saliency{img: img}, nil
}

// SaliencyFromImage converts any image to a saliency map using its luminance.
func SaliencyFromImage(src image.Image) *Saliency {
	b := src.Bounds()
	img := image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(img, img.Bounds(), src, b.Min, xdraw.Src)
	return &Saliency{img: img}
}

// Size returns the map dimensions as (rows, cols).
func (s *Saliency) Size() (h, w int) {
	b := s.img.Bounds()
	return b.Dy(), b.Dx()
}

// Resize returns the map resampled to h×w with bilinear interpolation.
func (s *Saliency) Resize(h, w int) []float32 {
	dst := s.img
	if sh, sw := s.Size(); sh != h || sw != w {
		dst = image.NewGray16(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(dst, dst.Bounds(), s.img, s.img.Bounds(), xdraw.Src, nil)
	}
	out := make([]float32, h*w)
	for y := range h {
		for x := range w {
			out[y*w+x] = float32(dst.Gray16At(x, y).Y) / 0xffff
		}
	}
	return out
}

// Weights returns the map resized to h×w and scaled so that its maximum
// equals SaliencyPeak. An all-zero map yields all-zero weights.
func (s *Saliency) Weights(h, w int) []float32 {
	vals := s.Resize(h, w)
	var peak float32
	for _, v := range vals {
		peak = max(peak, v)
	}
	if peak == 0 {
		return vals
	}
	scale := float32(SaliencyPeak) / peak
	for i := range vals {
		vals[i] *= scale
	}
	return vals
}

// MarshalBinary encodes the map as its dimensions followed by big-endian
// 16-bit samples. It is used to derive cache keys.
func (s *Saliency) MarshalBinary() ([]byte, error) {
	h, w := s.Size()
	out := make([]byte, 0, 8+2*h*w)
	out = binary.BigEndian.AppendUint32(out, uint32(h))
	out = binary.BigEndian.AppendUint32(out, uint32(w))
	for y := range h {
		row := s.img.Pix[y*s.img.Stride : y*s.img.Stride+2*w]
		out = append(out, row...)
	}
	return out, nil
}

package imageio

import (
	"image"
	"image/color"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// ToTensor converts img to a 3×H×W tensor in [0, 1]. With gray set, all
// three channels hold the luminance.
func ToTensor(img image.Image, gray bool) *tensor.Tensor {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	t := tensor.New(3, h, w)
	r, g, bl := t.Channel(0), t.Channel(1), t.Channel(2)
	for y := range h {
		for x := range w {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			i := y*w + x
			if gray {
				v := float32(color.Gray16Model.Convert(c).(color.Gray16).Y) / 0xffff
				r[i], g[i], bl[i] = v, v, v
				continue
			}
			cr, cg, cb, _ := c.RGBA()
			r[i] = float32(cr) / 0xffff
			g[i] = float32(cg) / 0xffff
			bl[i] = float32(cb) / 0xffff
		}
	}
	return t
}

// FromTensor converts a 1- or 3-channel tensor to an image. Values are
// clamped to [0, 1].
func FromTensor(t *tensor.Tensor) (image.Image, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, t.W, t.H)
	switch t.C {
	case 1:
		img := image.NewGray16(rect)
		src := t.Channel(0)
		for y := range t.H {
			for x := range t.W {
				img.SetGray16(x, y, color.Gray16{Y: quantize(src[y*t.W+x])})
			}
		}
		return img, nil
	case 3:
		img := image.NewNRGBA64(rect)
		r, g, b := t.Channel(0), t.Channel(1), t.Channel(2)
		for y := range t.H {
			for x := range t.W {
				i := y*t.W + x
				img.SetNRGBA64(x, y, color.NRGBA64{
					R: quantize(r[i]), G: quantize(g[i]), B: quantize(b[i]), A: 0xffff,
				})
			}
		}
		return img, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidShape, "cannot convert %d channels to an image", t.C)
	}
}

func quantize(v float32) uint16 {
	return uint16(min(max(v, 0), 1)*0xffff + 0.5)
}

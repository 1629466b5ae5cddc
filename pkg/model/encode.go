package model

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/pipeline"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// Extract implements pipeline.FeatureExtractor.
func (p *Pyramid) Extract(ctx context.Context, img *tensor.Tensor, level pipeline.Level) (*tensor.Tensor, error) {
	f, err := factor(level)
	if err != nil {
		return nil, err
	}
	if err := p.checkImage(img, f); err != nil {
		return nil, err
	}
	return p.lift(avgPool(img, f)), nil
}

// ExtractLevels implements pipeline.LevelsExtractor. The image is pooled
// once per octave and every level reuses the shared pyramid.
func (p *Pyramid) ExtractLevels(ctx context.Context, img *tensor.Tensor, levels []pipeline.Level) ([]*tensor.Tensor, error) {
	align, err := Alignment(levels)
	if err != nil {
		return nil, err
	}
	if err := p.checkImage(img, align); err != nil {
		return nil, err
	}

	octaves := map[int]*tensor.Tensor{1: img}
	cur := img
	for f := 2; f <= align; f *= 2 {
		cur = avgPool(cur, 2)
		octaves[f] = cur
	}

	out := make([]*tensor.Tensor, len(levels))
	for i, l := range levels {
		f, _ := factor(l)
		out[i] = p.lift(octaves[f])
	}
	return out, nil
}

func (p *Pyramid) checkImage(img *tensor.Tensor, align int) error {
	if err := img.Validate(); err != nil {
		return err
	}
	if img.C != p.cfg.ImageChannels {
		return errors.New(errors.ErrCodeChannelMismatch,
			"model expects %d image channels, got %d", p.cfg.ImageChannels, img.C)
	}
	if img.H%align != 0 || img.W%align != 0 {
		return errors.New(errors.ErrCodeInvalidShape,
			"image %dx%d is not divisible by %d; align it first", img.H, img.W, align)
	}
	return nil
}

// lift applies the 1×1 convolution: every pixel vector x becomes kernel·x.
func (p *Pyramid) lift(img *tensor.Tensor) *tensor.Tensor {
	n := img.Spatial()
	x := mat.NewDense(img.C, n, toFloat64(img.Data))
	var y mat.Dense
	y.Mul(p.kernel, x)

	out := tensor.New(p.cfg.Channels, img.H, img.W)
	for c := range p.cfg.Channels {
		dst := out.Channel(c)
		for i, v := range y.RawRowView(c) {
			dst[i] = float32(v)
		}
	}
	return out
}

// avgPool averages non-overlapping f×f windows. Sides must be divisible by f.
func avgPool(img *tensor.Tensor, f int) *tensor.Tensor {
	if f == 1 {
		return img
	}
	oh, ow := img.H/f, img.W/f
	out := tensor.New(img.C, oh, ow)
	inv := 1 / float32(f*f)
	for c := range img.C {
		src, dst := img.Channel(c), out.Channel(c)
		for oy := range oh {
			for ox := range ow {
				var sum float32
				for ky := range f {
					row := src[(oy*f+ky)*img.W+ox*f:]
					for kx := range f {
						sum += row[kx]
					}
				}
				dst[oy*ow+ox] = sum * inv
			}
		}
	}
	return out
}

// Align center-crops img so that both sides are divisible by the largest
// pooling factor among levels.
func Align(img *tensor.Tensor, levels []pipeline.Level) (*tensor.Tensor, error) {
	align, err := Alignment(levels)
	if err != nil {
		return nil, err
	}
	h, w := img.H/align*align, img.W/align*align
	if h == 0 || w == 0 {
		return nil, errors.New(errors.ErrCodeInvalidShape,
			"image %dx%d is smaller than the %dx%d pooling window", img.H, img.W, align, align)
	}
	if h == img.H && w == img.W {
		return img, nil
	}
	y0, x0 := (img.H-h)/2, (img.W-w)/2
	out := tensor.New(img.C, h, w)
	for c := range img.C {
		src, dst := img.Channel(c), out.Channel(c)
		for y := range h {
			copy(dst[y*w:(y+1)*w], src[(y0+y)*img.W+x0:])
		}
	}
	return out, nil
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

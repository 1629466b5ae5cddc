package model

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/pipeline"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// Synthesize implements pipeline.FeatureSynthesizer.
func (p *Pyramid) Synthesize(ctx context.Context, level pipeline.Level, features *tensor.Tensor) (*tensor.Tensor, error) {
	f, err := factor(level)
	if err != nil {
		return nil, err
	}
	if err := features.Validate(); err != nil {
		return nil, err
	}
	if features.C != p.cfg.Channels {
		return nil, errors.New(errors.ErrCodeChannelMismatch,
			"decoder at %s expects %d channels, got %d", level, p.cfg.Channels, features.C)
	}

	n := features.Spatial()
	y := mat.NewDense(features.C, n, toFloat64(features.Data))
	var x mat.Dense
	x.Mul(p.kernel.T(), y)

	small := tensor.New(p.cfg.ImageChannels, features.H, features.W)
	for c := range p.cfg.ImageChannels {
		dst := small.Channel(c)
		for i, v := range x.RawRowView(c) {
			dst[i] = float32(min(max(v, 0), 1))
		}
	}
	return upsample(small, f), nil
}

// upsample replicates every pixel into an f×f block.
func upsample(img *tensor.Tensor, f int) *tensor.Tensor {
	if f == 1 {
		return img
	}
	oh, ow := img.H*f, img.W*f
	out := tensor.New(img.C, oh, ow)
	for c := range img.C {
		src, dst := img.Channel(c), out.Channel(c)
		for y := range oh {
			row := src[(y/f)*img.W:]
			for x := range ow {
				dst[y*ow+x] = row[x/f]
			}
		}
	}
	return out
}

var (
	_ pipeline.LevelsExtractor    = (*Pyramid)(nil)
	_ pipeline.FeatureSynthesizer = (*Pyramid)(nil)
)

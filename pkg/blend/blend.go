// Package blend combines transformed feature candidates before decoding.
//
// For every element the blended feature is
//
//	g*(d*CsIlast + (1-d)*CsIorig) + (1-g)*eIorig
//
// where CsIlast is the transform of the running result's features, CsIorig
// the transform of the original content features and eIorig the untouched
// content features. The pair (g, d) comes from one of three modes:
//
//   - [ModeConstant]: (gamma, delta) everywhere.
//   - [ModeSaliency]: g = gamma - w, d = delta - w/2 with w a per-pixel weight
//     derived from a saliency map (salient regions are stylized less).
//   - [ModeSchedule]: g = gamma, d = (1 - f)*delta with f the schedule factor
//     of the current level.
//
// Exactly one mode applies to a blend.
package blend

import (
	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// Default weights, from Wynen et al. 2018, eq. (3).
const (
	DefaultGamma = 0.8
	DefaultDelta = 0.9
)

// Weights is the scalar (gamma, delta) pair supplied by the caller.
type Weights struct {
	Gamma float64 `json:"gamma" toml:"gamma"` // stylized vs. original content
	Delta float64 `json:"delta" toml:"delta"` // running result vs. original content transform
}

// DefaultWeights returns the default (gamma, delta) pair.
func DefaultWeights() Weights {
	return Weights{Gamma: DefaultGamma, Delta: DefaultDelta}
}

// Validate checks that both weights lie in [0, 1].
func (w Weights) Validate() error {
	if err := errors.ValidateWeight("gamma", w.Gamma); err != nil {
		return err
	}
	return errors.ValidateWeight("delta", w.Delta)
}

// Mode selects how (g, d) are derived from Weights.
type Mode string

const (
	ModeConstant Mode = "constant"
	ModeSaliency Mode = "saliency"
	ModeSchedule Mode = "schedule"
)

// Params fully describes one blend.
type Params struct {
	Weights  Weights
	Mode     Mode
	Saliency *Saliency // required by ModeSaliency
	Factor   float64   // schedule factor for ModeSchedule, in [0, 1]
}

// Validate checks that the parameters are consistent with the mode.
func (p Params) Validate() error {
	if err := p.Weights.Validate(); err != nil {
		return err
	}
	switch p.Mode {
	case ModeConstant, "":
	case ModeSaliency:
		if p.Saliency == nil {
			return errors.New(errors.ErrCodeInvalidConfig, "saliency mode requires a saliency map")
		}
	case ModeSchedule:
		if err := errors.ValidateWeight("schedule factor", p.Factor); err != nil {
			return err
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "invalid blend mode: %q", p.Mode)
	}
	return nil
}

// Blend mixes the two transformed candidates with the original content
// features. All three tensors must share one shape; the result is new.
func Blend(last, orig, content *tensor.Tensor, p Params) (*tensor.Tensor, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if last == nil || orig == nil || content == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "blend inputs cannot be nil")
	}
	if !last.SameShape(orig) || !last.SameShape(content) {
		return nil, errors.New(errors.ErrCodeInvalidShape,
			"blend inputs differ in shape: last %v, orig %v, content %v", last, orig, content)
	}

	var w []float32
	if p.Mode == ModeSaliency {
		w = p.Saliency.Weights(content.H, content.W)
	}

	g, d := p.Weights.Gamma, p.Weights.Delta
	if p.Mode == ModeSchedule {
		d = (1 - p.Factor) * p.Weights.Delta
	}

	out := tensor.New(content.C, content.H, content.W)
	n := content.Spatial()
	for c := range content.C {
		l, o, e, dst := last.Channel(c), orig.Channel(c), content.Channel(c), out.Channel(c)
		for i := range n {
			gi, di := g, d
			if w != nil {
				gi = g - float64(w[i])
				di = d - float64(w[i])/2
			}
			v := gi*(di*float64(l[i])+(1-di)*float64(o[i])) + (1-gi)*float64(e[i])
			dst[i] = float32(v)
		}
	}
	return out, nil
}

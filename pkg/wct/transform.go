package wct

import (
	"gonum.org/v1/gonum/mat"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// Transform returns content re-colored with the statistics of style.
//
// The result has the shape of content. Content and style must have the same
// channel count; their spatial sizes may differ. Transform keeps no state and
// is safe for concurrent use.
func Transform(content, style *tensor.Tensor, method Method) (*tensor.Tensor, error) {
	if err := content.Validate(); err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "content features")
	}
	if err := style.Validate(); err != nil {
		return nil, errors.Wrap(errors.GetCode(err), err, "style features")
	}
	if content.C != style.C {
		return nil, errors.New(errors.ErrCodeChannelMismatch,
			"content has %d channels, style has %d", content.C, style.C)
	}

	cs, centered := analyze(content)
	ss, _ := analyze(style)
	return match(content, centered, cs, ss, method)
}

// Whiten maps t to zero mean and identity covariance using its own
// statistics. Rank-deficient directions stay near zero.
func Whiten(t *tensor.Tensor, method Method) (*tensor.Tensor, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	s, centered := analyze(t)
	return match(t, centered, s, IdentityStats(t.C), method)
}

// Match re-colors content so that its statistics become target. It is the
// building block behind Transform for callers that hold precomputed target
// statistics (for example statistics pooled over several style images).
func Match(content *tensor.Tensor, target Stats, method Method) (*tensor.Tensor, error) {
	if err := content.Validate(); err != nil {
		return nil, err
	}
	cs, centered := analyze(content)
	return match(content, centered, cs, target, method)
}

func match(content *tensor.Tensor, centered *mat.Dense, cs, ss Stats, method Method) (*tensor.Tensor, error) {
	if err := checkCompatible(cs, ss); err != nil {
		return nil, err
	}
	m, err := LinearMap(method, cs.Cov, ss.Cov)
	if err != nil {
		return nil, err
	}

	var colored mat.Dense
	colored.Mul(m, centered)

	out := tensor.New(content.C, content.H, content.W)
	for ch := range content.C {
		mu := ss.Mean.AtVec(ch)
		dst := out.Channel(ch)
		for i, v := range colored.RawRowView(ch) {
			dst[i] = float32(v + mu)
		}
	}
	return out, nil
}

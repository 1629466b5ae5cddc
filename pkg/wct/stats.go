package wct

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

// Stats holds the second-order statistics of a feature tensor.
// They are recomputed for every call and never cached across levels.
type Stats struct {
	Mean *mat.VecDense // length C
	Cov  *mat.SymDense // C×C, symmetric positive semi-definite
	N    int           // number of samples (H·W)
}

// Channels returns the channel count the statistics describe.
func (s Stats) Channels() int { return s.Mean.Len() }

// ComputeStats returns the mean and covariance of t viewed as a C×N matrix.
func ComputeStats(t *tensor.Tensor) (Stats, error) {
	if err := t.Validate(); err != nil {
		return Stats{}, err
	}
	s, _ := analyze(t)
	return s, nil
}

// IdentityStats returns zero-mean, identity-covariance statistics for c
// channels: the target distribution of whitening.
func IdentityStats(c int) Stats {
	cov := mat.NewSymDense(c, nil)
	for i := range c {
		cov.SetSym(i, i, 1)
	}
	return Stats{Mean: mat.NewVecDense(c, nil), Cov: cov}
}

// analyze computes the statistics of t and also returns the centered C×N
// sample matrix, which the transform needs next. t must already be valid.
func analyze(t *tensor.Tensor) (Stats, *mat.Dense) {
	c, n := t.C, t.Spatial()
	x := mat.NewDense(c, n, nil)
	mean := mat.NewVecDense(c, nil)

	for ch := range c {
		row := x.RawRowView(ch)
		for i, v := range t.Channel(ch) {
			row[i] = float64(v)
		}
		mu := floats.Sum(row) / float64(n)
		floats.AddConst(-mu, row)
		mean.SetVec(ch, mu)
	}

	denom := float64(n - 1)
	if denom < 1 {
		denom = 1
	}
	cov := mat.NewSymDense(c, nil)
	cov.SymOuterK(1/denom, x)

	return Stats{Mean: mean, Cov: cov, N: n}, x
}

// checkCompatible verifies that content and style statistics can be matched.
func checkCompatible(content, style Stats) error {
	if content.Channels() != style.Channels() {
		return errors.New(errors.ErrCodeChannelMismatch,
			"content has %d channels, style has %d", content.Channels(), style.Channels())
	}
	if r, _ := style.Cov.Dims(); r != style.Channels() {
		return errors.New(errors.ErrCodeInvalidShape,
			"style covariance is %d×%d for %d channels", r, r, style.Channels())
	}
	return nil
}

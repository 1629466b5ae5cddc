package wct

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/matzehuels/stylewct/pkg/errors"
)

// Epsilon is the eigenvalue floor applied before any inverse square root.
// Feature statistics are frequently rank deficient when the spatial extent
// is small relative to the channel count.
const Epsilon = 1e-5

// spectralMap returns E·diag(f(λ))·Eᵀ for the eigendecomposition Σ = E·diag(λ)·Eᵀ.
func spectralMap(s mat.Symmetric, f func(float64) float64) (*mat.Dense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(s, true); !ok {
		return nil, errors.New(errors.ErrCodeInternal, "eigendecomposition did not converge")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	n := len(vals)
	scaled := mat.NewDense(n, n, nil)
	scaled.Apply(func(_, j int, v float64) float64 {
		return v * f(vals[j])
	}, &vecs)

	var out mat.Dense
	out.Mul(scaled, vecs.T())
	return &out, nil
}

// degenerate reports whether the covariance carries no usable variance.
func degenerate(s mat.Symmetric) bool {
	return mat.Trace(s) < Epsilon
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := range n {
		m.Set(i, i, 1)
	}
	return m
}

// WhiteningMatrix returns E·D^(-1/2)·Eᵀ with eigenvalues floored to Epsilon.
// A degenerate covariance yields the identity (no scaling).
func WhiteningMatrix(cov mat.Symmetric) (*mat.Dense, error) {
	if degenerate(cov) {
		return identity(cov.SymmetricDim()), nil
	}
	return spectralMap(cov, func(l float64) float64 {
		return 1 / math.Sqrt(math.Max(l, Epsilon))
	})
}

// ColoringMatrix returns E·D^(1/2)·Eᵀ. Slightly negative eigenvalues caused by
// rounding are clamped to zero.
func ColoringMatrix(cov mat.Symmetric) (*mat.Dense, error) {
	return spectralMap(cov, func(l float64) float64 {
		return math.Sqrt(math.Max(l, 0))
	})
}

// symmetrize returns (m + mᵀ)/2 as a SymDense.
func symmetrize(m mat.Matrix) *mat.SymDense {
	n, _ := m.Dims()
	s := mat.NewSymDense(n, nil)
	for i := range n {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return s
}

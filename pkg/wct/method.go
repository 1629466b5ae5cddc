package wct

import (
	"gonum.org/v1/gonum/mat"

	"github.com/matzehuels/stylewct/pkg/errors"
)

// Method selects how the content-to-style map is factorized.
type Method string

const (
	// MethodOriginal whitens and colors with separate eigendecompositions.
	MethodOriginal Method = "original"

	// MethodClosedForm uses the Gaussian optimal transport map.
	MethodClosedForm Method = "closed-form"
)

// DefaultMethod is the method used when none is configured.
const DefaultMethod = MethodOriginal

// ValidMethods is the set of supported transform methods.
var ValidMethods = map[Method]bool{
	MethodOriginal:   true,
	MethodClosedForm: true,
}

// ParseMethod converts a configuration string into a Method.
// The empty string selects DefaultMethod.
func ParseMethod(s string) (Method, error) {
	if s == "" {
		return DefaultMethod, nil
	}
	m := Method(s)
	if !ValidMethods[m] {
		return "", errors.New(errors.ErrCodeInvalidConfig,
			"invalid transform method: %q (must be one of: original, closed-form)", s)
	}
	return m, nil
}

// LinearMap returns the C×C matrix M such that M·(F−μc) has covariance
// styleCov when F has covariance contentCov.
func LinearMap(method Method, contentCov, styleCov mat.Symmetric) (*mat.Dense, error) {
	if contentCov.SymmetricDim() != styleCov.SymmetricDim() {
		return nil, errors.New(errors.ErrCodeChannelMismatch,
			"content covariance is %d-dimensional, style covariance is %d-dimensional",
			contentCov.SymmetricDim(), styleCov.SymmetricDim())
	}
	switch method {
	case MethodOriginal:
		return eigenMap(contentCov, styleCov)
	case MethodClosedForm:
		return closedFormMap(contentCov, styleCov)
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "invalid transform method: %q", method)
	}
}

// eigenMap composes coloring after whitening: Ws·Wc.
func eigenMap(contentCov, styleCov mat.Symmetric) (*mat.Dense, error) {
	wc, err := WhiteningMatrix(contentCov)
	if err != nil {
		return nil, err
	}
	ws, err := ColoringMatrix(styleCov)
	if err != nil {
		return nil, err
	}
	var m mat.Dense
	m.Mul(ws, wc)
	return &m, nil
}

// closedFormMap computes Σc^(-1/2)·(Σc^(1/2)·Σs·Σc^(1/2))^(1/2)·Σc^(-1/2).
func closedFormMap(contentCov, styleCov mat.Symmetric) (*mat.Dense, error) {
	root, err := ColoringMatrix(contentCov)
	if err != nil {
		return nil, err
	}
	invRoot, err := WhiteningMatrix(contentCov)
	if err != nil {
		return nil, err
	}

	var left, inner mat.Dense
	left.Mul(root, styleCov)
	inner.Mul(&left, root)

	innerRoot, err := ColoringMatrix(symmetrize(&inner))
	if err != nil {
		return nil, err
	}

	var half, m mat.Dense
	half.Mul(invRoot, innerRoot)
	m.Mul(&half, invRoot)
	return &m, nil
}

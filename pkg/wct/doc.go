// Package wct implements the Whitening-and-Coloring Transform: the statistics
// engine and transform unit at the heart of stylewct.
//
// # Statistics
//
// [ComputeStats] reshapes a (C, H, W) feature tensor into a C×N matrix
// (N = H·W) and returns its mean vector and unbiased covariance
// Σ = (F−μ)(F−μ)ᵀ/(N−1).
//
// # Methods
//
// Two interchangeable algorithms derive the C×C map M such that
// M·(F−μc) has the style covariance Σs:
//
//   - [MethodOriginal] whitens with E·D^(-1/2)·Eᵀ from the eigendecomposition
//     of Σc, then colors with Es·Ds^(1/2)·Esᵀ (Li et al., 2017).
//   - [MethodClosedForm] uses the optimal transport map between the two
//     Gaussian approximations, Σc^(-1/2)·(Σc^(1/2)·Σs·Σc^(1/2))^(1/2)·Σc^(-1/2)
//     (Lu et al., 2019).
//
// Both produce the same output covariance for well-conditioned inputs.
//
// # Numerical degeneracy
//
// Eigenvalues below [Epsilon] are floored before inversion. A covariance
// whose total variance is below [Epsilon] (for example a uniform feature map)
// is whitened with the identity instead. Neither case is reported as an
// error. Non-finite inputs and channel mismatches are precondition
// violations and return structured errors from pkg/errors.
//
// # Usage
//
//	out, err := wct.Transform(contentFeat, styleFeat, wct.MethodClosedForm)
package wct

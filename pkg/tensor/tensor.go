// Package tensor provides the dense (channel, row, column) float32 array
// shared by every stage of the style transfer pipeline.
//
// The same type carries encoder features and images. Images are tensors with
// one (gray) or three (RGB) channels holding values in [0, 1]; feature tensors
// have as many channels as the encoder level produces.
//
// Tensors are treated as immutable once handed to another component. Every
// operation in this repository that derives a tensor allocates a new one.
package tensor

import (
	"fmt"
	"math"

	"github.com/matzehuels/stylewct/pkg/errors"
)

// Tensor is a 3-D (C, H, W) array stored in row-major order: element
// (c, y, x) lives at Data[c*H*W + y*W + x].
type Tensor struct {
	C, H, W int
	Data    []float32
}

// New allocates a zero-filled tensor.
func New(c, h, w int) *Tensor {
	return &Tensor{C: c, H: h, W: w, Data: make([]float32, c*h*w)}
}

// FromSlice wraps data as a (c, h, w) tensor without copying.
func FromSlice(data []float32, c, h, w int) (*Tensor, error) {
	if c <= 0 || h <= 0 || w <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidShape, "dimensions must be positive, got (%d, %d, %d)", c, h, w)
	}
	if len(data) != c*h*w {
		return nil, errors.New(errors.ErrCodeInvalidShape, "data length %d does not match shape (%d, %d, %d)", len(data), c, h, w)
	}
	return &Tensor{C: c, H: h, W: w, Data: data}, nil
}

// Full returns a tensor with every element set to v.
func Full(c, h, w int, v float32) *Tensor {
	t := New(c, h, w)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

// Spatial returns the number of pixels per channel (H*W).
func (t *Tensor) Spatial() int { return t.H * t.W }

// Len returns the total number of elements.
func (t *Tensor) Len() int { return len(t.Data) }

// Shape returns the dimensions as a [C, H, W] triple.
func (t *Tensor) Shape() [3]int { return [3]int{t.C, t.H, t.W} }

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(%d, %d, %d)", t.C, t.H, t.W)
}

// At returns element (c, y, x).
func (t *Tensor) At(c, y, x int) float32 {
	return t.Data[c*t.H*t.W+y*t.W+x]
}

// Set assigns element (c, y, x).
func (t *Tensor) Set(c, y, x int, v float32) {
	t.Data[c*t.H*t.W+y*t.W+x] = v
}

// Channel returns channel c as a slice aliasing the tensor data.
func (t *Tensor) Channel(c int) []float32 {
	n := t.H * t.W
	return t.Data[c*n : (c+1)*n]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.Data))
	copy(data, t.Data)
	return &Tensor{C: t.C, H: t.H, W: t.W, Data: data}
}

// SameShape reports whether t and o have identical dimensions.
func (t *Tensor) SameShape(o *Tensor) bool {
	return t.C == o.C && t.H == o.H && t.W == o.W
}

// Validate checks the structural preconditions every consumer relies on:
// positive dimensions, matching data length and finite values.
func (t *Tensor) Validate() error {
	if t == nil {
		return errors.New(errors.ErrCodeInvalidShape, "tensor is nil")
	}
	if t.C <= 0 || t.H <= 0 || t.W <= 0 {
		return errors.New(errors.ErrCodeInvalidShape, "dimensions must be positive, got %s", t)
	}
	if len(t.Data) != t.C*t.H*t.W {
		return errors.New(errors.ErrCodeInvalidShape, "data length %d does not match %s", len(t.Data), t)
	}
	for i, v := range t.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.New(errors.ErrCodeNonFinite, "non-finite value %v at index %d", v, i)
		}
	}
	return nil
}

// Clamp returns a copy with every element limited to [lo, hi].
func (t *Tensor) Clamp(lo, hi float32) *Tensor {
	out := t.Clone()
	for i, v := range out.Data {
		out.Data[i] = min(max(v, lo), hi)
	}
	return out
}

// MaxAbsDiff returns the largest element-wise absolute difference between
// two tensors of the same shape, or +Inf if the shapes differ.
func MaxAbsDiff(a, b *Tensor) float64 {
	if !a.SameShape(b) {
		return math.Inf(1)
	}
	var m float64
	for i := range a.Data {
		d := math.Abs(float64(a.Data[i]) - float64(b.Data[i]))
		if d > m {
			m = d
		}
	}
	return m
}

package tensor

import (
	"math"
	"testing"

	"github.com/matzehuels/stylewct/pkg/errors"
)

func TestFromSlice(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	x, err := FromSlice(data, 1, 2, 3)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	if x.At(0, 1, 2) != 6 {
		t.Errorf("At(0,1,2) = %v, want 6", x.At(0, 1, 2))
	}
	if x.Spatial() != 6 {
		t.Errorf("Spatial() = %d, want 6", x.Spatial())
	}

	if _, err := FromSlice(data, 2, 2, 2); !errors.Is(err, errors.ErrCodeInvalidShape) {
		t.Errorf("length mismatch should be INVALID_SHAPE, got %v", err)
	}
	if _, err := FromSlice(nil, 0, 1, 1); err == nil {
		t.Error("zero channel count should fail")
	}
}

func TestChannelAliases(t *testing.T) {
	x := New(2, 2, 2)
	x.Channel(1)[3] = 7
	if x.At(1, 1, 1) != 7 {
		t.Errorf("Channel slice should alias data, got %v", x.At(1, 1, 1))
	}
}

func TestClone(t *testing.T) {
	x := Full(1, 2, 2, 3)
	c := x.Clone()
	x.Data[0] = 100
	if c.Data[0] != 3 {
		t.Error("Clone was modified when original changed")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		t    *Tensor
		code errors.Code
	}{
		{"nil", nil, errors.ErrCodeInvalidShape},
		{"bad dims", &Tensor{C: 0, H: 1, W: 1}, errors.ErrCodeInvalidShape},
		{"bad length", &Tensor{C: 1, H: 2, W: 2, Data: make([]float32, 3)}, errors.ErrCodeInvalidShape},
		{"nan", &Tensor{C: 1, H: 1, W: 1, Data: []float32{float32(math.NaN())}}, errors.ErrCodeNonFinite},
		{"inf", &Tensor{C: 1, H: 1, W: 1, Data: []float32{float32(math.Inf(-1))}}, errors.ErrCodeNonFinite},
		{"ok", Full(3, 2, 2, 1), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.t.Validate()
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("Validate() code = %q, want %q (err=%v)", got, tt.code, err)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	x, _ := FromSlice([]float32{-1, 0.5, 2}, 1, 1, 3)
	c := x.Clamp(0, 1)
	want := []float32{0, 0.5, 1}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("Clamp()[%d] = %v, want %v", i, c.Data[i], want[i])
		}
	}
	if x.Data[0] != -1 {
		t.Error("Clamp should not modify the receiver")
	}
}

func TestMaxAbsDiff(t *testing.T) {
	a := Full(1, 2, 2, 1)
	b := a.Clone()
	b.Set(0, 1, 0, 1.5)
	if d := MaxAbsDiff(a, b); d != 0.5 {
		t.Errorf("MaxAbsDiff = %v, want 0.5", d)
	}
	if d := MaxAbsDiff(a, New(2, 2, 2)); !math.IsInf(d, 1) {
		t.Errorf("MaxAbsDiff on shape mismatch = %v, want +Inf", d)
	}
}

func TestBinaryEncoding(t *testing.T) {
	x, _ := FromSlice([]float32{1, -2.5, 3.25, 0, 1e-7, 42}, 2, 1, 3)
	data, err := x.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	var y Tensor
	if err := y.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if !x.SameShape(&y) || MaxAbsDiff(x, &y) != 0 {
		t.Errorf("decoded %v differs from %v", &y, x)
	}

	if err := y.UnmarshalBinary([]byte("junk")); err == nil {
		t.Error("decoding junk should fail")
	}
	if err := y.UnmarshalBinary(data[:len(data)-1]); err == nil {
		t.Error("decoding truncated data should fail")
	}
}

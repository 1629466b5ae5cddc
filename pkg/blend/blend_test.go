package blend

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/matzehuels/stylewct/pkg/errors"
	"github.com/matzehuels/stylewct/pkg/tensor"
)

func randomTensor(seed uint64, c, h, w int) *tensor.Tensor {
	rng := rand.New(rand.NewPCG(seed, 11))
	t := tensor.New(c, h, w)
	for i := range t.Data {
		t.Data[i] = float32(rng.NormFloat64())
	}
	return t
}

func TestBlendIdenticalInputs(t *testing.T) {
	x := randomTensor(1, 3, 6, 5)
	sal, _ := NewSaliency([]float32{0, 0.5, 1, 0.25}, 2, 2)

	tests := []Params{
		{Weights: Weights{0, 0}},
		{Weights: Weights{1, 1}},
		{Weights: Weights{0.8, 0.9}},
		{Weights: Weights{0.3, 0.6}, Mode: ModeSchedule, Factor: 0.5},
		{Weights: Weights{0.8, 0.9}, Mode: ModeSaliency, Saliency: sal},
	}
	for _, p := range tests {
		out, err := Blend(x, x, x, p)
		if err != nil {
			t.Fatalf("Blend(%+v): %v", p, err)
		}
		if d := tensor.MaxAbsDiff(out, x); d > 1e-6 {
			t.Errorf("Blend(X, X, X, %+v) differs from X by %v", p.Weights, d)
		}
	}
}

func TestBlendFormula(t *testing.T) {
	last := tensor.Full(1, 1, 1, 10)
	orig := tensor.Full(1, 1, 1, 20)
	content := tensor.Full(1, 1, 1, 40)

	// 0.8*(0.9*10 + 0.1*20) + 0.2*40 = 0.8*11 + 8 = 16.8
	out, err := Blend(last, orig, content, Params{Weights: Weights{0.8, 0.9}})
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	if got := out.Data[0]; math.Abs(float64(got)-16.8) > 1e-5 {
		t.Errorf("Blend = %v, want 16.8", got)
	}

	// Schedule factor 0.5 halves delta: 0.8*(0.45*10 + 0.55*20) + 8 = 20.4
	out, err = Blend(last, orig, content, Params{Weights: Weights{0.8, 0.9}, Mode: ModeSchedule, Factor: 0.5})
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	if got := out.Data[0]; math.Abs(float64(got)-20.4) > 1e-5 {
		t.Errorf("scheduled Blend = %v, want 20.4", got)
	}
}

func TestSaliencyZeroReducesToConstant(t *testing.T) {
	last, orig, content := randomTensor(2, 4, 8, 8), randomTensor(3, 4, 8, 8), randomTensor(4, 4, 8, 8)
	w := Weights{0.7, 0.6}
	zero, _ := NewSaliency(make([]float32, 3*5), 3, 5)

	want, _ := Blend(last, orig, content, Params{Weights: w})
	got, err := Blend(last, orig, content, Params{Weights: w, Mode: ModeSaliency, Saliency: zero})
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	if d := tensor.MaxAbsDiff(got, want); d != 0 {
		t.Errorf("zero saliency differs from constant blend by %v", d)
	}
}

func TestScheduleZeroReducesToConstant(t *testing.T) {
	last, orig, content := randomTensor(5, 2, 4, 4), randomTensor(6, 2, 4, 4), randomTensor(7, 2, 4, 4)
	w := Weights{0.5, 0.4}

	want, _ := Blend(last, orig, content, Params{Weights: w})
	got, err := Blend(last, orig, content, Params{Weights: w, Mode: ModeSchedule, Factor: 0})
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	if d := tensor.MaxAbsDiff(got, want); d != 0 {
		t.Errorf("zero schedule factor differs from constant blend by %v", d)
	}
}

func TestSaliencyLowersStylization(t *testing.T) {
	last := tensor.Full(1, 1, 2, 1)
	orig := tensor.Full(1, 1, 2, 1)
	content := tensor.Full(1, 1, 2, 0)
	sal, _ := NewSaliency([]float32{1, 0}, 1, 2)

	out, err := Blend(last, orig, content, Params{Weights: Weights{0.8, 0.9}, Mode: ModeSaliency, Saliency: sal})
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	// Salient pixel: g = 0.8 - 0.2 = 0.6; background keeps g = 0.8.
	if got := out.At(0, 0, 0); math.Abs(float64(got)-0.6) > 1e-4 {
		t.Errorf("salient pixel = %v, want 0.6", got)
	}
	if got := out.At(0, 0, 1); math.Abs(float64(got)-0.8) > 1e-4 {
		t.Errorf("background pixel = %v, want 0.8", got)
	}
}

func TestBlendValidation(t *testing.T) {
	x := tensor.Full(1, 2, 2, 1)
	tests := []struct {
		name    string
		a, b, c *tensor.Tensor
		p       Params
		code    errors.Code
	}{
		{"gamma out of range", x, x, x, Params{Weights: Weights{1.5, 0.5}}, errors.ErrCodeInvalidWeight},
		{"saliency without map", x, x, x, Params{Weights: Weights{0.5, 0.5}, Mode: ModeSaliency}, errors.ErrCodeInvalidConfig},
		{"bad factor", x, x, x, Params{Weights: Weights{0.5, 0.5}, Mode: ModeSchedule, Factor: 2}, errors.ErrCodeInvalidWeight},
		{"unknown mode", x, x, x, Params{Weights: Weights{0.5, 0.5}, Mode: "both"}, errors.ErrCodeInvalidConfig},
		{"shape mismatch", x, x, tensor.Full(2, 2, 2, 1), Params{Weights: Weights{0.5, 0.5}}, errors.ErrCodeInvalidShape},
		{"nil input", x, nil, x, Params{Weights: Weights{0.5, 0.5}}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Blend(tt.a, tt.b, tt.c, tt.p)
			if !errors.Is(err, tt.code) {
				t.Errorf("Blend() error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestSaliencyWeights(t *testing.T) {
	sal, err := NewSaliency([]float32{0, 0.25, 0.5, 0.5}, 2, 2)
	if err != nil {
		t.Fatalf("NewSaliency: %v", err)
	}
	w := sal.Weights(2, 2)
	want := []float32{0, 0.1, 0.2, 0.2}
	for i := range want {
		if math.Abs(float64(w[i]-want[i])) > 1e-4 {
			t.Errorf("Weights()[%d] = %v, want %v", i, w[i], want[i])
		}
	}

	up := sal.Weights(8, 8)
	if len(up) != 64 {
		t.Fatalf("resized weights length = %d, want 64", len(up))
	}
	var peak float32
	for _, v := range up {
		if v < 0 {
			t.Fatalf("negative weight %v", v)
		}
		peak = max(peak, v)
	}
	if math.Abs(float64(peak)-SaliencyPeak) > 1e-4 {
		t.Errorf("resized peak = %v, want %v", peak, SaliencyPeak)
	}

	if _, err := NewSaliency([]float32{1, 2, 3}, 2, 2); err == nil {
		t.Error("mismatched saliency size should fail")
	}
}

func TestSaliencyFromImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 2))
	img.SetGray(3, 1, color.Gray{Y: 255})
	sal := SaliencyFromImage(img)

	if h, w := sal.Size(); h != 2 || w != 4 {
		t.Fatalf("Size() = (%d, %d), want (2, 4)", h, w)
	}
	vals := sal.Resize(2, 4)
	if vals[7] != 1 || vals[0] != 0 {
		t.Errorf("unexpected luminance values: %v", vals)
	}
}

func TestSchedule(t *testing.T) {
	tests := []struct {
		n       int
		reverse bool
		want    []float64
	}{
		{0, false, nil},
		{1, false, []float64{0}},
		{1, true, []float64{0}},
		{3, false, []float64{0, 0.5, 1}},
		{5, true, []float64{1, 0.75, 0.5, 0.25, 0}},
	}
	for _, tt := range tests {
		got := Schedule(tt.n, tt.reverse)
		if len(got) != len(tt.want) {
			t.Fatalf("Schedule(%d, %v) = %v, want %v", tt.n, tt.reverse, got, tt.want)
		}
		for i := range got {
			if math.Abs(got[i]-tt.want[i]) > 1e-12 {
				t.Errorf("Schedule(%d, %v)[%d] = %v, want %v", tt.n, tt.reverse, i, got[i], tt.want[i])
			}
		}
	}
}

package blend

import "slices"

// Schedule returns n factors evenly spaced over [0, 1], one per level in
// processing order. With reverse the same sequence is returned back to
// front, running from 1 down to 0. A single level gets the factor 0 either
// way.
func Schedule(n int, reverse bool) []float64 {
	if n <= 0 {
		return nil
	}
	f := make([]float64, n)
	for i := range n {
		if n > 1 {
			f[i] = float64(i) / float64(n-1)
		}
	}
	if reverse {
		slices.Reverse(f)
	}
	return f
}

package timesync

import "math"

// lowpass is a second-order Butterworth low-pass section.
type lowpass struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// newLowpass designs a second-order Butterworth low-pass via the bilinear
// transform. cutoff and rate are in Hz; cutoff is clamped just under
// Nyquist.
func newLowpass(cutoff, rate float64) lowpass {
	nyquist := rate / 2
	if cutoff >= nyquist {
		cutoff = nyquist * 0.99
	}
	c := 1 / math.Tan(math.Pi*cutoff/rate)
	norm := 1 / (1 + math.Sqrt2*c + c*c)
	return lowpass{
		b0: norm,
		b1: 2 * norm,
		b2: norm,
		a1: 2 * norm * (1 - c*c),
		a2: norm * (1 - math.Sqrt2*c + c*c),
	}
}

func (f lowpass) apply(x []float64) []float64 {
	y := make([]float64, len(x))
	var x1, x2, y1, y2 float64
	if len(x) > 0 {
		// Prime the delay line with the first sample to avoid a step edge.
		x1, x2, y1, y2 = x[0], x[0], x[0], x[0]
	}
	for i, v := range x {
		out := f.b0*v + f.b1*x1 + f.b2*x2 - f.a1*y1 - f.a2*y2
		x2, x1 = x1, v
		y2, y1 = y1, out
		y[i] = out
	}
	return y
}

// FiltFilt applies the low-pass forward and backward for zero phase shift,
// with odd-reflection padding at both ends so the edges do not ring. Series
// too short to pad are returned unchanged.
func FiltFilt(x []float64, cutoff, rate float64) []float64 {
	n := len(x)
	pad := 3 * 2 // three times the section order
	if n <= pad+1 {
		out := make([]float64, n)
		copy(out, x)
		return out
	}

	f := newLowpass(cutoff, rate)

	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*x[n-1]-x[i])
	}

	fwd := f.apply(ext)
	reverse(fwd)
	bwd := f.apply(fwd)
	reverse(bwd)

	return bwd[pad : pad+n]
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

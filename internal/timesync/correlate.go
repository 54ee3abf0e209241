package timesync

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Lag returns the integer shift L that best aligns b onto a, in the sense
// that b[i] matches a[i+L]. Both signals are z-scored before the FFT
// cross-correlation so amplitude differences between cameras do not bias
// the peak.
func Lag(a, b []float64) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := nextPow2(len(a) + len(b) - 1)

	fa := padded(zscore(a), n)
	fb := padded(zscore(b), n)

	fft := fourier.NewFFT(n)
	ca := fft.Coefficients(nil, fa)
	cb := fft.Coefficients(nil, fb)

	prod := make([]complex128, len(ca))
	for i := range ca {
		prod[i] = ca[i] * cmplxConj(cb[i])
	}
	corr := fft.Sequence(nil, prod)

	best := 0
	bestVal := math.Inf(-1)
	for k, v := range corr {
		if v > bestVal {
			bestVal = v
			best = k
		}
	}
	// Circular correlation wraps negative lags to the top of the buffer.
	if best > n/2 {
		best -= n
	}
	// corr[k] = Σ a[m]·b[m-k] peaks at k = L when b[i] tracks a[i+L].
	return best
}

func cmplxConj(c complex128) complex128 {
	return complex(real(c), -imag(c))
}

func zscore(x []float64) []float64 {
	mean, std := stat.MeanStdDev(x, nil)
	out := make([]float64, len(x))
	if std == 0 || math.IsNaN(std) {
		return out
	}
	for i, v := range x {
		out[i] = (v - mean) / std
	}
	return out
}

func padded(x []float64, n int) []float64 {
	out := make([]float64, n)
	copy(out, x)
	return out
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

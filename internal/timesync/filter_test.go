package timesync_test

import (
	"math"
	"testing"

	"mocap/internal/timesync"
)

func TestFiltFiltAttenuatesHighFrequency(t *testing.T) {
	const rate = 60.0
	n := 600
	slow := make([]float64, n)
	noisy := make([]float64, n)
	for i := 0; i < n; i++ {
		ts := float64(i) / rate
		base := math.Sin(2 * math.Pi * 1 * ts)
		slow[i] = base
		noisy[i] = base + 0.5*math.Sin(2*math.Pi*25*ts)
	}

	filtered := timesync.FiltFilt(noisy, 6, rate)

	// Compare against the clean slow component away from the edges.
	var rms float64
	count := 0
	for i := 30; i < n-30; i++ {
		d := filtered[i] - slow[i]
		rms += d * d
		count++
	}
	rms = math.Sqrt(rms / float64(count))
	if rms > 0.08 {
		t.Fatalf("filtered RMS error %v, want < 0.08 (25 Hz component should be gone)", rms)
	}
}

func TestFiltFiltZeroPhase(t *testing.T) {
	const rate = 60.0
	n := 300
	x := make([]float64, n)
	for i := range x {
		d := (float64(i) - 150) / 15
		x[i] = math.Exp(-d * d)
	}
	filtered := timesync.FiltFilt(x, 8, rate)

	// A causal filter would delay the bump; forward-backward must not.
	if peak := argmax(filtered); peak != 150 {
		t.Fatalf("peak moved to %d; filtfilt must be zero-phase", peak)
	}
}

func TestFiltFiltShortSeriesUntouched(t *testing.T) {
	x := []float64{1, 2, 3}
	got := timesync.FiltFilt(x, 6, 60)
	for i := range x {
		if got[i] != x[i] {
			t.Fatalf("short series must pass through, got %v", got)
		}
	}
}

func argmax(x []float64) int {
	best, bestVal := 0, math.Inf(-1)
	for i, v := range x {
		if v > bestVal {
			best, bestVal = i, v
		}
	}
	return best
}

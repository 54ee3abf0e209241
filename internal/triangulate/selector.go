package triangulate

import (
	"math"

	"mocap/internal/camera"
	"mocap/internal/recon"
	"mocap/internal/timesync"
)

// Candidate is one named calibration hypothesis: a complete per-camera
// parameter set.
type Candidate struct {
	Name   string
	Params map[string]*camera.Parameters
}

// Select triangulates the reference trial under each candidate calibration
// and returns the index of the one with the lowest confidence-weighted
// reprojection residual, along with every candidate's score. Ties break to
// the lowest index.
func Select(set *timesync.StreamSet, candidates []Candidate, opts Options) (int, []float64, error) {
	if len(candidates) == 0 {
		return 0, nil, recon.New(recon.KindConfiguration, "calibration selection requires at least one candidate set")
	}

	scores := make([]float64, len(candidates))
	best := -1
	for i, candidate := range candidates {
		scores[i] = consistencyScore(set, candidate.Params, opts)
		if best < 0 || scores[i] < scores[best] {
			best = i
		}
	}
	if math.IsInf(scores[best], 1) {
		return 0, scores, recon.New(recon.KindTooFewViews,
			"no calibration candidate produced a usable triangulation of the reference trial")
	}
	return best, scores, nil
}

// consistencyScore is the aggregate confidence-weighted reprojection
// residual of the reference trial under one calibration hypothesis. Gap
// interpolation is disabled so only directly triangulated points are
// judged.
func consistencyScore(set *timesync.StreamSet, cams map[string]*camera.Parameters, opts Options) float64 {
	var residualSum, weightSum float64

	n := set.Len()
	for _, marker := range set.Names {
		for i := 0; i < n; i++ {
			obs := observationsAt(set, cams, marker, i, opts.ConfidenceThreshold)
			pt, ok := solvePoint(obs)
			if !ok {
				continue
			}
			world := [3]float64{pt.X, pt.Y, pt.Z}
			for _, o := range obs {
				u, v, ok := o.params.Project(world)
				if !ok {
					// A contributing view that cannot see the solved point
					// is maximal evidence against the hypothesis.
					return math.Inf(1)
				}
				residualSum += o.conf * math.Hypot(u-o.x, v-o.y)
				weightSum += o.conf
			}
		}
	}
	if weightSum == 0 {
		return math.Inf(1)
	}
	return residualSum / weightSum
}

package triangulate

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"mocap/internal/camera"
	"mocap/internal/recon"
	"mocap/internal/timesync"
)

// Options controls point acceptance and gap handling.
type Options struct {
	// ConfidenceThreshold gates which observations may contribute.
	ConfidenceThreshold float64
	// MaxGapFrames bounds spline interpolation; 0 derives round(rate/5),
	// one fifth of a second.
	MaxGapFrames int
	// ZeroFillLongGaps replaces runs beyond the limit with origin points of
	// zero confidence, for consumers that cannot handle missing samples.
	ZeroFillLongGaps bool
	// MinValidFrames is the fatal floor on frames valid across all markers;
	// 0 means 10.
	MinValidFrames int
}

func (o Options) maxGap(rate float64) int {
	if o.MaxGapFrames > 0 {
		return o.MaxGapFrames
	}
	return int(math.Round(rate / 5))
}

func (o Options) minValid() int {
	if o.MinValidFrames > 0 {
		return o.MinValidFrames
	}
	return 10
}

// Point is one reconstructed 3D sample. Valid is false for explicit
// missing values; such points carry no position information.
type Point struct {
	X, Y, Z    float64
	Confidence float64
	Valid      bool
}

// Result holds one trajectory per marker at the shared frame rate.
type Result struct {
	Rate         float64
	Names        []string
	Trajectories map[string][]Point
}

// ValidFrameCount returns the number of frames valid across every marker.
func (r *Result) ValidFrameCount() int {
	if len(r.Names) == 0 {
		return 0
	}
	n := len(r.Trajectories[r.Names[0]])
	count := 0
	for i := 0; i < n; i++ {
		all := true
		for _, name := range r.Names {
			if !r.Trajectories[name][i].Valid {
				all = false
				break
			}
		}
		if all {
			count++
		}
	}
	return count
}

// observation is a single camera's qualifying view of a marker at a frame.
type observation struct {
	params *camera.Parameters
	x, y   float64
	conf   float64
}

// observationsAt gathers the cameras whose confidence for the marker at
// this frame clears the threshold, respecting eligibility and per-camera
// validity windows.
func observationsAt(set *timesync.StreamSet, cams map[string]*camera.Parameters, marker string, frame int, threshold float64) []observation {
	var obs []observation
	for _, name := range set.Eligible {
		params, ok := cams[name]
		if !ok {
			continue
		}
		align := set.Alignments[name]
		if frame < align.ValidStart || frame >= align.ValidEnd {
			continue
		}
		pt, ok := set.Frames[name][frame][marker]
		if !ok || pt.Confidence <= threshold {
			continue
		}
		obs = append(obs, observation{params: params, x: pt.X, y: pt.Y, conf: pt.Confidence})
	}
	return obs
}

// solvePoint solves the confidence-weighted linear system stacking each
// camera's back-projection constraint. Needs at least two observations.
func solvePoint(obs []observation) (Point, bool) {
	if len(obs) < 2 {
		return Point{}, false
	}

	a := mat.NewDense(2*len(obs), 3, nil)
	b := mat.NewVecDense(2*len(obs), nil)
	var confSum float64
	for i, o := range obs {
		xn, yn := o.params.Normalize(o.x, o.y)
		r := o.params.Rotation
		t := o.params.Translation
		w := o.conf

		// xn·(R3·X + t3) = R1·X + t1, weighted by the observation
		// confidence so uncertain detections perturb the fit less.
		for j := 0; j < 3; j++ {
			a.Set(2*i, j, w*(xn*r[2][j]-r[0][j]))
			a.Set(2*i+1, j, w*(yn*r[2][j]-r[1][j]))
		}
		b.SetVec(2*i, w*(t[0]-xn*t[2]))
		b.SetVec(2*i+1, w*(t[1]-yn*t[2]))
		confSum += o.conf
	}

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return Point{}, false
	}
	return Point{
		X:          x.AtVec(0),
		Y:          x.AtVec(1),
		Z:          x.AtVec(2),
		Confidence: confSum / float64(len(obs)),
		Valid:      true,
	}, true
}

// Reconstruct triangulates every marker of the synchronized set.
func Reconstruct(set *timesync.StreamSet, cams map[string]*camera.Parameters, opts Options) (*Result, error) {
	usable := 0
	for _, name := range set.Eligible {
		if _, ok := cams[name]; ok {
			usable++
		}
	}
	if usable < 2 {
		return nil, recon.Wrap(recon.KindTooFewViews,
			"Triangulation failed: fewer than two usable camera views.",
			"triangulation requires at least 2 eligible calibrated cameras",
			nil)
	}

	n := set.Len()
	result := &Result{
		Rate:         set.Rate,
		Names:        append([]string(nil), set.Names...),
		Trajectories: make(map[string][]Point, len(set.Names)),
	}
	maxGap := opts.maxGap(set.Rate)

	for _, marker := range result.Names {
		traj := make([]Point, n)
		for i := 0; i < n; i++ {
			obs := observationsAt(set, cams, marker, i, opts.ConfidenceThreshold)
			if pt, ok := solvePoint(obs); ok {
				traj[i] = pt
			}
		}
		fillGaps(traj, maxGap)
		result.Trajectories[marker] = traj
	}

	if valid := result.ValidFrameCount(); valid < opts.minValid() {
		return nil, recon.Wrap(recon.KindInsufficientFrames,
			"Less than 10 good frames of triangulated data. Verify your setup and try again.",
			fmt.Sprintf("only %d fully valid frames after triangulation (minimum %d)", valid, opts.minValid()),
			nil)
	}

	if opts.ZeroFillLongGaps {
		for _, marker := range result.Names {
			traj := result.Trajectories[marker]
			for i := range traj {
				if !traj[i].Valid {
					traj[i] = Point{Valid: true}
				}
			}
		}
	}

	return result, nil
}

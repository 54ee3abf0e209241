package triangulate

import "gonum.org/v1/gonum/interp"

// fillGaps spline-interpolates missing runs of up to maxGap frames that
// are bounded by valid samples on both sides. Leading and trailing runs,
// and runs longer than the limit, stay explicitly missing.
func fillGaps(traj []Point, maxGap int) {
	if maxGap <= 0 {
		return
	}
	n := len(traj)
	i := 0
	for i < n {
		if traj[i].Valid {
			i++
			continue
		}
		start := i
		for i < n && !traj[i].Valid {
			i++
		}
		end := i // [start, end) is the missing run
		if start == 0 || end == n || end-start > maxGap {
			continue
		}
		interpolateRun(traj, start, end)
	}
}

// neighborWindow is how many valid samples on each side anchor the spline.
const neighborWindow = 6

func interpolateRun(traj []Point, start, end int) {
	var ts []float64
	var xs, ys, zs []float64

	appendSample := func(i int) {
		ts = append(ts, float64(i))
		xs = append(xs, traj[i].X)
		ys = append(ys, traj[i].Y)
		zs = append(zs, traj[i].Z)
	}

	left := 0
	for i := start - 1; i >= 0 && left < neighborWindow; i-- {
		if traj[i].Valid {
			left++
		} else {
			break
		}
	}
	for i := start - left; i < start; i++ {
		appendSample(i)
	}
	right := 0
	for i := end; i < len(traj) && right < neighborWindow; i++ {
		if traj[i].Valid {
			right++
		} else {
			break
		}
	}
	for i := end; i < end+right; i++ {
		appendSample(i)
	}
	if len(ts) < 2 {
		return
	}

	var sx, sy, sz interp.NaturalCubic
	if sx.Fit(ts, xs) != nil || sy.Fit(ts, ys) != nil || sz.Fit(ts, zs) != nil {
		return
	}

	// Interpolated samples inherit the confidence of the bounding valid
	// neighbors so downstream weighting stays honest.
	conf := (traj[start-1].Confidence + traj[end].Confidence) / 2
	for i := start; i < end; i++ {
		t := float64(i)
		traj[i] = Point{
			X:          sx.Predict(t),
			Y:          sy.Predict(t),
			Z:          sz.Predict(t),
			Confidence: conf,
			Valid:      true,
		}
	}
}

package calib

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// estimateHomography solves the plane-to-image homography by direct linear
// transform: each correspondence contributes two rows of the stacked system
// A·h = 0, whose least-squares solution is the right singular vector of the
// smallest singular value. Both point sets are conditioned with a similarity
// transform first; raw pixel-scale coordinates make A numerically hostile.
func estimateHomography(world, image [][2]float64) (*mat.Dense, error) {
	if len(world) < 4 || len(world) != len(image) {
		return nil, fmt.Errorf("homography needs >= 4 correspondences, got %d/%d", len(world), len(image))
	}

	tw, worldN := condition(world)
	ti, imageN := condition(image)

	data := make([]float64, 0, 18*len(world))
	for i := range worldN {
		X, Y := worldN[i][0], worldN[i][1]
		x, y := imageN[i][0], imageN[i][1]
		data = append(data,
			-X, -Y, -1, 0, 0, 0, x*X, x*Y, x,
			0, 0, 0, -X, -Y, -1, y*X, y*Y, y,
		)
	}
	a := mat.NewDense(2*len(world), 9, data)

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return nil, fmt.Errorf("homography SVD did not converge")
	}
	var v mat.Dense
	svd.VTo(&v)
	h := v.ColView(8)

	hn := mat.NewDense(3, 3, []float64{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), h.AtVec(8),
	})

	// Undo the conditioning: H = Ti^-1 * Hn * Tw.
	var tiInv, tmp, out mat.Dense
	if err := tiInv.Inverse(ti); err != nil {
		return nil, fmt.Errorf("invert conditioning transform: %w", err)
	}
	tmp.Mul(hn, tw)
	out.Mul(&tiInv, &tmp)

	if s := out.At(2, 2); math.Abs(s) > 1e-12 {
		out.Scale(1/s, &out)
	}
	return &out, nil
}

// condition builds the similarity transform that centers the points on the
// origin with mean distance sqrt(2), and returns the transformed set.
func condition(pts [][2]float64) (*mat.Dense, [][2]float64) {
	var cx, cy float64
	for _, p := range pts {
		cx += p[0]
		cy += p[1]
	}
	n := float64(len(pts))
	cx /= n
	cy /= n

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p[0]-cx, p[1]-cy)
	}
	meanDist /= n
	scale := 1.0
	if meanDist > 1e-12 {
		scale = math.Sqrt2 / meanDist
	}

	t := mat.NewDense(3, 3, []float64{
		scale, 0, -scale * cx,
		0, scale, -scale * cy,
		0, 0, 1,
	})
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{scale * (p[0] - cx), scale * (p[1] - cy)}
	}
	return t, out
}

package calib

import (
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/mat"
)

// SolutionTag distinguishes the two geometrically consistent poses a single
// planar view admits.
type SolutionTag int

const (
	SolutionPrimary SolutionTag = iota
	SolutionAlternate
)

func (t SolutionTag) String() string {
	if t == SolutionAlternate {
		return "alternate"
	}
	return "primary"
}

// Solution is one candidate camera pose relative to the board-defined world
// origin.
type Solution struct {
	Tag              SolutionTag
	Rotation         [3][3]float64
	Translation      [3]float64
	ReprojectionRMSE float64
	// UpsideDown reports that the board's +y axis points against the image's
	// +y axis, meaning the board (or the camera) was mounted inverted.
	UpsideDown bool
}

// solvePlanarPose estimates both candidate poses from board-plane points and
// their undistorted normalized image observations. Solutions come back
// ordered by reprojection error, primary first.
func solvePlanarPose(object [][3]float64, image [][2]float64) ([2]Solution, error) {
	var out [2]Solution
	plane := make([][2]float64, len(object))
	for i, p := range object {
		plane[i] = [2]float64{p[0], p[1]}
	}

	h, err := estimateHomography(plane, image)
	if err != nil {
		return out, err
	}
	r1, t1, err := decomposeHomography(h)
	if err != nil {
		return out, err
	}
	r2, t2 := alternatePose(r1, t1)

	poses := [2]struct {
		r [3][3]float64
		t [3]float64
	}{{r1, t1}, {r2, t2}}
	for i, p := range poses {
		r, t, rmse, err := refinePose(p.r, p.t, object, image)
		if err != nil {
			// Fall back to the unrefined pose rather than losing a candidate.
			r, t = p.r, p.t
			rmse = reprojectionRMSE(r, t, object, image)
		}
		out[i] = Solution{
			Rotation:         r,
			Translation:      t,
			ReprojectionRMSE: rmse,
			UpsideDown:       r[1][1] > 0,
		}
	}

	if out[1].ReprojectionRMSE < out[0].ReprojectionRMSE {
		out[0], out[1] = out[1], out[0]
	}
	out[0].Tag = SolutionPrimary
	out[1].Tag = SolutionAlternate
	return out, nil
}

// decomposeHomography recovers [r1 r2 t] from a plane homography in
// normalized image coordinates, then re-orthonormalizes the rotation.
func decomposeHomography(h *mat.Dense) ([3][3]float64, [3]float64, error) {
	var rot [3][3]float64
	var trans [3]float64

	h1 := [3]float64{h.At(0, 0), h.At(1, 0), h.At(2, 0)}
	h2 := [3]float64{h.At(0, 1), h.At(1, 1), h.At(2, 1)}
	h3 := [3]float64{h.At(0, 2), h.At(1, 2), h.At(2, 2)}

	n1 := norm3(h1)
	n2 := norm3(h2)
	if n1 < 1e-12 || n2 < 1e-12 {
		return rot, trans, fmt.Errorf("degenerate homography, zero column")
	}
	lambda := 2 / (n1 + n2)
	// The board must sit in front of the camera.
	if lambda*h3[2] < 0 {
		lambda = -lambda
	}

	c1 := scale3(h1, lambda)
	c2 := scale3(h2, lambda)
	c3 := cross3(c1, c2)
	trans = scale3(h3, lambda)

	raw := mat.NewDense(3, 3, []float64{
		c1[0], c2[0], c3[0],
		c1[1], c2[1], c3[1],
		c1[2], c2[2], c3[2],
	})
	r, err := nearestRotation(raw)
	if err != nil {
		return rot, trans, err
	}
	return r, trans, nil
}

// nearestRotation projects a near-rotation matrix onto SO(3) via SVD.
func nearestRotation(m *mat.Dense) ([3][3]float64, error) {
	var out [3][3]float64
	var svd mat.SVD
	if !svd.Factorize(m, mat.SVDFull) {
		return out, fmt.Errorf("rotation SVD did not converge")
	}
	var u, v, r mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	r.Mul(&u, v.T())
	if mat.Det(&r) < 0 {
		// Flip the least-significant axis to stay a proper rotation.
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		r.Mul(&u, v.T())
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r.At(i, j)
		}
	}
	return out, nil
}

// alternatePose derives the second planar-pose candidate by reflecting the
// board normal about the line of sight to the board origin. The two poses
// explain a near-planar observation almost equally well until refinement
// separates them.
func alternatePose(r [3][3]float64, t [3]float64) ([3][3]float64, [3]float64) {
	normal := [3]float64{r[0][2], r[1][2], r[2][2]}
	tn := norm3(t)
	if tn < 1e-12 {
		return r, t
	}
	view := scale3(t, 1/tn)
	d := dot3(view, normal)
	reflected := sub3(scale3(view, 2*d), normal)

	axis := cross3(normal, reflected)
	an := norm3(axis)
	if an < 1e-12 {
		return r, t
	}
	angle := math.Atan2(an, dot3(normal, reflected))
	flip := rotationFromAxisAngle(scale3(axis, angle/an))
	return matMul3(flip, r), t
}

// refinePose minimizes reprojection error in normalized coordinates over an
// axis-angle + translation parameterization.
func refinePose(r [3][3]float64, t [3]float64, object [][3]float64, image [][2]float64) ([3][3]float64, [3]float64, float64, error) {
	var rot [3][3]float64
	aa := axisAngleFromRotation(r)
	init := []float64{aa[0], aa[1], aa[2], t[0], t[1], t[2]}

	residuals := func(dst, x []float64) {
		rr := rotationFromAxisAngle([3]float64{x[0], x[1], x[2]})
		tt := [3]float64{x[3], x[4], x[5]}
		for i, p := range object {
			cam := transform(rr, tt, p)
			if cam[2] < 1e-9 {
				dst[2*i] = 1e3
				dst[2*i+1] = 1e3
				continue
			}
			dst[2*i] = cam[0]/cam[2] - image[i][0]
			dst[2*i+1] = cam[1]/cam[2] - image[i][1]
		}
	}

	jac := lm.NumJac{Func: residuals}
	prob := lm.LMProblem{
		Dim:        6,
		Size:       2 * len(object),
		Func:       residuals,
		Jac:        jac.Jac,
		InitParams: init,
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	res, err := lm.LM(prob, &lm.Settings{Iterations: 100, ObjectiveTol: 1e-16})
	if err != nil {
		return rot, t, 0, err
	}

	rot = rotationFromAxisAngle([3]float64{res.X[0], res.X[1], res.X[2]})
	trans := [3]float64{res.X[3], res.X[4], res.X[5]}
	return rot, trans, reprojectionRMSE(rot, trans, object, image), nil
}

func reprojectionRMSE(r [3][3]float64, t [3]float64, object [][3]float64, image [][2]float64) float64 {
	var sum float64
	for i, p := range object {
		cam := transform(r, t, p)
		if cam[2] < 1e-9 {
			return math.Inf(1)
		}
		dx := cam[0]/cam[2] - image[i][0]
		dy := cam[1]/cam[2] - image[i][1]
		sum += dx*dx + dy*dy
	}
	return math.Sqrt(sum / float64(len(object)))
}

func transform(r [3][3]float64, t, p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = r[i][0]*p[0] + r[i][1]*p[1] + r[i][2]*p[2] + t[i]
	}
	return out
}

// rotationFromAxisAngle is the Rodrigues formula; the vector's magnitude is
// the angle in radians.
func rotationFromAxisAngle(v [3]float64) [3][3]float64 {
	theta := norm3(v)
	if theta < 1e-12 {
		return [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	}
	k := scale3(v, 1/theta)
	c, s := math.Cos(theta), math.Sin(theta)
	cc := 1 - c
	return [3][3]float64{
		{c + k[0]*k[0]*cc, k[0]*k[1]*cc - k[2]*s, k[0]*k[2]*cc + k[1]*s},
		{k[1]*k[0]*cc + k[2]*s, c + k[1]*k[1]*cc, k[1]*k[2]*cc - k[0]*s},
		{k[2]*k[0]*cc - k[1]*s, k[2]*k[1]*cc + k[0]*s, c + k[2]*k[2]*cc},
	}
}

// axisAngleFromRotation inverts Rodrigues, with the usual special case near
// a half turn where the skew part vanishes.
func axisAngleFromRotation(r [3][3]float64) [3]float64 {
	trace := r[0][0] + r[1][1] + r[2][2]
	cosTheta := math.Max(-1, math.Min(1, (trace-1)/2))
	theta := math.Acos(cosTheta)
	if theta < 1e-9 {
		return [3]float64{}
	}
	if math.Pi-theta > 1e-6 {
		s := 2 * math.Sin(theta)
		return scale3([3]float64{
			r[2][1] - r[1][2],
			r[0][2] - r[2][0],
			r[1][0] - r[0][1],
		}, theta/s)
	}

	// Near pi: recover the axis from the symmetric part.
	axis := [3]float64{
		math.Sqrt(math.Max(0, (r[0][0]+1)/2)),
		math.Sqrt(math.Max(0, (r[1][1]+1)/2)),
		math.Sqrt(math.Max(0, (r[2][2]+1)/2)),
	}
	// Fix relative signs from the off-diagonal sums.
	if axis[0] >= axis[1] && axis[0] >= axis[2] {
		if r[0][1]+r[1][0] < 0 {
			axis[1] = -axis[1]
		}
		if r[0][2]+r[2][0] < 0 {
			axis[2] = -axis[2]
		}
	} else if axis[1] >= axis[2] {
		if r[0][1]+r[1][0] < 0 {
			axis[0] = -axis[0]
		}
		if r[1][2]+r[2][1] < 0 {
			axis[2] = -axis[2]
		}
	} else {
		if r[0][2]+r[2][0] < 0 {
			axis[0] = -axis[0]
		}
		if r[1][2]+r[2][1] < 0 {
			axis[1] = -axis[1]
		}
	}
	n := norm3(axis)
	if n < 1e-12 {
		return [3]float64{theta, 0, 0}
	}
	return scale3(axis, theta/n)
}

func norm3(v [3]float64) float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

func dot3(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func scale3(v [3]float64, s float64) [3]float64 {
	return [3]float64{v[0] * s, v[1] * s, v[2] * s}
}

func sub3(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross3(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func matMul3(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

package camera

import (
	"fmt"
	"math"
)

// Intrinsics are a camera's internal optical parameters. The matrix follows
// the usual pinhole layout (fx, 0, cx / 0, fy, cy / 0, 0, 1) and distortion
// is the radial-tangential model (k1, k2, p1, p2, k3).
type Intrinsics struct {
	Matrix     [3][3]float64 `json:"matrix"`
	Distortion [5]float64    `json:"distortion"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
}

// Extrinsics place the camera relative to the checkerboard-defined world
// origin.
type Extrinsics struct {
	Rotation    [3][3]float64 `json:"rotation"`
	Translation [3]float64    `json:"translation"`
	// UpsideDown records that the camera was mounted inverted relative to
	// the expected gravity-referenced layout; the rotation mapper compounds
	// it into the placement preset.
	UpsideDown bool `json:"upside_down"`
}

// Parameters are the complete calibration state for one camera.
type Parameters struct {
	Name string `json:"name"`
	Intrinsics
	Extrinsics
	// OrientationDegrees is the video rotation metadata (0, 90, 180, 270)
	// the intrinsics have been corrected for.
	OrientationDegrees int `json:"orientation_degrees"`
}

// Fx, Fy, Cx, Cy expose the pinhole terms.
func (in Intrinsics) Fx() float64 { return in.Matrix[0][0] }
func (in Intrinsics) Fy() float64 { return in.Matrix[1][1] }
func (in Intrinsics) Cx() float64 { return in.Matrix[0][2] }
func (in Intrinsics) Cy() float64 { return in.Matrix[1][2] }

// RotateForOrientation corrects intrinsics for video rotation metadata.
// A recording rotated by the device carries pixels in the rotated frame, so
// the undistortion model must follow; skipping this invalidates pose
// solving on portrait footage.
func (in Intrinsics) RotateForOrientation(degrees int) (Intrinsics, error) {
	out := in
	w := float64(in.Width)
	h := float64(in.Height)
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return out, nil
	case 90:
		out.Width, out.Height = in.Height, in.Width
		out.Matrix[0][0], out.Matrix[1][1] = in.Fy(), in.Fx()
		out.Matrix[0][2] = h - 1 - in.Cy()
		out.Matrix[1][2] = in.Cx()
	case 180:
		out.Matrix[0][2] = w - 1 - in.Cx()
		out.Matrix[1][2] = h - 1 - in.Cy()
	case 270:
		out.Width, out.Height = in.Height, in.Width
		out.Matrix[0][0], out.Matrix[1][1] = in.Fy(), in.Fx()
		out.Matrix[0][2] = in.Cy()
		out.Matrix[1][2] = w - 1 - in.Cx()
	default:
		return out, fmt.Errorf("unsupported video orientation %d degrees", degrees)
	}
	return out, nil
}

// Normalize maps a distorted pixel observation to undistorted normalized
// image coordinates by iteratively inverting the distortion model.
func (in Intrinsics) Normalize(u, v float64) (float64, float64) {
	xd := (u - in.Cx()) / in.Fx()
	yd := (v - in.Cy()) / in.Fy()
	k1, k2, p1, p2, k3 := in.Distortion[0], in.Distortion[1], in.Distortion[2], in.Distortion[3], in.Distortion[4]

	x, y := xd, yd
	for i := 0; i < 8; i++ {
		r2 := x*x + y*y
		radial := 1 + r2*(k1+r2*(k2+r2*k3))
		dx := 2*p1*x*y + p2*(r2+2*x*x)
		dy := p1*(r2+2*y*y) + 2*p2*x*y
		x = (xd - dx) / radial
		y = (yd - dy) / radial
	}
	return x, y
}

// Distort applies the distortion model to normalized coordinates and maps
// them to pixels.
func (in Intrinsics) Distort(x, y float64) (float64, float64) {
	k1, k2, p1, p2, k3 := in.Distortion[0], in.Distortion[1], in.Distortion[2], in.Distortion[3], in.Distortion[4]
	r2 := x*x + y*y
	radial := 1 + r2*(k1+r2*(k2+r2*k3))
	xd := x*radial + 2*p1*x*y + p2*(r2+2*x*x)
	yd := y*radial + p1*(r2+2*y*y) + 2*p2*x*y
	return in.Fx()*xd + in.Cx(), in.Fy()*yd + in.Cy()
}

// WorldToCamera transforms a world point into camera coordinates.
func (e Extrinsics) WorldToCamera(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = e.Rotation[i][0]*p[0] + e.Rotation[i][1]*p[1] + e.Rotation[i][2]*p[2] + e.Translation[i]
	}
	return out
}

// Center returns the camera center in world coordinates (-Rᵀt).
func (e Extrinsics) Center() [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = -(e.Rotation[0][i]*e.Translation[0] +
			e.Rotation[1][i]*e.Translation[1] +
			e.Rotation[2][i]*e.Translation[2])
	}
	return out
}

// Project maps a world point to the distorted pixel observation this camera
// would report, or ok=false when the point is behind the camera.
func (p *Parameters) Project(world [3]float64) (u, v float64, ok bool) {
	cam := p.WorldToCamera(world)
	if cam[2] <= 1e-9 {
		return 0, 0, false
	}
	u, v = p.Distort(cam[0]/cam[2], cam[1]/cam[2])
	return u, v, true
}

// Validate rejects parameter sets that cannot drive reconstruction.
func (p *Parameters) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("camera parameters missing name")
	}
	if p.Fx() <= 0 || p.Fy() <= 0 {
		return fmt.Errorf("camera %s: focal lengths must be positive", p.Name)
	}
	det := rotationDeterminant(p.Rotation)
	if math.Abs(det-1) > 1e-3 {
		return fmt.Errorf("camera %s: rotation determinant %.4f, want 1", p.Name, det)
	}
	return nil
}

func rotationDeterminant(r [3][3]float64) float64 {
	return r[0][0]*(r[1][1]*r[2][2]-r[1][2]*r[2][1]) -
		r[0][1]*(r[1][0]*r[2][2]-r[1][2]*r[2][0]) +
		r[0][2]*(r[1][0]*r[2][1]-r[1][1]*r[2][0])
}

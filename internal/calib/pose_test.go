package calib

import (
	"math"
	"testing"
)

func rotationDistance(a, b [3][3]float64) float64 {
	var sum float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := a[i][j] - b[i][j]
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}

func projectNormalized(r [3][3]float64, t [3]float64, object [][3]float64) [][2]float64 {
	out := make([][2]float64, len(object))
	for i, p := range object {
		cam := transform(r, t, p)
		out[i] = [2]float64{cam[0] / cam[2], cam[1] / cam[2]}
	}
	return out
}

func TestSolvePlanarPoseRecoversPose(t *testing.T) {
	board := Board{Cols: 5, Rows: 4, SquareSize: 0.06}
	object := board.ObjectPoints()

	wantR := rotationFromAxisAngle([3]float64{0.1, -0.25, 0.05})
	wantT := [3]float64{0.05, -0.1, 2.0}
	image := projectNormalized(wantR, wantT, object)

	solutions, err := solvePlanarPose(object, image)
	if err != nil {
		t.Fatalf("solvePlanarPose: %v", err)
	}

	primary := solutions[0]
	if primary.Tag != SolutionPrimary {
		t.Fatalf("first solution tagged %v, want primary", primary.Tag)
	}
	if primary.ReprojectionRMSE > 1e-8 {
		t.Fatalf("noiseless primary RMSE %v, want ~0", primary.ReprojectionRMSE)
	}
	if d := rotationDistance(primary.Rotation, wantR); d > 1e-5 {
		t.Fatalf("rotation off by %v:\ngot %v\nwant %v", d, primary.Rotation, wantR)
	}
	for i := range wantT {
		if math.Abs(primary.Translation[i]-wantT[i]) > 1e-5 {
			t.Fatalf("translation %v, want %v", primary.Translation, wantT)
		}
	}
	if solutions[1].ReprojectionRMSE < primary.ReprojectionRMSE {
		t.Fatal("solutions not ordered by reprojection error")
	}
	if solutions[1].Tag != SolutionAlternate {
		t.Fatalf("second solution tagged %v, want alternate", solutions[1].Tag)
	}
}

func TestSolvePlanarPoseUpsideDownFlag(t *testing.T) {
	board := Board{Cols: 5, Rows: 4, SquareSize: 0.06}
	object := board.ObjectPoints()

	// Identity rotation keeps the board's +y aligned with image +y.
	rightWayUp := rotationFromAxisAngle([3]float64{0, 0, math.Pi})
	inverted := [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

	for _, tc := range []struct {
		r    [3][3]float64
		want bool
	}{
		{rightWayUp, false},
		{inverted, true},
	} {
		image := projectNormalized(tc.r, [3]float64{0.3, 0.2, 2.0}, object)
		solutions, err := solvePlanarPose(object, image)
		if err != nil {
			t.Fatalf("solvePlanarPose: %v", err)
		}
		if solutions[0].UpsideDown != tc.want {
			t.Errorf("upside-down = %v for rotation %v, want %v", solutions[0].UpsideDown, tc.r, tc.want)
		}
	}
}

func TestAxisAngleRoundTrip(t *testing.T) {
	cases := [][3]float64{
		{0, 0, 0},
		{0.3, -0.2, 0.9},
		{0, 1.5, 0},
		// Near a half turn, where the skew-part formula degenerates.
		{3.14, 0.05, -0.02},
		{0, 0, math.Pi},
	}
	for _, aa := range cases {
		r := rotationFromAxisAngle(aa)
		back := rotationFromAxisAngle(axisAngleFromRotation(r))
		if d := rotationDistance(r, back); d > 1e-6 {
			t.Errorf("axis-angle %v: round-trip rotation distance %v", aa, d)
		}
	}
}

func TestEstimateHomographyExact(t *testing.T) {
	h := [3][3]float64{
		{1.2, 0.1, -0.3},
		{-0.05, 0.9, 0.2},
		{0.01, -0.02, 1},
	}
	var world, image [][2]float64
	for _, p := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0.5, 0.25}, {0.2, 0.8}} {
		world = append(world, p)
		w := h[2][0]*p[0] + h[2][1]*p[1] + h[2][2]
		image = append(image, [2]float64{
			(h[0][0]*p[0] + h[0][1]*p[1] + h[0][2]) / w,
			(h[1][0]*p[0] + h[1][1]*p[1] + h[1][2]) / w,
		})
	}

	got, err := estimateHomography(world, image)
	if err != nil {
		t.Fatalf("estimateHomography: %v", err)
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(got.At(i, j)-h[i][j]) > 1e-8 {
				t.Fatalf("H[%d][%d] = %v, want %v", i, j, got.At(i, j), h[i][j])
			}
		}
	}
}

func TestEstimateHomographyRejectsTooFewPoints(t *testing.T) {
	pts := [][2]float64{{0, 0}, {1, 0}, {0, 1}}
	if _, err := estimateHomography(pts, pts); err == nil {
		t.Fatal("three correspondences must be rejected")
	}
}

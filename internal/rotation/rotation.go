// Package rotation reorients reconstructed trajectories from the
// checkerboard-defined world frame into the canonical lab frame. The board
// placement preset declared in session metadata selects a fixed rotation
// sequence; there is no auto-detection beyond the upside-down flag resolved
// during calibration.
package rotation

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"mocap/internal/recon"
	"mocap/internal/triangulate"
)

// Placement names where the checkerboard was mounted during calibration.
const (
	PlacementGround          = "ground"
	PlacementGroundJumps     = "ground_jumps"
	PlacementGroundGaits     = "ground_gaits"
	PlacementBackWall        = "backWall"
	PlacementBackWallLargeCB = "backWall_largeCB"
	PlacementBackWallWalking = "backWall_walking"
)

// step is one space-fixed rotation, applied in sequence order.
type step struct {
	axis    r3.Vec
	degrees float64
}

var (
	axisX = r3.Vec{X: 1}
	axisY = r3.Vec{Y: 1}
	axisZ = r3.Vec{Z: 1}
)

// Mapper applies a placement preset's rotation sequence to 3D points.
type Mapper struct {
	placement string
	rotations []r3.Rotation
}

// ForPlacement resolves a placement preset and the calibration-time
// upside-down flag into a mapper. Unknown presets fail fast; silently
// defaulting would write trajectories in the wrong frame.
func ForPlacement(placement string, upsideDown bool) (*Mapper, error) {
	var steps []step
	switch placement {
	case PlacementBackWall:
		if upsideDown {
			steps = []step{{axisY, -90}}
		} else {
			steps = []step{{axisY, 90}, {axisZ, 180}}
		}
	case PlacementBackWallLargeCB:
		steps = []step{{axisY, -90}}
	case PlacementBackWallWalking:
		// Body-fixed Y then Z: equivalent to space-fixed Z first, then Y.
		steps = []step{{axisZ, 180}, {axisY, -90}}
	case PlacementGround:
		steps = []step{{axisX, -90}, {axisY, 90}}
	case PlacementGroundJumps:
		steps = []step{{axisX, 90}, {axisY, 180}}
	case PlacementGroundGaits:
		steps = []step{{axisX, 90}, {axisY, 90}}
	default:
		return nil, recon.Newf(recon.KindUnknownPlacement,
			"checkerboard placement %q is not supported; expected one of %s",
			placement, strings.Join(Placements(), ", "))
	}

	m := &Mapper{placement: placement}
	for _, s := range steps {
		m.rotations = append(m.rotations, r3.NewRotation(s.degrees*math.Pi/180, s.axis))
	}
	return m, nil
}

// Placements lists the supported presets, sorted.
func Placements() []string {
	names := []string{
		PlacementGround,
		PlacementGroundJumps,
		PlacementGroundGaits,
		PlacementBackWall,
		PlacementBackWallLargeCB,
		PlacementBackWallWalking,
	}
	sort.Strings(names)
	return names
}

// Placement returns the preset this mapper was built from.
func (m *Mapper) Placement() string { return m.placement }

// Point rotates a single world point into the lab frame.
func (m *Mapper) Point(p [3]float64) [3]float64 {
	v := r3.Vec{X: p[0], Y: p[1], Z: p[2]}
	for _, r := range m.rotations {
		v = r.Rotate(v)
	}
	return [3]float64{v.X, v.Y, v.Z}
}

// Apply rotates every valid point of every trajectory in place. Missing
// points carry no position and are left untouched.
func (m *Mapper) Apply(res *triangulate.Result) {
	for _, traj := range res.Trajectories {
		for i := range traj {
			if !traj[i].Valid {
				continue
			}
			p := m.Point([3]float64{traj[i].X, traj[i].Y, traj[i].Z})
			traj[i].X, traj[i].Y, traj[i].Z = p[0], p[1], p[2]
		}
	}
}

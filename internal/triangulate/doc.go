// Package triangulate fuses synchronized, confidence-weighted 2D keypoint
// observations from multiple calibrated cameras into 3D marker trajectories.
// Each point solves an overdetermined least-squares system over the
// qualifying cameras' back-projection constraints; short missing runs are
// bridged with cubic splines, long runs stay explicitly missing. It also
// scores alternative calibration hypotheses by triangulation consistency.
package triangulate

// Package calib computes camera extrinsics from checkerboard videos. Corner
// detection is delegated to a CornerSource; the pose itself is solved from a
// plane-to-image homography, refined by Levenberg-Marquardt, and reported as
// two candidate solutions because a single planar view is geometrically
// ambiguous.
package calib

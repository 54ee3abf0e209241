// Package timesync filters per-camera 2D keypoint streams and aligns them
// onto a common timeline. Alignment is geometry-free: it cross-correlates a
// confidence-weighted keypoint motion signal between cameras, so it needs no
// camera parameters.
package timesync

// Package pose models the per-camera 2D keypoint streams produced by the
// external pose detector and reads its JSON output. The pipeline consumes
// these streams read-only.
package pose

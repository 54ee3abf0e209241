// Package camera holds per-camera intrinsic and extrinsic parameters, the
// device-model intrinsics registry, the per-camera extrinsics cache, and the
// session-wide parameter store. Intrinsics are immutable once loaded;
// extrinsics are session-scoped and cached under the camera directory so a
// retry never recomputes them.
package camera

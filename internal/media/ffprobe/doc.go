// Package ffprobe shells out to the ffprobe binary to read the video
// metadata the pipeline needs before decoding: frame rate, resolution, and
// the rotation tag smartphones write into portrait recordings.
package ffprobe

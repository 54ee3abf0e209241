package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int        `json:"index"`
	CodecType    string     `json:"codec_type"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	RFrameRate   string     `json:"r_frame_rate"`
	AvgFrameRate string     `json:"avg_frame_rate"`
	NBFrames     string     `json:"nb_frames"`
	Tags         Tags       `json:"tags"`
	SideDataList []SideData `json:"side_data_list"`
}

// Tags carries per-stream container tags.
type Tags struct {
	Rotate string `json:"rotate"`
}

// SideData carries stream side data; display matrix rotation lives here on
// newer containers.
type SideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

// Format captures container-level metadata.
type Format struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON
// response.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner",
		"-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return Parse(output)
}

// Parse decodes raw ffprobe JSON.
func Parse(output []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream, or ok=false when the
// container has none.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// FrameRate returns the video frame rate in frames per second, preferring
// the average rate when both are present.
func (r Result) FrameRate() float64 {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	if rate := parseRatio(stream.AvgFrameRate); rate > 0 {
		return rate
	}
	return parseRatio(stream.RFrameRate)
}

// RotationDegrees returns the recording rotation normalized to one of
// 0, 90, 180, 270. Both the legacy rotate tag and the display matrix side
// data are honored.
func (r Result) RotationDegrees() int {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	if deg, err := strconv.Atoi(strings.TrimSpace(stream.Tags.Rotate)); err == nil {
		return normalizeDegrees(deg)
	}
	for _, side := range stream.SideDataList {
		if strings.EqualFold(side.SideDataType, "Display Matrix") {
			// The display matrix reports counter-clockwise rotation.
			return normalizeDegrees(-int(side.Rotation))
		}
	}
	return 0
}

// Resolution returns the stored (pre-rotation) video dimensions.
func (r Result) Resolution() (width, height int) {
	stream, ok := r.VideoStream()
	if !ok {
		return 0, 0
	}
	return stream.Width, stream.Height
}

// DurationSeconds returns the container duration in seconds, or 0 when
// unavailable.
func (r Result) DurationSeconds() float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseRatio(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" || value == "0/0" {
		return 0
	}
	num, den, found := strings.Cut(value, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

func normalizeDegrees(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	switch deg {
	case 0, 90, 180, 270:
		return deg
	default:
		return 0
	}
}

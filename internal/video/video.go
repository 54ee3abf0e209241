// Package video is the OpenCV-backed frame access layer: checkerboard
// corner detection for calibration and diagnostic stills. All gocv handles
// stay inside this package.
package video

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"mocap/internal/calib"
	"mocap/internal/logging"
	"mocap/internal/recon"
)

// Source decodes calibration videos and detects checkerboard corners. It
// implements calib.CornerSource.
type Source struct {
	logger *slog.Logger
	// DiagnosticsDir, when set, receives a corner-overlay image per
	// successful detection.
	DiagnosticsDir string
}

// NewSource returns a video-backed corner source.
func NewSource(logger *slog.Logger) *Source {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Source{logger: logging.WithComponent(logger, "video")}
}

// DetectCorners samples frames across the video and returns the first
// complete corner grid. The frame is upsampled before detection; distant
// boards cover too few pixels at native resolution. Corners are reported in
// native pixel coordinates.
func (s *Source) DetectCorners(ctx context.Context, videoPath string, board calib.Board, opts calib.DetectOptions) (calib.Detection, error) {
	vc, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return calib.Detection{}, recon.Wrap(recon.KindExternal,
			"The calibration video could not be opened.",
			fmt.Sprintf("open %s: %v", videoPath, err), err)
	}
	defer vc.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	for _, index := range sampleIndexes(int(vc.Get(gocv.VideoCaptureFrameCount)), opts.Samples) {
		if err := ctx.Err(); err != nil {
			return calib.Detection{}, err
		}
		vc.Set(gocv.VideoCapturePosFrames, float64(index))
		if !vc.Read(&frame) || frame.Empty() {
			continue
		}
		corners, ok := s.detectInFrame(frame, videoPath, board, opts.UpsampleFactor)
		if !ok {
			continue
		}
		s.logger.Debug("checkerboard detected", "video", videoPath, "frame", index)
		return calib.Detection{Corners: corners, FrameIndex: index}, nil
	}

	return calib.Detection{}, recon.Newf(recon.KindNoCheckerboard,
		"The checkerboard was not detected in %s. Make sure the full board is visible from every camera and re-record the calibration video.",
		filepath.Base(videoPath))
}

// detectInFrame runs grayscale conversion, upsampling, corner detection,
// and subpixel refinement on one frame.
func (s *Source) detectInFrame(frame gocv.Mat, videoPath string, board calib.Board, upsample int) ([][2]float64, bool) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)

	scale := float64(upsample)
	if upsample > 1 {
		big := gocv.NewMat()
		gocv.Resize(gray, &big, image.Point{}, scale, scale, gocv.InterpolationCubic)
		gray.Close()
		gray = big
	} else {
		scale = 1
	}

	pattern := image.Pt(board.Cols, board.Rows)
	found := gocv.NewMat()
	defer found.Close()
	if !gocv.FindChessboardCorners(gray, pattern, &found,
		gocv.CalibCBAdaptiveThresh|gocv.CalibCBNormalizeImage|gocv.CalibCBFastCheck) {
		return nil, false
	}
	if found.Rows() != board.Corners() {
		return nil, false
	}

	criteria := gocv.NewTermCriteria(gocv.Count+gocv.EPS, 30, 0.001)
	gocv.CornerSubPix(gray, &found, image.Pt(11, 11), image.Pt(-1, -1), criteria)

	if s.DiagnosticsDir != "" {
		s.saveOverlay(frame, pattern, found, videoPath)
	}

	corners := make([][2]float64, found.Rows())
	for i := range corners {
		vec := found.GetVecfAt(i, 0)
		corners[i] = [2]float64{float64(vec[0]) / scale, float64(vec[1]) / scale}
	}
	return corners, true
}

// saveOverlay writes the detected grid drawn onto the original frame; the
// overlay is the fastest way to spot a board detected in the wrong order.
func (s *Source) saveOverlay(frame gocv.Mat, pattern image.Point, corners gocv.Mat, videoPath string) {
	if err := os.MkdirAll(s.DiagnosticsDir, 0o755); err != nil {
		s.logger.Warn("diagnostics directory", "error", err)
		return
	}
	overlay := frame.Clone()
	defer overlay.Close()
	gocv.DrawChessboardCorners(&overlay, pattern, corners, true)

	base := filepath.Base(videoPath)
	out := filepath.Join(s.DiagnosticsDir, base[:len(base)-len(filepath.Ext(base))]+"_corners.png")
	if !gocv.IMWrite(out, overlay) {
		s.logger.Warn("could not write corner overlay", "path", out)
	}
}

// SaveStill extracts one frame to an image file; the pipeline uses it for
// neutral-pose reference stills.
func SaveStill(videoPath string, frameIndex int, outPath string) error {
	vc, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", videoPath, err)
	}
	defer vc.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	vc.Set(gocv.VideoCapturePosFrames, float64(frameIndex))
	if !vc.Read(&frame) || frame.Empty() {
		return fmt.Errorf("no frame %d in %s", frameIndex, videoPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	if !gocv.IMWrite(outPath, frame) {
		return fmt.Errorf("write still %s", outPath)
	}
	return nil
}

// sampleIndexes spreads up to n probe positions across the video. When the
// container does not report a frame count, probe the first stretch
// sequentially instead.
func sampleIndexes(total, n int) []int {
	if n <= 0 {
		n = 30
	}
	if total <= 0 {
		total = 300
	}
	if n > total {
		n = total
	}
	out := make([]int, 0, n)
	step := float64(total) / float64(n)
	for i := 0; i < n; i++ {
		out = append(out, int(step*float64(i)))
	}
	return out
}

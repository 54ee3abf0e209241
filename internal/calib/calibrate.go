package calib

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"mocap/internal/camera"
	"mocap/internal/logging"
	"mocap/internal/recon"
)

// Detection is one frame's detected corner grid, in pixel coordinates and
// row-major board order.
type Detection struct {
	Corners    [][2]float64
	FrameIndex int
}

// DetectOptions tunes corner detection.
type DetectOptions struct {
	// Samples is how many frames to probe across the video.
	Samples int
	// UpsampleFactor enlarges frames before detection; small boards at a
	// distance are otherwise missed.
	UpsampleFactor int
}

// CornerSource finds checkerboard corners in a calibration video. The
// production implementation decodes video frames; tests substitute synthetic
// detections.
type CornerSource interface {
	DetectCorners(ctx context.Context, videoPath string, board Board, opts DetectOptions) (Detection, error)
}

// Request is one camera's calibration job.
type Request struct {
	Camera             string
	VideoPath          string
	CameraDir          string
	Intrinsics         camera.Intrinsics
	OrientationDegrees int
	// UseAlternate selects the alternate pose candidate for this camera, the
	// per-camera override recorded in session metadata.
	UseAlternate bool
}

// Options configures the calibrator.
type Options struct {
	Samples        int
	UpsampleFactor int
}

func (o Options) detect() DetectOptions {
	d := DetectOptions{Samples: o.Samples, UpsampleFactor: o.UpsampleFactor}
	if d.Samples <= 0 {
		d.Samples = 30
	}
	if d.UpsampleFactor <= 0 {
		d.UpsampleFactor = 4
	}
	return d
}

// Calibrator computes extrinsics for a session's cameras against one board.
type Calibrator struct {
	src    CornerSource
	board  Board
	opts   DetectOptions
	logger *slog.Logger
}

// New builds a calibrator. The board geometry is validated once here.
func New(src CornerSource, board Board, opts Options, logger *slog.Logger) (*Calibrator, error) {
	if err := board.Validate(); err != nil {
		return nil, recon.Wrap(recon.KindConfiguration,
			"The checkerboard description in the session metadata is invalid.",
			err.Error(), err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Calibrator{
		src:    src,
		board:  board,
		opts:   opts.detect(),
		logger: logging.WithComponent(logger, "calib"),
	}, nil
}

// Calibrate produces extrinsics for one camera, or returns the cached entry
// unchanged when one exists. On a fresh solve both pose candidates come back
// alongside the chosen parameters.
func (c *Calibrator) Calibrate(ctx context.Context, req Request) (*camera.Parameters, []Solution, error) {
	log := c.logger.With(logging.FieldCamera, req.Camera)

	if cached, ok, err := camera.LoadCached(req.CameraDir); err != nil {
		return nil, nil, err
	} else if ok {
		log.Debug("extrinsics cache hit", "dir", req.CameraDir)
		return cached, nil, nil
	}

	intr, err := req.Intrinsics.RotateForOrientation(req.OrientationDegrees)
	if err != nil {
		return nil, nil, recon.Wrap(recon.KindConfiguration,
			fmt.Sprintf("Video orientation for camera %s is not supported.", req.Camera),
			err.Error(), err)
	}

	det, err := c.src.DetectCorners(ctx, req.VideoPath, c.board, c.opts)
	if err != nil {
		return nil, nil, err
	}
	if len(det.Corners) != c.board.Corners() {
		return nil, nil, recon.Newf(recon.KindExternal,
			"detector returned %d corners for a %dx%d board", len(det.Corners), c.board.Cols, c.board.Rows)
	}

	image := make([][2]float64, len(det.Corners))
	for i, p := range det.Corners {
		x, y := intr.Normalize(p[0], p[1])
		image[i] = [2]float64{x, y}
	}

	solutions, err := solvePlanarPose(c.board.ObjectPoints(), image)
	if err != nil {
		return nil, nil, recon.Wrap(recon.KindExternal,
			fmt.Sprintf("Calibration failed for camera %s. Verify the checkerboard video and try again.", req.Camera),
			err.Error(), err)
	}
	chosen := solutions[0]
	if req.UseAlternate {
		chosen = solutions[1]
	}
	log.Info("extrinsics solved",
		"frame", det.FrameIndex,
		"chosen", chosen.Tag.String(),
		"rmse_primary", solutions[0].ReprojectionRMSE,
		"rmse_alternate", solutions[1].ReprojectionRMSE,
		"upside_down", chosen.UpsideDown)

	params := &camera.Parameters{
		Name:       req.Camera,
		Intrinsics: intr,
		Extrinsics: camera.Extrinsics{
			Rotation:    chosen.Rotation,
			Translation: chosen.Translation,
			UpsideDown:  chosen.UpsideDown,
		},
		OrientationDegrees: req.OrientationDegrees,
	}
	if err := camera.SaveCached(req.CameraDir, params); err != nil {
		return nil, nil, err
	}
	return params, solutions[:], nil
}

// CalibrateAll fans out one goroutine per camera and joins before merging
// into the store, so the store never holds a partial session. Any camera
// failing fails the whole calibration; every camera is mandatory. The
// returned map carries both pose candidates per freshly solved camera;
// cache hits have no entry.
func (c *Calibrator) CalibrateAll(ctx context.Context, reqs []Request, store *camera.Store) (map[string][]Solution, error) {
	type outcome struct {
		camera    string
		params    *camera.Parameters
		solutions []Solution
		err       error
	}

	results := make(chan outcome, len(reqs))
	var wg sync.WaitGroup
	for _, req := range reqs {
		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			params, solutions, err := c.Calibrate(ctx, req)
			results <- outcome{camera: req.Camera, params: params, solutions: solutions, err: err}
		}(req)
	}
	wg.Wait()
	close(results)

	params := make(map[string]*camera.Parameters, len(reqs))
	solutions := make(map[string][]Solution)
	var failures []outcome
	for out := range results {
		if out.err != nil {
			failures = append(failures, out)
			continue
		}
		params[out.camera] = out.params
		if out.solutions != nil {
			solutions[out.camera] = out.solutions
		}
	}
	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].camera < failures[j].camera })
		return nil, failures[0].err
	}
	if err := store.Merge(params); err != nil {
		return nil, err
	}
	return solutions, nil
}

// SessionUpsideDown aggregates the per-camera upside-down flags into the
// session-level decision the placement mapping consumes. Cameras vote;
// a majority of inverted views marks the whole rig inverted.
func SessionUpsideDown(params map[string]*camera.Parameters) bool {
	inverted := 0
	for _, p := range params {
		if p.UpsideDown {
			inverted++
		}
	}
	return inverted*2 > len(params)
}

// Package pipeline runs one trial through the reconstruction stages:
// calibrate, synchronize, select, triangulate, export. Any stage error
// fails the whole trial; cached extrinsics survive a retry.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"mocap/internal/calib"
	"mocap/internal/camera"
	"mocap/internal/config"
	"mocap/internal/logging"
	"mocap/internal/media/ffprobe"
	"mocap/internal/pose"
	"mocap/internal/recon"
	"mocap/internal/rotation"
	"mocap/internal/session"
	"mocap/internal/timesync"
	"mocap/internal/triangulate"
)

// Trial is the in-flight state threaded through the stages.
type Trial struct {
	// ID is the queue-minted UUID; it names the exported trajectory file.
	ID         string
	Session    string
	Name       string
	Activity   string
	SessionDir string

	Metadata *session.Metadata
	Board    calib.Board
	Cameras  *camera.Store
	// Solutions holds both pose candidates per freshly calibrated camera;
	// cameras restored from cache have no entry.
	Solutions map[string][]calib.Solution
	// UpsideDown is the session-level board orientation vote.
	UpsideDown bool

	Rate    float64
	Streams map[string]*pose.Stream
	Synced  *timesync.StreamSet
	Result  *triangulate.Result

	OutputPath string

	requests []calib.Request
	mapper   *rotation.Mapper
}

// Stage is the contract each pipeline step implements. Prepare loads and
// validates inputs; Execute does the work.
type Stage interface {
	Name() string
	Prepare(ctx context.Context, trial *Trial) error
	Execute(ctx context.Context, trial *Trial) error
}

// ProbeFunc resolves a video's frame rate and rotation metadata.
type ProbeFunc func(ctx context.Context, path string) (rate float64, rotationDegrees int, err error)

// StillFunc extracts one frame of a video to an image file.
type StillFunc func(videoPath string, frameIndex int, outPath string) error

// Options wires the pipeline's external collaborators. Corners is
// mandatory; Probe defaults to ffprobe; Stills may be nil to skip
// neutral-pose images.
type Options struct {
	Corners calib.CornerSource
	Probe   ProbeFunc
	Stills  StillFunc
}

// Runner executes the stage sequence for one trial at a time.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	stages []Stage
}

// NewRunner assembles the standard stage sequence.
func NewRunner(cfg *config.Config, opts Options, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	probe := opts.Probe
	if probe == nil {
		probe = func(ctx context.Context, path string) (float64, int, error) {
			result, err := ffprobe.Inspect(ctx, cfg.Tools.FFprobe, path)
			if err != nil {
				return 0, 0, err
			}
			return result.FrameRate(), result.RotationDegrees(), nil
		}
	}
	logger = logging.WithComponent(logger, "pipeline")
	return &Runner{
		cfg:    cfg,
		logger: logger,
		stages: []Stage{
			&calibrateStage{cfg: cfg, corners: opts.Corners, probe: probe, logger: logger},
			&synchronizeStage{cfg: cfg},
			&selectStage{cfg: cfg, logger: logger},
			&triangulateStage{cfg: cfg},
			&exportStage{cfg: cfg, stills: opts.Stills, logger: logger},
		},
	}
}

// Run drives the trial through every stage. The first stage error aborts
// the run and is returned with its payload intact.
func (r *Runner) Run(ctx context.Context, trial *Trial) error {
	if trial.Cameras == nil {
		trial.Cameras = camera.NewStore()
	}
	ctx = recon.WithTrialID(ctx, trial.ID)

	log := r.logger.With(
		logging.FieldTrialID, trial.ID,
		"session", trial.Session,
		"trial", trial.Name,
	)
	for _, stage := range r.stages {
		if err := r.runStage(ctx, log, stage, trial); err != nil {
			return err
		}
	}
	return nil
}

// Calibrate runs only the calibration stage, for resolving extrinsics
// ahead of the first trial.
func (r *Runner) Calibrate(ctx context.Context, trial *Trial) error {
	if trial.Cameras == nil {
		trial.Cameras = camera.NewStore()
	}
	ctx = recon.WithTrialID(ctx, trial.ID)
	log := r.logger.With("session", trial.Session)
	return r.runStage(ctx, log, r.stages[0], trial)
}

func (r *Runner) runStage(ctx context.Context, log *slog.Logger, stage Stage, trial *Trial) error {
	ctx = recon.WithStage(ctx, stage.Name())
	stageLog := log.With(logging.FieldStage, stage.Name())
	start := time.Now()
	stageLog.Info("stage started")

	if err := stage.Prepare(ctx, trial); err != nil {
		stageLog.Error("stage preparation failed", "error", err)
		return err
	}
	if err := stage.Execute(ctx, trial); err != nil {
		stageLog.Error("stage failed", "error", err)
		return err
	}
	stageLog.Info("stage finished", "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

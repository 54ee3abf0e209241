package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"mocap/internal/calib"
	"mocap/internal/camera"
	"mocap/internal/config"
	"mocap/internal/logging"
	"mocap/internal/pose"
	"mocap/internal/recon"
	"mocap/internal/rotation"
	"mocap/internal/session"
	"mocap/internal/timesync"
	"mocap/internal/trc"
	"mocap/internal/triangulate"
)

// calibrateStage resolves camera extrinsics for the session. Cameras with a
// cache entry are restored; the rest are solved from the calibration video.
type calibrateStage struct {
	cfg     *config.Config
	corners calib.CornerSource
	probe   ProbeFunc
	logger  *slog.Logger
}

func (s *calibrateStage) Name() string { return "calibrate" }

// Prepare loads session metadata and assembles one calibration request per
// declared camera: intrinsics profile, calibration video, and the video's
// rotation metadata.
func (s *calibrateStage) Prepare(ctx context.Context, trial *Trial) error {
	meta, err := session.LoadMetadata(trial.SessionDir)
	if err != nil {
		return err
	}
	trial.Metadata = meta
	trial.Board = meta.Board()

	registry := camera.NewRegistry(s.cfg.Paths.IntrinsicsDir)
	trial.requests = trial.requests[:0]
	for _, name := range meta.Cameras() {
		intr, err := registry.Lookup(meta.CameraModel[name])
		if err != nil {
			return err
		}
		videoPath, err := session.TrialVideo(trial.SessionDir, name, session.CalibrationTrialName)
		if err != nil {
			return err
		}
		_, degrees, err := s.probe(ctx, videoPath)
		if err != nil {
			return recon.Wrap(recon.KindExternal,
				fmt.Sprintf("Could not read video metadata for camera %s.", name),
				fmt.Sprintf("probe %s: %v", videoPath, err), err)
		}
		trial.requests = append(trial.requests, calib.Request{
			Camera:             name,
			VideoPath:          videoPath,
			CameraDir:          session.CameraDir(trial.SessionDir, name),
			Intrinsics:         intr,
			OrientationDegrees: degrees,
			UseAlternate:       meta.UseAlternate(name),
		})
	}
	return nil
}

func (s *calibrateStage) Execute(ctx context.Context, trial *Trial) error {
	calibrator, err := calib.New(s.corners, trial.Board, calib.Options{
		Samples:        s.cfg.Calibration.SampleCount,
		UpsampleFactor: s.cfg.Calibration.UpsampleFactor,
	}, s.logger)
	if err != nil {
		return err
	}
	solutions, err := calibrator.CalibrateAll(ctx, trial.requests, trial.Cameras)
	if err != nil {
		return err
	}
	trial.Solutions = solutions
	trial.UpsideDown = calib.SessionUpsideDown(trial.Cameras.All())
	return nil
}

// synchronizeStage aligns the per-camera keypoint streams onto a common
// timeline.
type synchronizeStage struct {
	cfg *config.Config
}

func (s *synchronizeStage) Name() string { return "synchronize" }

// Prepare loads the pose detector output for every camera.
func (s *synchronizeStage) Prepare(_ context.Context, trial *Trial) error {
	trial.Streams = make(map[string]*pose.Stream, len(trial.requests))
	for _, name := range trial.Metadata.Cameras() {
		path := session.KeypointFile(trial.SessionDir, name, trial.Name)
		stream, err := pose.ReadFile(path)
		if err != nil {
			return recon.Wrap(recon.KindExternal,
				fmt.Sprintf("Keypoint data is missing or unreadable for camera %s.", name),
				err.Error(), err)
		}
		stream.Camera = name
		trial.Streams[name] = stream
		trial.Rate = stream.Rate
	}
	return nil
}

func (s *synchronizeStage) Execute(_ context.Context, trial *Trial) error {
	set, err := timesync.Synchronize(trial.Streams, timesync.Options{
		CutoffHz:                 s.cfg.CutoffFor(trial.Activity, trial.Rate),
		ConfidenceThreshold:      s.cfg.Synchronization.ConfidenceThreshold,
		MaxLowConfidenceFraction: s.cfg.Synchronization.MaxLowConfidenceFraction,
	})
	if err != nil {
		return err
	}
	trial.Synced = set
	trial.Rate = set.Rate
	return nil
}

// selectStage resolves the per-camera primary/alternate ambiguity when the
// session declares multiple calibration option sets. It triangulates the
// trial under every candidate and keeps the most self-consistent one.
type selectStage struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (s *selectStage) Name() string { return "select" }

func (s *selectStage) Prepare(_ context.Context, _ *Trial) error { return nil }

func (s *selectStage) Execute(_ context.Context, trial *Trial) error {
	meta := trial.Metadata
	// An explicit operator override beats automatic selection.
	if len(meta.CalibrationOptions) < 2 || len(meta.AlternateExtrinsics) > 0 {
		return nil
	}

	candidates := make([]triangulate.Candidate, 0, len(meta.CalibrationOptions))
	for i, choices := range meta.CalibrationOptions {
		params, err := s.candidateParams(trial, choices)
		if err != nil {
			return err
		}
		candidates = append(candidates, triangulate.Candidate{
			Name:   fmt.Sprintf("option %d", i),
			Params: params,
		})
	}

	best, scores, err := triangulate.Select(trial.Synced, candidates, triangulate.Options{
		ConfidenceThreshold: s.cfg.Synchronization.ConfidenceThreshold,
	})
	if err != nil {
		return err
	}
	s.logger.Info("calibration candidate selected",
		logging.FieldTrialID, trial.ID,
		"candidate", candidates[best].Name,
		"scores", scores)

	winner := candidates[best].Params
	if err := trial.Cameras.Merge(winner); err != nil {
		return err
	}
	// Persist the resolved choice so later trials restore it from cache.
	for name, p := range winner {
		if err := camera.SaveCached(session.CameraDir(trial.SessionDir, name), p); err != nil {
			return err
		}
	}
	trial.UpsideDown = calib.SessionUpsideDown(trial.Cameras.All())
	return nil
}

// candidateParams materializes one option set: the session's parameters with
// each camera's chosen pose solution swapped in. A non-primary choice needs
// the fresh solve's candidates; a camera restored from cache has none.
func (s *selectStage) candidateParams(trial *Trial, choices map[string]string) (map[string]*camera.Parameters, error) {
	out := make(map[string]*camera.Parameters, trial.Cameras.Len())
	for name, base := range trial.Cameras.All() {
		choice, ok := choices[name]
		if !ok {
			out[name] = base
			continue
		}
		var idx int
		switch choice {
		case "primary":
			idx = 0
		case "alternate":
			idx = 1
		default:
			return nil, recon.Newf(recon.KindConfiguration,
				"calibration option for camera %s is %q, expected primary or alternate", name, choice)
		}
		solutions, ok := trial.Solutions[name]
		if !ok {
			return nil, recon.Newf(recon.KindConfiguration,
				"calibration options for camera %s need a fresh calibration; clear its extrinsics cache and retry", name)
		}
		p := *base
		p.Rotation = solutions[idx].Rotation
		p.Translation = solutions[idx].Translation
		p.UpsideDown = solutions[idx].UpsideDown
		out[name] = &p
	}
	return out, nil
}

// triangulateStage reconstructs 3D marker trajectories from the synchronized
// streams.
type triangulateStage struct {
	cfg *config.Config
}

func (s *triangulateStage) Name() string { return "triangulate" }

func (s *triangulateStage) Prepare(_ context.Context, _ *Trial) error { return nil }

func (s *triangulateStage) Execute(_ context.Context, trial *Trial) error {
	result, err := triangulate.Reconstruct(trial.Synced, trial.Cameras.All(), triangulate.Options{
		ConfidenceThreshold: s.cfg.Synchronization.ConfidenceThreshold,
		MaxGapFrames:        int(math.Round(s.cfg.Triangulation.MaxGapSeconds * trial.Synced.Rate)),
		ZeroFillLongGaps:    s.cfg.Triangulation.ZeroFillLongGaps,
		MinValidFrames:      s.cfg.Triangulation.MinValidFrames,
	})
	if err != nil {
		return err
	}
	trial.Result = result
	return nil
}

// exportStage rotates trajectories into the lab frame and writes the TRC
// file, plus neutral-pose stills when configured.
type exportStage struct {
	cfg    *config.Config
	stills StillFunc
	logger *slog.Logger
}

func (s *exportStage) Name() string { return "export" }

// Prepare resolves the placement preset into a rotation mapper; an unknown
// placement fails before anything is written.
func (s *exportStage) Prepare(_ context.Context, trial *Trial) error {
	mapper, err := rotation.ForPlacement(trial.Metadata.CheckerBoard.Placement, trial.UpsideDown)
	if err != nil {
		return err
	}
	trial.mapper = mapper
	return nil
}

func (s *exportStage) Execute(_ context.Context, trial *Trial) error {
	trial.mapper.Apply(trial.Result)

	// The aligned window starts at this reference-timeline index; exported
	// frame numbers continue the reference camera's original numbering.
	start := 0
	for _, align := range trial.Synced.Alignments {
		if align.Offset > start {
			start = align.Offset
		}
	}

	outPath := filepath.Join(session.MarkerDataDir(trial.SessionDir), trial.ID+".trc")
	if err := trc.WriteFile(outPath, trial.Result, trc.Options{
		Units:      s.cfg.Export.Units,
		StartFrame: start + 1,
	}); err != nil {
		return recon.Wrap(recon.KindExternal,
			"Writing the marker trajectory file failed.",
			err.Error(), err)
	}
	trial.OutputPath = outPath

	if s.cfg.Export.NeutralImages && s.stills != nil && trial.Name == "neutral" {
		s.saveNeutralStills(trial, start)
	}
	return nil
}

// saveNeutralStills extracts one frame per eligible camera at the midpoint
// of the aligned window. Stills are advisory; a failed extraction is logged
// and never fails the trial.
func (s *exportStage) saveNeutralStills(trial *Trial, start int) {
	mid := trial.Synced.Len() / 2
	dir := session.NeutralImagesDir(trial.SessionDir)
	for _, name := range trial.Synced.Eligible {
		videoPath, err := session.TrialVideo(trial.SessionDir, name, trial.Name)
		if err != nil {
			s.logger.Warn("neutral still skipped", logging.FieldCamera, name, "error", err)
			continue
		}
		rawIndex := start + mid - trial.Synced.Alignments[name].Offset
		outPath := filepath.Join(dir, name+".png")
		if err := s.stills(videoPath, rawIndex, outPath); err != nil {
			s.logger.Warn("neutral still failed", logging.FieldCamera, name, "error", err)
		}
	}
}

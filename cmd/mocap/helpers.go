package main

import (
	"log/slog"
	"path/filepath"

	"mocap/internal/config"
	"mocap/internal/pipeline"
	"mocap/internal/video"
)

// newPipelineRunner wires the production pipeline: gocv corner detection
// and frame extraction, ffprobe metadata.
func newPipelineRunner(cfg *config.Config, logger *slog.Logger) *pipeline.Runner {
	src := video.NewSource(logger)
	if cfg.Calibration.SaveDiagnostics {
		src.DiagnosticsDir = filepath.Join(cfg.Paths.LogDir, "calibration")
	}
	return pipeline.NewRunner(cfg, pipeline.Options{
		Corners: src,
		Stills:  video.SaveStill,
	}, logger)
}

// Command mocapd is the reconstruction daemon: it polls the trial queue
// and processes each pending trial through the pipeline.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"path/filepath"
	"syscall"

	"mocap/internal/config"
	"mocap/internal/daemon"
	"mocap/internal/logging"
	"mocap/internal/pipeline"
	"mocap/internal/queue"
	"mocap/internal/video"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", "error", err)
		return
	}
	defer store.Close()

	src := video.NewSource(logger)
	if cfg.Calibration.SaveDiagnostics {
		src.DiagnosticsDir = filepath.Join(cfg.Paths.LogDir, "calibration")
	}
	runner := pipeline.NewRunner(cfg, pipeline.Options{
		Corners: src,
		Stills:  video.SaveStill,
	}, logger)

	d, err := daemon.New(cfg, store, runner, logger)
	if err != nil {
		logger.Error("start daemon", "error", err)
		return
	}
	defer d.Close()

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("daemon stopped", "error", err)
		return
	}
	logger.Info("mocapd shutting down")
}

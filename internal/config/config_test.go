package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mocap/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path %q, want %q", resolved, path)
	}
	if cfg.Calibration.UpsampleFactor != 4 {
		t.Fatalf("expected default upsample factor 4, got %d", cfg.Calibration.UpsampleFactor)
	}
	if cfg.Synchronization.ConfidenceThreshold != 0.4 {
		t.Fatalf("expected default confidence threshold 0.4, got %v", cfg.Synchronization.ConfidenceThreshold)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + dir + `/data"
intrinsics_dir = "` + dir + `/intrinsics"
log_dir = "` + dir + `/logs"

[synchronization.cutoff_hz]
Gait = 12.0
Running = 15.0

[triangulation]
max_gap_seconds = 0.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Triangulation.MaxGapSeconds != 0.5 {
		t.Fatalf("max gap seconds = %v, want 0.5", cfg.Triangulation.MaxGapSeconds)
	}
	if got := cfg.CutoffFor("GAIT", 60); got != 12 {
		t.Fatalf("CutoffFor(GAIT) = %v, want 12 (keys must be case-insensitive)", got)
	}
	if got := cfg.CutoffFor("running", 60); got != 15 {
		t.Fatalf("CutoffFor(running) = %v, want 15", got)
	}
}

func TestCutoffFallsBackToHalfRate(t *testing.T) {
	cfg := config.Default()
	if got := cfg.CutoffFor("squats", 60); got != 30 {
		t.Fatalf("CutoffFor(squats) = %v, want 30", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"upsample", func(c *config.Config) { c.Calibration.UpsampleFactor = 0 }, "upsample_factor"},
		{"confidence", func(c *config.Config) { c.Synchronization.ConfidenceThreshold = 1.5 }, "confidence_threshold"},
		{"units", func(c *config.Config) { c.Export.Units = "furlongs" }, "units"},
		{"minframes", func(c *config.Config) { c.Triangulation.MinValidFrames = 0 }, "min_valid_frames"},
		{"gap", func(c *config.Config) { c.Triangulation.MaxGapSeconds = -1 }, "max_gap_seconds"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWriteSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteSample(path); err != nil {
		t.Fatalf("WriteSample failed: %v", err)
	}
	if err := config.WriteSample(path); err == nil {
		t.Fatal("expected error on existing file")
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

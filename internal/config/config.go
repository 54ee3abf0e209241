package config

import (
	_ "embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// DataDir is the root under which session directories live
	// (<data_dir>/Data/<session>/Videos/<camera>/...).
	DataDir string `toml:"data_dir"`
	// IntrinsicsDir holds per-device-model intrinsics profiles.
	IntrinsicsDir string `toml:"intrinsics_dir"`
	LogDir        string `toml:"log_dir"`
}

// Calibration contains extrinsic calibration settings.
type Calibration struct {
	// UpsampleFactor scales sampled frames before corner detection; small
	// boards in 720p footage need 4.
	UpsampleFactor int `toml:"upsample_factor"`
	// SampleCount is how many frames are sampled from the calibration video.
	SampleCount int `toml:"sample_count"`
	// SaveDiagnostics writes corner-overlay stills next to the cache entry.
	SaveDiagnostics bool `toml:"save_diagnostics"`
}

// Synchronization contains time-alignment settings.
type Synchronization struct {
	// ConfidenceThreshold gates which keypoints feed the sync signal and,
	// later, triangulation.
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	// CutoffHz maps a declared activity class to a low-pass cutoff. Trials
	// whose activity is absent fall back to half the frame rate.
	CutoffHz map[string]float64 `toml:"cutoff_hz"`
	// MaxLowConfidenceFraction excludes a camera from triangulation when its
	// confidence stays under the threshold for more than this share of the
	// trial.
	MaxLowConfidenceFraction float64 `toml:"max_low_confidence_fraction"`
}

// Triangulation contains 3D reconstruction settings.
type Triangulation struct {
	// MaxGapSeconds bounds spline interpolation across missing runs.
	MaxGapSeconds float64 `toml:"max_gap_seconds"`
	// ZeroFillLongGaps writes zeros instead of leaving long gaps missing.
	// Off by default: missing must stay distinguishable from origin.
	ZeroFillLongGaps bool `toml:"zero_fill_long_gaps"`
	// MinValidFrames is the fatal floor on fully valid 3D frames.
	MinValidFrames int `toml:"min_valid_frames"`
}

// Export contains marker-file output settings.
type Export struct {
	// Units written into the TRC header.
	Units string `toml:"units"`
	// NeutralImages pops per-camera stills at the resolved neutral window.
	NeutralImages bool `toml:"neutral_images"`
}

// Tools locates the external binaries the pipeline shells out to.
type Tools struct {
	// FFprobe resolves video metadata (frame rate, rotation). A bare name is
	// looked up on PATH.
	FFprobe string `toml:"ffprobe"`
}

// Workflow contains daemon polling intervals, in seconds.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the reconstruction
// pipeline.
type Config struct {
	Paths           Paths           `toml:"paths"`
	Calibration     Calibration     `toml:"calibration"`
	Synchronization Synchronization `toml:"synchronization"`
	Triangulation   Triangulation   `toml:"triangulation"`
	Export          Export          `toml:"export"`
	Tools           Tools           `toml:"tools"`
	Workflow        Workflow        `toml:"workflow"`
	Logging         Logging         `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mocap/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(defaultPath); err != nil {
		if os.IsNotExist(err) {
			return defaultPath, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return defaultPath, true, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// clobber an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), fs.FileMode(0o644)); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the configured directories if missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SessionDir resolves the on-disk directory for a session.
func (c *Config) SessionDir(session string) string {
	return filepath.Join(c.Paths.DataDir, "Data", session)
}

// CutoffFor returns the low-pass cutoff for the declared activity, or half
// the frame rate when the activity has no table entry.
func (c *Config) CutoffFor(activity string, frameRate float64) float64 {
	if hz, ok := c.Synchronization.CutoffHz[strings.ToLower(strings.TrimSpace(activity))]; ok {
		return hz
	}
	return frameRate / 2
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	return abs, nil
}

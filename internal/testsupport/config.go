// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"mocap/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.IntrinsicsDir = filepath.Join(base, "intrinsics")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithActivityCutoff adds a low-pass cutoff table entry to the test config.
func WithActivityCutoff(activity string, hz float64) ConfigOption {
	return func(cfg *config.Config) {
		if cfg.Synchronization.CutoffHz == nil {
			cfg.Synchronization.CutoffHz = make(map[string]float64)
		}
		cfg.Synchronization.CutoffHz[activity] = hz
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

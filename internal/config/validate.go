package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCalibration(); err != nil {
		return err
	}
	if err := c.validateSynchronization(); err != nil {
		return err
	}
	if err := c.validateTriangulation(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if c.Tools.FFprobe == "" {
		return errors.New("tools.ffprobe must be set")
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.IntrinsicsDir == "" {
		return errors.New("paths.intrinsics_dir must be set")
	}
	return nil
}

func (c *Config) validateCalibration() error {
	if c.Calibration.UpsampleFactor < 1 || c.Calibration.UpsampleFactor > 8 {
		return errors.New("calibration.upsample_factor must be between 1 and 8")
	}
	if c.Calibration.SampleCount < 1 {
		return errors.New("calibration.sample_count must be at least 1")
	}
	return nil
}

func (c *Config) validateSynchronization() error {
	if c.Synchronization.ConfidenceThreshold < 0 || c.Synchronization.ConfidenceThreshold > 1 {
		return errors.New("synchronization.confidence_threshold must be between 0 and 1")
	}
	if c.Synchronization.MaxLowConfidenceFraction <= 0 || c.Synchronization.MaxLowConfidenceFraction > 1 {
		return errors.New("synchronization.max_low_confidence_fraction must be in (0, 1]")
	}
	for activity, hz := range c.Synchronization.CutoffHz {
		if hz <= 0 {
			return fmt.Errorf("synchronization.cutoff_hz[%s] must be positive", activity)
		}
	}
	return nil
}

func (c *Config) validateTriangulation() error {
	if c.Triangulation.MaxGapSeconds < 0 {
		return errors.New("triangulation.max_gap_seconds must not be negative")
	}
	if c.Triangulation.MinValidFrames < 1 {
		return errors.New("triangulation.min_valid_frames must be at least 1")
	}
	return nil
}

func (c *Config) validateExport() error {
	switch c.Export.Units {
	case "m", "mm", "cm":
		return nil
	default:
		return fmt.Errorf("export.units must be one of m, cm, mm (got %q)", c.Export.Units)
	}
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.QueuePollInterval < 1 {
		return errors.New("workflow.queue_poll_interval must be at least 1 second")
	}
	if c.Workflow.ErrorRetryInterval < 1 {
		return errors.New("workflow.error_retry_interval must be at least 1 second")
	}
	return nil
}

package config

import "strings"

// normalize expands user-relative paths and lowercases activity keys so
// lookups are case-insensitive.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.IntrinsicsDir, err = expandPath(c.Paths.IntrinsicsDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}

	if len(c.Synchronization.CutoffHz) > 0 {
		normalized := make(map[string]float64, len(c.Synchronization.CutoffHz))
		for activity, hz := range c.Synchronization.CutoffHz {
			normalized[strings.ToLower(strings.TrimSpace(activity))] = hz
		}
		c.Synchronization.CutoffHz = normalized
	}

	c.Tools.FFprobe = strings.TrimSpace(c.Tools.FFprobe)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Export.Units = strings.TrimSpace(c.Export.Units)
	return nil
}

package camera

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const cacheFileName = "cameraIntrinsicsExtrinsics.json"

// LoadCached returns the persisted parameters for a camera directory, or
// ok=false when no cache entry exists. A hit is returned unchanged so
// repeat calibration calls are idempotent.
func LoadCached(cameraDir string) (*Parameters, bool, error) {
	path := filepath.Join(cameraDir, cacheFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read extrinsics cache: %w", err)
	}
	var params Parameters
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, false, fmt.Errorf("parse extrinsics cache %s: %w", path, err)
	}
	if err := params.Validate(); err != nil {
		return nil, false, fmt.Errorf("extrinsics cache %s: %w", path, err)
	}
	return &params, true, nil
}

// SaveCached persists the parameters under the camera directory. There is
// no cross-process lock here: concurrent calibration of the same session
// must be serialized by the caller.
func SaveCached(cameraDir string, params *Parameters) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cameraDir, 0o755); err != nil {
		return fmt.Errorf("create camera directory: %w", err)
	}
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("encode extrinsics cache: %w", err)
	}
	return os.WriteFile(filepath.Join(cameraDir, cacheFileName), data, 0o644)
}

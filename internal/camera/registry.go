package camera

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"mocap/internal/recon"
)

const intrinsicsFileName = "cameraIntrinsics.json"

// Registry resolves device models to their intrinsics profiles. Profiles
// live under <root>/<deviceModel>/cameraIntrinsics.json and are computed
// offline per supported phone model.
type Registry struct {
	root string
}

// NewRegistry creates a registry rooted at the configured intrinsics
// directory.
func NewRegistry(root string) *Registry {
	return &Registry{root: root}
}

// Lookup loads the intrinsics profile for a device model. A missing profile
// is the spec's "unsupported camera" fatal condition.
func (r *Registry) Lookup(deviceModel string) (Intrinsics, error) {
	if deviceModel == "" {
		return Intrinsics{}, recon.New(recon.KindConfiguration, "camera device model is not set in session metadata")
	}
	path := filepath.Join(r.root, deviceModel, intrinsicsFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Intrinsics{}, recon.Wrap(recon.KindUnsupportedCamera,
				fmt.Sprintf("Intrinsics don't exist for camera model %q. Only calibrated device models are supported.", deviceModel),
				fmt.Sprintf("no intrinsics profile at %s", path),
				err)
		}
		return Intrinsics{}, fmt.Errorf("read intrinsics profile: %w", err)
	}

	var in Intrinsics
	if err := json.Unmarshal(data, &in); err != nil {
		return Intrinsics{}, fmt.Errorf("parse intrinsics profile %s: %w", path, err)
	}
	if in.Matrix[0][0] <= 0 || in.Matrix[1][1] <= 0 {
		return Intrinsics{}, fmt.Errorf("intrinsics profile %s: focal lengths must be positive", path)
	}
	return in, nil
}

// Save writes an intrinsics profile; used by fixtures and offline
// intrinsic calibration tooling.
func (r *Registry) Save(deviceModel string, in Intrinsics) error {
	dir := filepath.Join(r.root, deviceModel)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create intrinsics directory: %w", err)
	}
	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return fmt.Errorf("encode intrinsics: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, intrinsicsFileName), data, 0o644)
}

// Package session models a capture session on disk: its metadata file and
// the directory layout the pipeline reads from and writes into.
//
// A session directory looks like:
//
//	<session>/
//	    sessionMetadata.yaml
//	    Videos/<camera>/InputMedia/<trial>/<video file>
//	    Videos/<camera>/Keypoints/<trial>.json
//	    MarkerData/<trial id>.trc
//	    NeutralImages/
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"mocap/internal/calib"
	"mocap/internal/recon"
)

// Metadata is the per-session description recorded at capture time.
type Metadata struct {
	CheckerBoard struct {
		// Inner corner counts, named after the black-to-black convention the
		// capture app records.
		CornersWidth  int     `yaml:"black2BlackCornersWidth_n"`
		CornersHeight int     `yaml:"black2BlackCornersHeight_n"`
		SquareSizeMM  float64 `yaml:"squareSideLength_mm"`
		Placement     string  `yaml:"placement"`
	} `yaml:"checkerBoard"`

	// CameraModel maps camera names to device models, which key the
	// intrinsics registry.
	CameraModel map[string]string `yaml:"cameraModel"`

	// AlternateExtrinsics lists cameras whose alternate pose solution must
	// be used, an explicit operator override.
	AlternateExtrinsics []string `yaml:"alternateExtrinsics"`

	// CalibrationOptions declares candidate per-camera solution choices for
	// automatic selection; each entry maps camera name to "primary" or
	// "alternate". More than one entry triggers the selector.
	CalibrationOptions []map[string]string `yaml:"calibrationOptions"`
}

const metadataFileName = "sessionMetadata.yaml"

// LoadMetadata reads and validates the session metadata file.
func LoadMetadata(sessionDir string) (*Metadata, error) {
	path := filepath.Join(sessionDir, metadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, recon.Wrap(recon.KindConfiguration,
			"The session metadata file is missing or unreadable.",
			fmt.Sprintf("read %s: %v", path, err), err)
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, recon.Wrap(recon.KindConfiguration,
			"The session metadata file could not be parsed.",
			fmt.Sprintf("parse %s: %v", path, err), err)
	}
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Validate checks the fields every reconstruction needs.
func (m *Metadata) Validate() error {
	b := m.Board()
	if err := b.Validate(); err != nil {
		return recon.Wrap(recon.KindConfiguration,
			"The checkerboard description in the session metadata is invalid.",
			err.Error(), err)
	}
	if m.CheckerBoard.Placement == "" {
		return recon.New(recon.KindConfiguration,
			"The session metadata does not declare a checkerboard placement.")
	}
	if len(m.CameraModel) == 0 {
		return recon.New(recon.KindConfiguration,
			"The session metadata does not map any camera to a device model.")
	}
	return nil
}

// Board converts the metadata's millimeter geometry into the calibration
// board model (meters).
func (m *Metadata) Board() calib.Board {
	return calib.Board{
		Cols:       m.CheckerBoard.CornersWidth,
		Rows:       m.CheckerBoard.CornersHeight,
		SquareSize: m.CheckerBoard.SquareSizeMM / 1000,
	}
}

// UseAlternate reports whether the operator pinned the alternate extrinsic
// solution for a camera.
func (m *Metadata) UseAlternate(cameraName string) bool {
	for _, name := range m.AlternateExtrinsics {
		if name == cameraName {
			return true
		}
	}
	return false
}

// Cameras returns the metadata's camera names, sorted.
func (m *Metadata) Cameras() []string {
	names := make([]string, 0, len(m.CameraModel))
	for name := range m.CameraModel {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CameraDir returns a camera's directory within the session.
func CameraDir(sessionDir, cameraName string) string {
	return filepath.Join(sessionDir, "Videos", cameraName)
}

// KeypointFile returns the pose detector's output for one trial and camera.
func KeypointFile(sessionDir, cameraName, trialName string) string {
	return filepath.Join(CameraDir(sessionDir, cameraName), "Keypoints", trialName+".json")
}

// MarkerDataDir returns the session's trajectory export directory.
func MarkerDataDir(sessionDir string) string {
	return filepath.Join(sessionDir, "MarkerData")
}

// NeutralImagesDir returns where neutral-pose stills are written.
func NeutralImagesDir(sessionDir string) string {
	return filepath.Join(sessionDir, "NeutralImages")
}

// CalibrationTrialName is the reserved trial recorded with the board in view.
const CalibrationTrialName = "calibration"

// TrialVideo locates the recorded video for one trial and camera: the single
// media file inside the trial's InputMedia directory.
func TrialVideo(sessionDir, cameraName, trialName string) (string, error) {
	dir := filepath.Join(CameraDir(sessionDir, cameraName), "InputMedia", trialName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", recon.Wrap(recon.KindConfiguration,
			fmt.Sprintf("No recording found for trial %q on camera %s.", trialName, cameraName),
			fmt.Sprintf("read %s: %v", dir, err), err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".mov", ".mp4", ".avi", ".mkv":
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", recon.Newf(recon.KindConfiguration,
		"no video file for trial %q under %s", trialName, dir)
}

package pipeline_test

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mocap/internal/calib"
	"mocap/internal/camera"
	"mocap/internal/config"
	"mocap/internal/pipeline"
	"mocap/internal/recon"
	"mocap/internal/rotation"
	"mocap/internal/testsupport"
)

const (
	testRate   = 60.0
	testFrames = 90
)

func testConfig(t *testing.T) *config.Config {
	return testsupport.NewConfig(t)
}

func testIntrinsics() camera.Intrinsics {
	return camera.Intrinsics{
		Matrix: [3][3]float64{
			{600, 0, 320},
			{0, 600, 240},
			{0, 0, 1},
		},
		Width:  640,
		Height: 480,
	}
}

// truthCameras is the rig the synthetic session was "recorded" with: two
// views of the board origin from three meters out.
func truthCameras() map[string]*camera.Parameters {
	yaw := 25 * math.Pi / 180
	return map[string]*camera.Parameters{
		"cam0": {
			Name:       "cam0",
			Intrinsics: testIntrinsics(),
			Extrinsics: camera.Extrinsics{
				Rotation:    [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}},
				Translation: [3]float64{0, 0, 3},
			},
		},
		"cam1": {
			Name:       "cam1",
			Intrinsics: testIntrinsics(),
			Extrinsics: camera.Extrinsics{
				Rotation: [3][3]float64{
					{math.Cos(yaw), 0, math.Sin(yaw)},
					{0, 1, 0},
					{-math.Sin(yaw), 0, math.Cos(yaw)},
				},
				Translation: [3]float64{0, 0, 3},
			},
		},
	}
}

// markerAt is the synthetic marker path, with enough vertical motion to
// drive the synchronization signal.
func markerAt(frame int) [3]float64 {
	t := float64(frame)
	return [3]float64{
		0.05 * math.Sin(2*math.Pi*t/60),
		0.15 * math.Sin(2*math.Pi*t/40),
		0.02 * math.Cos(2*math.Pi*t/50),
	}
}

// fakeCorners answers corner detection by projecting the board through the
// rig's ground truth; the camera is identified from the video path.
type fakeCorners struct {
	rig map[string]*camera.Parameters
}

func (f *fakeCorners) DetectCorners(_ context.Context, videoPath string, board calib.Board, _ calib.DetectOptions) (calib.Detection, error) {
	name := filepath.Base(filepath.Dir(filepath.Dir(filepath.Dir(videoPath))))
	truth, ok := f.rig[name]
	if !ok {
		return calib.Detection{}, recon.Newf(recon.KindExternal, "no rig camera for video %s", videoPath)
	}
	var det calib.Detection
	for _, p := range board.ObjectPoints() {
		u, v, ok := truth.Project(p)
		if !ok {
			return calib.Detection{}, recon.Newf(recon.KindExternal, "board corner behind camera %s", name)
		}
		det.Corners = append(det.Corners, [2]float64{u, v})
	}
	det.FrameIndex = 5
	return det, nil
}

func probeStub(_ context.Context, _ string) (float64, int, error) {
	return testRate, 0, nil
}

type keypointFile struct {
	Camera        string                  `json:"camera"`
	FrameRate     float64                 `json:"frame_rate"`
	KeypointNames []string                `json:"keypoint_names"`
	Frames        []map[string][3]float64 `json:"frames"`
}

// buildSession lays a complete synthetic session on disk: metadata,
// calibration and trial recordings, intrinsics registry, and projected
// keypoints for every camera.
func buildSession(t *testing.T, cfg *config.Config, sessionName, trialName, metaExtra string) string {
	t.Helper()
	dir := cfg.SessionDir(sessionName)

	meta := `checkerBoard:
  black2BlackCornersWidth_n: 5
  black2BlackCornersHeight_n: 4
  squareSideLength_mm: 60
  placement: ground
cameraModel:
  cam0: testDevice
  cam1: testDevice
` + metaExtra
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sessionMetadata.yaml"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}

	registry := camera.NewRegistry(cfg.Paths.IntrinsicsDir)
	if err := registry.Save("testDevice", testIntrinsics()); err != nil {
		t.Fatal(err)
	}

	rig := truthCameras()
	for name, truth := range rig {
		for _, trial := range []string{"calibration", trialName} {
			mediaDir := filepath.Join(dir, "Videos", name, "InputMedia", trial)
			if err := os.MkdirAll(mediaDir, 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(filepath.Join(mediaDir, trial+".mov"), []byte("stub"), 0o644); err != nil {
				t.Fatal(err)
			}
		}

		file := keypointFile{
			Camera:        name,
			FrameRate:     testRate,
			KeypointNames: []string{"hip"},
		}
		for i := 0; i < testFrames; i++ {
			u, v, ok := truth.Project(markerAt(i))
			if !ok {
				t.Fatalf("marker behind camera %s at frame %d", name, i)
			}
			file.Frames = append(file.Frames, map[string][3]float64{"hip": {u, v, 1}})
		}
		data, err := json.Marshal(file)
		if err != nil {
			t.Fatal(err)
		}
		kpDir := filepath.Join(dir, "Videos", name, "Keypoints")
		if err := os.MkdirAll(kpDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(kpDir, trialName+".json"), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTrial(sessionDir, trialName string) *pipeline.Trial {
	return &pipeline.Trial{
		ID:         "11111111-2222-3333-4444-555555555555",
		Session:    "S01",
		Name:       trialName,
		Activity:   "gait",
		SessionDir: sessionDir,
	}
}

func TestRunReconstructsTrial(t *testing.T) {
	cfg := testConfig(t)
	sessionDir := buildSession(t, cfg, "S01", "walk", "")
	runner := pipeline.NewRunner(cfg, pipeline.Options{
		Corners: &fakeCorners{rig: truthCameras()},
		Probe:   probeStub,
	}, nil)

	trial := newTrial(sessionDir, "walk")
	if err := runner.Run(context.Background(), trial); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if trial.Cameras.Len() != 2 {
		t.Fatalf("calibrated %d cameras, want 2", trial.Cameras.Len())
	}
	if trial.Result == nil {
		t.Fatal("no reconstruction result")
	}

	mapper, err := rotation.ForPlacement("ground", trial.UpsideDown)
	if err != nil {
		t.Fatal(err)
	}
	traj := trial.Result.Trajectories["hip"]
	for _, i := range []int{20, testFrames / 2, testFrames - 20} {
		if !traj[i].Valid {
			t.Fatalf("frame %d missing", i)
		}
		want := mapper.Point(markerAt(i))
		got := [3]float64{traj[i].X, traj[i].Y, traj[i].Z}
		for k := 0; k < 3; k++ {
			if math.Abs(got[k]-want[k]) > 5e-3 {
				t.Fatalf("frame %d: got %v, want %v", i, got, want)
			}
		}
	}

	wantPath := filepath.Join(sessionDir, "MarkerData", trial.ID+".trc")
	if trial.OutputPath != wantPath {
		t.Fatalf("output path %s, want %s", trial.OutputPath, wantPath)
	}
	f, err := os.Open(trial.OutputPath)
	if err != nil {
		t.Fatalf("export missing: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("export is empty")
	}
	if got := scanner.Text(); !strings.HasPrefix(got, "PathFileType\t4\t(X/Y/Z)\t") {
		t.Fatalf("unexpected header line %q", got)
	}
}

func TestRunSelectsCalibrationOption(t *testing.T) {
	cfg := testConfig(t)
	extra := `calibrationOptions:
  - cam1: alternate
  - cam1: primary
`
	sessionDir := buildSession(t, cfg, "S01", "walk", extra)
	runner := pipeline.NewRunner(cfg, pipeline.Options{
		Corners: &fakeCorners{rig: truthCameras()},
		Probe:   probeStub,
	}, nil)

	trial := newTrial(sessionDir, "walk")
	if err := runner.Run(context.Background(), trial); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// The consistent option must win over the mirrored pose, leaving the
	// rig close to ground truth.
	truth := truthCameras()["cam1"]
	got, ok := trial.Cameras.Get("cam1")
	if !ok {
		t.Fatal("cam1 missing after selection")
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(got.Rotation[i][j]-truth.Rotation[i][j]) > 1e-3 {
				t.Fatalf("selection kept rotation %v, want %v", got.Rotation, truth.Rotation)
			}
		}
	}
}

func TestRunUnknownPlacementFails(t *testing.T) {
	cfg := testConfig(t)
	sessionDir := buildSession(t, cfg, "S01", "walk", "")
	meta, err := os.ReadFile(filepath.Join(sessionDir, "sessionMetadata.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	patched := strings.Replace(string(meta), "placement: ground", "placement: ceiling", 1)
	if err := os.WriteFile(filepath.Join(sessionDir, "sessionMetadata.yaml"), []byte(patched), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := pipeline.NewRunner(cfg, pipeline.Options{
		Corners: &fakeCorners{rig: truthCameras()},
		Probe:   probeStub,
	}, nil)

	trial := newTrial(sessionDir, "walk")
	err = runner.Run(context.Background(), trial)
	if !recon.IsKind(err, recon.KindUnknownPlacement) {
		t.Fatalf("got %v, want unknown-placement error", err)
	}
	if trial.OutputPath != "" {
		t.Fatal("no export may be produced for an unknown placement")
	}
}

func TestRunNeutralStills(t *testing.T) {
	cfg := testConfig(t)
	sessionDir := buildSession(t, cfg, "S01", "neutral", "")

	type still struct {
		video string
		frame int
		out   string
	}
	var calls []still
	runner := pipeline.NewRunner(cfg, pipeline.Options{
		Corners: &fakeCorners{rig: truthCameras()},
		Probe:   probeStub,
		Stills: func(videoPath string, frameIndex int, outPath string) error {
			calls = append(calls, still{videoPath, frameIndex, outPath})
			return nil
		},
	}, nil)

	trial := newTrial(sessionDir, "neutral")
	if err := runner.Run(context.Background(), trial); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("extracted %d stills, want one per camera", len(calls))
	}
	wantDir := filepath.Join(sessionDir, "NeutralImages")
	for _, c := range calls {
		if filepath.Dir(c.out) != wantDir {
			t.Fatalf("still written to %s, want directory %s", c.out, wantDir)
		}
		if c.frame < 0 || c.frame >= testFrames {
			t.Fatalf("still frame %d out of range", c.frame)
		}
	}
}

func TestRunMissingKeypointsFails(t *testing.T) {
	cfg := testConfig(t)
	sessionDir := buildSession(t, cfg, "S01", "walk", "")
	if err := os.Remove(filepath.Join(sessionDir, "Videos", "cam1", "Keypoints", "walk.json")); err != nil {
		t.Fatal(err)
	}

	runner := pipeline.NewRunner(cfg, pipeline.Options{
		Corners: &fakeCorners{rig: truthCameras()},
		Probe:   probeStub,
	}, nil)

	if err := runner.Run(context.Background(), newTrial(sessionDir, "walk")); err == nil {
		t.Fatal("missing keypoints must fail the trial")
	}
}

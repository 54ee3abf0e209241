package session_test

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"mocap/internal/recon"
	"mocap/internal/session"
)

const sampleMetadata = `
checkerBoard:
  black2BlackCornersWidth_n: 11
  black2BlackCornersHeight_n: 8
  squareSideLength_mm: 60
  placement: ground
cameraModel:
  Cam0: iphone13,3
  Cam1: iphone12,1
alternateExtrinsics:
  - Cam1
calibrationOptions:
  - Cam0: primary
    Cam1: primary
  - Cam0: primary
    Cam1: alternate
`

func writeMetadata(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "sessionMetadata.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadMetadata(t *testing.T) {
	dir := writeMetadata(t, sampleMetadata)
	meta, err := session.LoadMetadata(dir)
	if err != nil {
		t.Fatalf("LoadMetadata: %v", err)
	}

	board := meta.Board()
	if board.Cols != 11 || board.Rows != 8 {
		t.Fatalf("board grid %dx%d, want 11x8", board.Cols, board.Rows)
	}
	if math.Abs(board.SquareSize-0.06) > 1e-12 {
		t.Fatalf("square size %v m, want 0.06", board.SquareSize)
	}
	if meta.CheckerBoard.Placement != "ground" {
		t.Fatalf("placement %q", meta.CheckerBoard.Placement)
	}

	cams := meta.Cameras()
	if len(cams) != 2 || cams[0] != "Cam0" || cams[1] != "Cam1" {
		t.Fatalf("cameras %v", cams)
	}
	if meta.UseAlternate("Cam0") || !meta.UseAlternate("Cam1") {
		t.Fatal("alternate extrinsics override misread")
	}
	if len(meta.CalibrationOptions) != 2 {
		t.Fatalf("%d calibration options, want 2", len(meta.CalibrationOptions))
	}
}

func TestLoadMetadataMissingFile(t *testing.T) {
	_, err := session.LoadMetadata(t.TempDir())
	if !recon.IsKind(err, recon.KindConfiguration) {
		t.Fatalf("got %v, want configuration error", err)
	}
}

func TestLoadMetadataRejectsBadBoard(t *testing.T) {
	dir := writeMetadata(t, `
checkerBoard:
  black2BlackCornersWidth_n: 0
  black2BlackCornersHeight_n: 8
  squareSideLength_mm: 60
  placement: ground
cameraModel:
  Cam0: iphone13,3
`)
	if _, err := session.LoadMetadata(dir); !recon.IsKind(err, recon.KindConfiguration) {
		t.Fatalf("got %v, want configuration error", err)
	}
}

func TestTrialVideo(t *testing.T) {
	dir := t.TempDir()
	trialDir := filepath.Join(dir, "Videos", "Cam0", "InputMedia", "walking1")
	if err := os.MkdirAll(trialDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(trialDir, "walking1.mov"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := session.TrialVideo(dir, "Cam0", "walking1")
	if err != nil {
		t.Fatalf("TrialVideo: %v", err)
	}
	if filepath.Base(path) != "walking1.mov" {
		t.Fatalf("got %s", path)
	}

	if _, err := session.TrialVideo(dir, "Cam0", "absent"); err == nil {
		t.Fatal("missing trial directory must fail")
	}
}

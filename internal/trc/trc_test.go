package trc_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mocap/internal/trc"
	"mocap/internal/triangulate"
)

func sampleResult() *triangulate.Result {
	return &triangulate.Result{
		Rate:  60,
		Names: []string{"hip", "knee"},
		Trajectories: map[string][]triangulate.Point{
			"hip": {
				{X: 1.5, Y: 2.25, Z: -0.5, Confidence: 0.9, Valid: true},
				{X: 1.6, Y: 2.26, Z: -0.4, Confidence: 0.9, Valid: true},
			},
			"knee": {
				{X: 0.1, Y: 0.2, Z: 0.3, Confidence: 0.8, Valid: true},
				{Valid: false},
			},
		},
	}
}

func TestWriteFormat(t *testing.T) {
	var sb strings.Builder
	if err := trc.Write(&sb, "walk1.trc", sampleResult(), trc.Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	lines := strings.Split(sb.String(), "\n")

	if lines[0] != "PathFileType\t4\t(X/Y/Z)\twalk1.trc" {
		t.Errorf("header line 1: %q", lines[0])
	}
	if lines[1] != "DataRate\tCameraRate\tNumFrames\tNumMarkers\tUnits\tOrigDataRate\tOrigDataStartFrame\tOrigNumFrames" {
		t.Errorf("header line 2: %q", lines[1])
	}
	if lines[2] != "60.00\t60.00\t2\t2\tm\t60.00\t1\t2" {
		t.Errorf("header line 3: %q", lines[2])
	}
	if lines[3] != "Frame#\tTime\thip\t\t\tknee\t\t" {
		t.Errorf("marker name row: %q", lines[3])
	}
	if lines[4] != "\t\tX1\tY1\tZ1\tX2\tY2\tZ2" {
		t.Errorf("axis row: %q", lines[4])
	}
	if lines[5] != "" {
		t.Errorf("expected blank separator, got %q", lines[5])
	}
	if lines[6] != "1\t0.000000\t1.500000\t2.250000\t-0.500000\t0.100000\t0.200000\t0.300000" {
		t.Errorf("data row 1: %q", lines[6])
	}
}

func TestWriteMissingPointsAreEmptyFields(t *testing.T) {
	var sb strings.Builder
	if err := trc.Write(&sb, "walk1.trc", sampleResult(), trc.Options{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	lines := strings.Split(sb.String(), "\n")

	// Frame 2: knee is missing, so its three fields are empty, not "0".
	row := lines[7]
	fields := strings.Split(row, "\t")
	if len(fields) != 8 {
		t.Fatalf("data row has %d fields, want 8: %q", len(fields), row)
	}
	for i := 5; i < 8; i++ {
		if fields[i] != "" {
			t.Errorf("missing marker field %d is %q, want empty", i, fields[i])
		}
	}
	if fields[2] == "" {
		t.Error("valid marker was written empty")
	}
}

func TestWriteRejectsRaggedTrajectories(t *testing.T) {
	res := sampleResult()
	res.Trajectories["knee"] = res.Trajectories["knee"][:1]
	if err := trc.Write(&strings.Builder{}, "x.trc", res, trc.Options{}); err == nil {
		t.Fatal("ragged trajectories must be rejected")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "walk1.trc")
	if err := trc.WriteFile(path, sampleResult(), trc.Options{Units: "mm"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "\tmm\t") {
		t.Error("units not written to header")
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

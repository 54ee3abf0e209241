package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"mocap/internal/logging"
	"mocap/internal/recon"
)

func TestConsoleHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logging.WithComponent(logger, "calibrator").Info("solved pose", "camera", "Cam1", "rmse", 0.42)

	line := buf.String()
	if !strings.Contains(line, "INFO calibrator: solved pose") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "camera=Cam1") || !strings.Contains(line, "rmse=0.42") {
		t.Fatalf("missing fields in line: %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("visible")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info line should be suppressed: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("warn line should be emitted: %q", buf.String())
	}
}

func TestUnsupportedFormatRejected(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextLiftsIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := recon.WithTrialID(context.Background(), "trial-7")
	ctx = recon.WithStage(ctx, "triangulate")
	ctx = recon.WithCamera(ctx, "Cam2")

	logging.WithContext(ctx, logger).Info("stage start")

	line := buf.String()
	for _, want := range []string{"trial_id=trial-7", "stage=triangulate", "camera=Cam2"} {
		if !strings.Contains(line, want) {
			t.Fatalf("line %q missing %q", line, want)
		}
	}
}

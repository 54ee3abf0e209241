package recon_test

import (
	"errors"
	"fmt"
	"testing"

	"mocap/internal/recon"
)

func TestMessagesSplitPayload(t *testing.T) {
	cause := errors.New("corner detection returned no grid")
	err := recon.Wrap(recon.KindNoCheckerboard,
		"Camera calibration failed. Verify the checkerboard is visible and try again.",
		"no checkerboard in 30 sampled frames of Cam1",
		cause)

	user, dev := recon.Messages(err)
	if user != "Camera calibration failed. Verify the checkerboard is visible and try again." {
		t.Fatalf("unexpected user message: %q", user)
	}
	if dev != "no checkerboard in 30 sampled frames of Cam1: corner detection returned no grid" {
		t.Fatalf("unexpected dev message: %q", dev)
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := recon.New(recon.KindInsufficientFrames, "less than 10 good frames of triangulated data")
	wrapped := fmt.Errorf("triangulate trial: %w", err)

	if !recon.IsKind(wrapped, recon.KindInsufficientFrames) {
		t.Fatalf("expected insufficient_frames, got %v", recon.KindOf(wrapped))
	}
	if recon.IsKind(wrapped, recon.KindNoCheckerboard) {
		t.Fatal("kind matcher must not match other kinds")
	}
}

func TestUnclassifiedErrorsReportUnknown(t *testing.T) {
	err := errors.New("plain failure")
	if got := recon.KindOf(err); got != recon.KindUnknown {
		t.Fatalf("expected unknown kind, got %v", got)
	}
	user, dev := recon.Messages(err)
	if user != "plain failure" || dev != "plain failure" {
		t.Fatalf("unexpected messages: %q %q", user, dev)
	}
}

func TestKindStrings(t *testing.T) {
	cases := map[recon.Kind]string{
		recon.KindNoCheckerboard:     "no_checkerboard",
		recon.KindUnsupportedCamera:  "unsupported_camera",
		recon.KindUnknownPlacement:   "unknown_placement",
		recon.KindTooFewViews:        "too_few_views",
		recon.KindInsufficientFrames: "insufficient_frames",
		recon.KindNoScaledModel:      "no_scaled_model",
		recon.KindConfiguration:      "configuration",
		recon.KindExternal:           "external",
		recon.KindUnknown:            "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(kind), got, want)
		}
	}
}

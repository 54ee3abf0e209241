package queue_test

import (
	"context"
	"path/filepath"
	"testing"

	"mocap/internal/queue"
)

func openStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnqueueAndLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	trial, err := store.Enqueue(ctx, "session-a", "walking1", "gait")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if trial.Status != queue.StatusPending {
		t.Fatalf("new trial status %s, want pending", trial.Status)
	}
	if trial.TrialID == "" {
		t.Fatal("trial UUID not minted")
	}
	if trial.Activity != "gait" {
		t.Fatalf("activity %q, want gait", trial.Activity)
	}

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if next == nil || next.ID != trial.ID {
		t.Fatalf("NextPending returned %+v, want trial %d", next, trial.ID)
	}

	claimed, err := store.MarkProcessing(ctx, trial.ID)
	if err != nil || !claimed {
		t.Fatalf("MarkProcessing: claimed=%v err=%v", claimed, err)
	}
	// A second claim must lose.
	claimed, err = store.MarkProcessing(ctx, trial.ID)
	if err != nil {
		t.Fatalf("second MarkProcessing: %v", err)
	}
	if claimed {
		t.Fatal("trial claimed twice")
	}

	if err := store.MarkCompleted(ctx, trial.ID, "/data/out.trc"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	done, err := store.GetByID(ctx, trial.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != queue.StatusCompleted || done.OutputPath != "/data/out.trc" {
		t.Fatalf("completed trial %+v", done)
	}
}

func TestMarkFailedStoresTwoPartPayload(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	trial, err := store.Enqueue(ctx, "session-a", "jump1", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkFailed(ctx, trial.ID, "no_checkerboard",
		"The checkerboard was not detected.", "cam2: no grid in 30 sampled frames"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	failed, err := store.GetByTrialID(ctx, trial.TrialID)
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != queue.StatusFailed {
		t.Fatalf("status %s, want failed", failed.Status)
	}
	if failed.ErrorKind != "no_checkerboard" {
		t.Fatalf("error kind %q", failed.ErrorKind)
	}
	if failed.ErrorUser == "" || failed.ErrorDev == "" {
		t.Fatalf("error payload incomplete: %+v", failed)
	}
}

func TestRetryFailedClearsPayload(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	trial, _ := store.Enqueue(ctx, "s", "t1", "")
	if err := store.MarkFailed(ctx, trial.ID, "external", "u", "d"); err != nil {
		t.Fatal(err)
	}
	n, err := store.RetryFailed(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RetryFailed: n=%d err=%v", n, err)
	}
	retried, _ := store.GetByID(ctx, trial.ID)
	if retried.Status != queue.StatusPending || retried.ErrorUser != "" || retried.ErrorDev != "" {
		t.Fatalf("retried trial %+v", retried)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	trial, _ := store.Enqueue(ctx, "s", "t1", "")
	if _, err := store.MarkProcessing(ctx, trial.ID); err != nil {
		t.Fatal(err)
	}
	n, err := store.ResetStuckProcessing(ctx)
	if err != nil || n != 1 {
		t.Fatalf("ResetStuckProcessing: n=%d err=%v", n, err)
	}
	reset, _ := store.GetByID(ctx, trial.ID)
	if reset.Status != queue.StatusPending {
		t.Fatalf("status %s, want pending", reset.Status)
	}
}

func TestListAndStatsAndClear(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	a, _ := store.Enqueue(ctx, "s", "t1", "")
	b, _ := store.Enqueue(ctx, "s", "t2", "")
	if _, err := store.MarkProcessing(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.MarkCompleted(ctx, b.ID, ""); err != nil {
		t.Fatal(err)
	}

	all, err := store.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("List: %d trials, err=%v", len(all), err)
	}
	if all[0].ID != a.ID {
		t.Fatal("list not ordered oldest first")
	}

	pending, err := store.List(ctx, queue.StatusPending)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending list: %d, err=%v", len(pending), err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusCompleted] != 1 {
		t.Fatalf("stats %v", stats)
	}

	n, err := store.Clear(ctx, queue.StatusCompleted)
	if err != nil || n != 1 {
		t.Fatalf("Clear completed: n=%d err=%v", n, err)
	}
	remaining, _ := store.List(ctx)
	if len(remaining) != 1 {
		t.Fatalf("%d trials remain, want 1", len(remaining))
	}
}

func TestParseStatus(t *testing.T) {
	if s, ok := queue.ParseStatus(" Pending "); !ok || s != queue.StatusPending {
		t.Fatalf("ParseStatus: %v %v", s, ok)
	}
	if _, ok := queue.ParseStatus("ripping"); ok {
		t.Fatal("unknown status accepted")
	}
}

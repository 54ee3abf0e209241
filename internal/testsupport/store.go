package testsupport

import (
	"context"
	"os"
	"testing"

	"mocap/internal/config"
	"mocap/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// EnqueueTrial adds a trial for tests using the provided store.
func EnqueueTrial(t testing.TB, store *queue.Store, session, name, activity string) *queue.Trial {
	t.Helper()

	trial, err := store.Enqueue(context.Background(), session, name, activity)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return trial
}

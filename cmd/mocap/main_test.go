package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliEnv struct {
	configPath string
	dataDir    string
}

func setupCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	cfg := fmt.Sprintf(`[paths]
data_dir = %q
intrinsics_dir = %q
log_dir = %q
`, dataDir, filepath.Join(root, "intrinsics"), filepath.Join(root, "logs"))

	configPath := filepath.Join(root, "config.toml")
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return cliEnv{configPath: configPath, dataDir: dataDir}
}

func runCLI(t *testing.T, env cliEnv, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", env.configPath))
	err := cmd.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("output %q does not contain %q", output, want)
	}
}

func TestQueueAddListStatus(t *testing.T) {
	env := setupCLIEnv(t)

	out, err := runCLI(t, env, "queue", "add", "S01", "walk", "--activity", "gait")
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	requireContains(t, out, "Queued trial")

	out, err = runCLI(t, env, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "walk")
	requireContains(t, out, "pending")

	out, err = runCLI(t, env, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	requireContains(t, out, "pending")
}

func TestQueueShowAndRemove(t *testing.T) {
	env := setupCLIEnv(t)

	if _, err := runCLI(t, env, "queue", "add", "S01", "walk"); err != nil {
		t.Fatalf("queue add: %v", err)
	}

	out, err := runCLI(t, env, "queue", "show", "1")
	if err != nil {
		t.Fatalf("queue show: %v", err)
	}
	requireContains(t, out, "Session:  S01")

	out, err = runCLI(t, env, "queue", "remove", "1")
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, "Removed trial #1")

	if _, err := runCLI(t, env, "queue", "remove", "1"); err == nil {
		t.Fatal("removing a missing item must fail")
	}
}

func TestQueueClearAll(t *testing.T) {
	env := setupCLIEnv(t)

	if _, err := runCLI(t, env, "queue", "add", "S01", "walk"); err != nil {
		t.Fatalf("queue add: %v", err)
	}

	// Pending items are not finished and must survive a clear.
	out, err := runCLI(t, env, "queue", "clear", "--all")
	if err != nil {
		t.Fatalf("queue clear: %v", err)
	}
	requireContains(t, out, "Removed 0 trial(s)")

	out, err = runCLI(t, env, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	requireContains(t, out, "walk")
}

func TestConfigInitWritesSample(t *testing.T) {
	env := setupCLIEnv(t)
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("config init must refuse to clobber an existing file")
	}
}

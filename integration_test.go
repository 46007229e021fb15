//go:build integration
// +build integration

package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"
)

// buildBinary builds the cueline binary into a temp dir
func buildBinary(t testing.TB) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "cueline_test")
	buildCmd := exec.Command("go", "build", "-o", bin, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}
	return bin
}

// isolatedEnv points HOME at a temp dir so no user config is read
func isolatedEnv(t testing.TB) []string {
	t.Helper()
	return append(os.Environ(), "HOME="+t.TempDir())
}

// TestPlayForDuration runs a session for a fixed time and checks what it leaves behind
func TestPlayForDuration(t *testing.T) {
	bin := buildBinary(t)
	env := isolatedEnv(t)
	tmpDir := t.TempDir()

	cmd := exec.Command(bin, "play",
		"--data-dir", tmpDir,
		"--duration", "1s",
		"--fps", "25",
		"--log-level", "debug")
	cmd.Env = env
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("play failed: %v\n%s", err, out)
	}

	// Check that the journal and snapshot were created
	for _, name := range []string{"journal.db", "snapshot.json"} {
		if _, err := os.Stat(filepath.Join(tmpDir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}

	// history prints the replayed play mode
	history := exec.Command(bin, "history", "--data-dir", tmpDir, "--kind", "play_mode")
	history.Env = env
	out, err := history.CombinedOutput()
	if err != nil {
		t.Fatalf("history failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "playing") {
		t.Errorf("history output missing play mode: %s", out)
	}

	// The session is over, so now exits 1
	now := exec.Command(bin, "now", "--data-dir", tmpDir)
	now.Env = env
	if err := now.Run(); err == nil {
		t.Error("now succeeded after the session stopped")
	}
}

// TestPlayLifecycle tests starting and interrupting a session
func TestPlayLifecycle(t *testing.T) {
	bin := buildBinary(t)
	env := isolatedEnv(t)
	tmpDir := t.TempDir()

	cmd := exec.Command(bin, "play",
		"--data-dir", tmpDir,
		"--range", "10:59",
		"--log-level", "debug")
	cmd.Env = env

	if err := cmd.Start(); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	// Give it time to start
	time.Sleep(1 * time.Second)

	// While running, now reports the transport
	now := exec.Command(bin, "now", "--data-dir", tmpDir, "--format", "{{.LoopMode}} {{.StartFrame}}:{{.EndFrame}}")
	now.Env = env
	out, err := now.Output()
	if err != nil {
		t.Errorf("now failed while playing: %v", err)
	} else if got := strings.TrimSpace(string(out)); got != "range 10:59" {
		t.Errorf("now output = %q, want \"range 10:59\"", got)
	}

	// Stop the session with SIGINT
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("Failed to signal session: %v", err)
	}

	// Wait for session to exit
	done := make(chan error)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("session exited with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("Session did not stop within 5 seconds")
		_ = cmd.Process.Kill()
	}
}

// TestFramesCommand tests the frames conversion table
func TestFramesCommand(t *testing.T) {
	bin := buildBinary(t)

	cmd := exec.Command(bin, "frames", "--fps", "25", "--from", "24", "--to", "26", "--change", "25:2")
	cmd.Env = isolatedEnv(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("frames failed: %v\n%s", err, out)
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header and 3 rows:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[3], "1020000") {
		t.Errorf("frame 26 row = %q, want time 1020000", lines[3])
	}
}

// BenchmarkNowCommand benchmarks the performance of the "now" command
func BenchmarkNowCommand(b *testing.B) {
	bin := buildBinary(b)
	env := isolatedEnv(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cmd := exec.Command(bin, "now")
		cmd.Env = env
		// No session has run, so this exits 1
		_ = cmd.Run()
	}
}

// TestSessionResourceUsage runs a session long enough to exercise trimming
func TestSessionResourceUsage(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping long-running test in short mode")
	}

	bin := buildBinary(t)
	tmpDir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, "play",
		"--data-dir", tmpDir,
		"--duration", "30s",
		"--frames", "100",
		"--log-level", "error")
	cmd.Env = isolatedEnv(t)

	// In a real test, you would monitor CPU and memory with pprof or top
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("play failed: %v\n%s", err, out)
	}
}

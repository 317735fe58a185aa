//go:build !windows

package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"examgrader/internal/grader/sandbox/engine"
	"examgrader/internal/grader/sandbox/spec"
)

func shSpec(t *testing.T, script string, timeout time.Duration) spec.RunSpec {
	t.Helper()
	return spec.RunSpec{
		RequestID: "req-1",
		TestID:    "0",
		WorkDir:   t.TempDir(),
		Cmd:       []string{"sh", "-c", script},
		Timeout:   timeout,
	}
}

func TestRunFeedsStdinAndCapturesOutput(t *testing.T) {
	t.Parallel()
	eng := engine.NewEngine(engine.Config{})
	rs := shSpec(t, "cat; echo oops >&2", 5*time.Second)
	rs.Stdin = "hello\nworld"
	res, err := eng.Run(context.Background(), rs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.Stdout != "hello\nworld" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Fatalf("unexpected stderr %q", res.Stderr)
	}
	if res.ExitCode != 0 || res.TimedOut || res.SpawnErr != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunReportsExitCode(t *testing.T) {
	t.Parallel()
	eng := engine.NewEngine(engine.Config{})
	res, err := eng.Run(context.Background(), shSpec(t, "exit 3", 5*time.Second))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestRunRunsInWorkDir(t *testing.T) {
	t.Parallel()
	eng := engine.NewEngine(engine.Config{})
	rs := shSpec(t, "pwd", 5*time.Second)
	res, err := eng.Run(context.Background(), rs)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(res.Stdout), rs.WorkDir[strings.LastIndex(rs.WorkDir, "/"):]) {
		t.Fatalf("expected cwd %s, got %q", rs.WorkDir, res.Stdout)
	}
}

func TestRunTimeoutKillsProcess(t *testing.T) {
	t.Parallel()
	eng := engine.NewEngine(engine.Config{})
	start := time.Now()
	res, err := eng.Run(context.Background(), shSpec(t, "sleep 30", 200*time.Millisecond))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !res.TimedOut || res.ExitCode != -1 {
		t.Fatalf("expected timeout with exit code -1, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout took too long: %v", elapsed)
	}
}

func TestRunSpawnFailureIsNotAnError(t *testing.T) {
	t.Parallel()
	eng := engine.NewEngine(engine.Config{})
	res, err := eng.Run(context.Background(), spec.RunSpec{
		WorkDir: t.TempDir(),
		Cmd:     []string{"examgrader-no-such-binary"},
		Timeout: time.Second,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.SpawnErr == nil {
		t.Fatalf("expected spawn error")
	}
	if res.TimedOut {
		t.Fatalf("spawn failure must not be reported as timeout")
	}
}

func TestRunTruncatesOutput(t *testing.T) {
	t.Parallel()
	eng := engine.NewEngine(engine.Config{StdoutStderrMaxBytes: 16})
	res, err := eng.Run(context.Background(), shSpec(t, "printf '%0100d' 0", 5*time.Second))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(res.Stdout) != 16 || !res.Truncated {
		t.Fatalf("expected 16 bytes truncated, got %d truncated=%v", len(res.Stdout), res.Truncated)
	}
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()
	eng := engine.NewEngine(engine.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res, err := eng.Run(ctx, shSpec(t, "sleep 30", 10*time.Second))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if res.TimedOut {
		t.Fatalf("cancellation must not be reported as timeout")
	}
}

func TestRunRejectsInvalidSpec(t *testing.T) {
	t.Parallel()
	eng := engine.NewEngine(engine.Config{})
	if _, err := eng.Run(context.Background(), spec.RunSpec{WorkDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for empty command")
	}
	if _, err := eng.Run(context.Background(), spec.RunSpec{Cmd: []string{"true"}}); err == nil {
		t.Fatalf("expected error for empty work dir")
	}
}

// Package engine launches child processes for compile and run steps.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"examgrader/internal/grader/sandbox/result"
	"examgrader/internal/grader/sandbox/spec"
	"examgrader/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultStdoutStderrMaxBytes int64 = 64 * 1024
	defaultWaitDelay                  = 2 * time.Second
)

// Engine executes a RunSpec as a child process.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error)
}

// Config controls engine behavior.
type Config struct {
	StdoutStderrMaxBytes int64         `yaml:"stdoutStderrMaxBytes"`
	WaitDelay            time.Duration `yaml:"waitDelay"`
	// InheritEnv passes the service environment to children before RunSpec.Env.
	InheritEnv bool `yaml:"inheritEnv"`
}

type processEngine struct {
	cfg Config
}

// NewEngine creates a process engine for the current host.
func NewEngine(cfg Config) Engine {
	if cfg.StdoutStderrMaxBytes <= 0 {
		cfg.StdoutStderrMaxBytes = defaultStdoutStderrMaxBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = defaultWaitDelay
	}
	return &processEngine{cfg: cfg}
}

// Run starts one process, feeds it Stdin and waits for exit, timeout or
// cancellation. Failure to start is reported in RunResult.SpawnErr. A
// non-nil error means runSpec was invalid or ctx was cancelled.
func (e *processEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.RunResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return result.RunResult{ExitCode: result.TimeoutExitCode}, err
	}

	cmd := exec.Command(runSpec.Cmd[0], runSpec.Cmd[1:]...)
	cmd.Dir = runSpec.WorkDir
	cmd.Env = e.buildEnv(runSpec.Env)
	cmd.Stdin = strings.NewReader(runSpec.Stdin)
	stdout := newLimitedBuffer(e.cfg.StdoutStderrMaxBytes)
	stderr := newLimitedBuffer(e.cfg.StdoutStderrMaxBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = e.cfg.WaitDelay
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		logger.Warn(ctx, "start process failed",
			zap.String("test_id", runSpec.TestID),
			zap.String("command", runSpec.Cmd[0]),
			zap.Error(err),
		)
		return result.RunResult{
			ExitCode: result.TimeoutExitCode,
			Stderr:   err.Error(),
			SpawnErr: err,
		}, nil
	}
	pid := cmd.Process.Pid

	var timedOut atomic.Bool
	var cancelled atomic.Bool
	done := make(chan struct{})
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		var wallTimer <-chan time.Time
		if runSpec.Timeout > 0 {
			timer := time.NewTimer(runSpec.Timeout)
			defer timer.Stop()
			wallTimer = timer.C
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			killProcessTree(cmd.Process)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessTree(cmd.Process)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	<-watchDone
	// Reap descendants that outlived the leader.
	killProcessGroup(pid)

	runResult := result.RunResult{
		ExitCode:   exitCodeFromErr(waitErr, cmd.ProcessState),
		WallTimeMs: time.Since(start).Milliseconds(),
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		Truncated:  stdout.Truncated() || stderr.Truncated(),
	}
	if waitErr != nil && errors.Is(waitErr, exec.ErrWaitDelay) {
		logger.Warn(ctx, "process pipes outlived the process", zap.String("test_id", runSpec.TestID))
	}
	if timedOut.Load() {
		runResult.TimedOut = true
		runResult.ExitCode = result.TimeoutExitCode
		return runResult, nil
	}
	if cancelled.Load() {
		runResult.ExitCode = result.TimeoutExitCode
		return runResult, ctx.Err()
	}
	return runResult, nil
}

func (e *processEngine) buildEnv(extra []string) []string {
	var env []string
	if e.cfg.InheritEnv {
		env = append(env, os.Environ()...)
	} else {
		env = append(env, minimalEnv()...)
	}
	return append(env, extra...)
}

func minimalEnv() []string {
	var env []string
	for _, key := range []string{"PATH", "HOME", "TMPDIR", "TEMP", "TMP", "LANG", "SYSTEMROOT", "JAVA_HOME"} {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	return env
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if runSpec.WorkDir == "" {
		return fmt.Errorf("work dir is required")
	}
	if len(runSpec.Cmd) == 0 || runSpec.Cmd[0] == "" {
		return fmt.Errorf("command is required")
	}
	if runSpec.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

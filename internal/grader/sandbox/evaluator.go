// Package sandbox compiles and runs submitted code against test cases.
package sandbox

import (
	"context"
	"strconv"
	"strings"
	"time"

	"examgrader/internal/grader/sandbox/engine"
	"examgrader/internal/grader/sandbox/observer"
	"examgrader/internal/grader/sandbox/profile"
	"examgrader/internal/grader/sandbox/result"
	"examgrader/internal/grader/sandbox/spec"
	"examgrader/internal/grader/sandbox/workspace"
	"examgrader/pkg/utils/logger"

	"go.uber.org/zap"
)

// DefaultTimeout is the wall-clock limit applied to every compile and run step.
const DefaultTimeout = 5 * time.Second

const compileTestID = "compile"

// ExecutionRequest is one piece of code evaluated against ordered inputs.
type ExecutionRequest struct {
	RequestID  string
	LanguageID string
	Code       string
	Inputs     []string
	// Expected enables verdicts only when it has one entry per input.
	Expected []string
	// Timeout overrides the evaluator default when positive.
	Timeout time.Duration
}

// HasVerdicts reports whether outcomes of req will carry Passed/Failed.
func (r ExecutionRequest) HasVerdicts() bool {
	return r.Expected != nil && len(r.Expected) == len(r.Inputs)
}

// LanguageResolver looks up language specs by identifier.
type LanguageResolver interface {
	Resolve(id string) (profile.LanguageSpec, error)
}

// Evaluator runs ExecutionRequests one case at a time inside a private workspace.
type Evaluator struct {
	languages  LanguageResolver
	workspaces *workspace.Manager
	eng        engine.Engine
	host       profile.HostFamily
	timeout    time.Duration
	metrics    observer.MetricsRecorder
	reporter   StatusReporter
}

// Option customizes an Evaluator.
type Option func(*Evaluator)

// WithTimeout sets the default per-step timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observer.MetricsRecorder) Option {
	return func(e *Evaluator) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithStatusReporter sets the case progress reporter.
func WithStatusReporter(r StatusReporter) Option {
	return func(e *Evaluator) {
		if r != nil {
			e.reporter = r
		}
	}
}

// WithHost overrides the host family used to expand commands.
func WithHost(h profile.HostFamily) Option {
	return func(e *Evaluator) { e.host = h }
}

// NewEvaluator creates an evaluator.
func NewEvaluator(languages LanguageResolver, workspaces *workspace.Manager, eng engine.Engine, opts ...Option) *Evaluator {
	e := &Evaluator{
		languages:  languages,
		workspaces: workspaces,
		eng:        eng,
		host:       profile.CurrentHost(),
		timeout:    DefaultTimeout,
		metrics:    observer.NoopMetricsRecorder{},
		reporter:   noopReporter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate compiles req once if needed and runs every input in order.
//
// Compile failures, timeouts and crashes are reported through outcome
// statuses. A returned error means no outcome is trustworthy: the language
// is unknown, the workspace failed or ctx was cancelled.
func (e *Evaluator) Evaluate(ctx context.Context, req ExecutionRequest) ([]result.Outcome, error) {
	lang, err := e.languages.Resolve(req.LanguageID)
	if err != nil {
		return nil, err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	if req.Expected != nil && !req.HasVerdicts() {
		logger.Warn(ctx, "expected outputs do not match inputs, verdicts disabled",
			zap.String("request_id", req.RequestID),
			zap.Int("inputs", len(req.Inputs)),
			zap.Int("expected", len(req.Expected)),
		)
	}

	var outcomes []result.Outcome
	err = e.workspaces.With(ctx, func(ws *workspace.Workspace) error {
		srcPath, err := e.workspaces.WriteSource(ws, lang, req.Code)
		if err != nil {
			return err
		}
		cmds, err := profile.CommandFor(lang, srcPath, e.host)
		if err != nil {
			return err
		}
		for i := range req.Inputs {
			e.report(ctx, req, lang, i, result.CasePending)
		}

		if cmds.Compile != nil {
			compileRes, err := e.compile(ctx, req, lang, ws.Dir, cmds.Compile, timeout)
			if err != nil {
				return err
			}
			if !compileRes.OK {
				outcomes = compileFailureOutcomes(req, compileRes)
				for i := range outcomes {
					e.report(ctx, req, lang, i, outcomes[i].Status)
				}
				return nil
			}
		}

		outcomes = make([]result.Outcome, 0, len(req.Inputs))
		for i, input := range req.Inputs {
			e.report(ctx, req, lang, i, result.CaseRunning)
			runRes, err := e.eng.Run(ctx, spec.RunSpec{
				RequestID: req.RequestID,
				TestID:    strconv.Itoa(i),
				WorkDir:   ws.Dir,
				Cmd:       cmds.Run,
				Env:       lang.Env,
				Stdin:     input,
				Timeout:   timeout,
			})
			if err != nil {
				return err
			}
			outcome := classifyRun(i, input, runRes)
			if outcome.Truncated {
				logger.Warn(ctx, "case output truncated",
					zap.String("request_id", req.RequestID),
					zap.String("language", lang.ID),
					zap.Int("case", i),
				)
			}
			if req.HasVerdicts() {
				outcome.Verdict = judge(runRes, req.Expected[i])
			}
			e.metrics.ObserveRun(ctx, lang.ID, string(outcome.Status), outcome.TimeMs)
			e.report(ctx, req, lang, i, outcome.Status)
			outcomes = append(outcomes, outcome)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (e *Evaluator) compile(ctx context.Context, req ExecutionRequest, lang profile.LanguageSpec, dir string, cmd []string, timeout time.Duration) (result.CompileResult, error) {
	runRes, err := e.eng.Run(ctx, spec.RunSpec{
		RequestID: req.RequestID,
		TestID:    compileTestID,
		WorkDir:   dir,
		Cmd:       cmd,
		Env:       lang.Env,
		Timeout:   timeout,
	})
	if err != nil {
		return result.CompileResult{}, err
	}
	compileRes := result.CompileResult{
		OK:       runRes.SpawnErr == nil && !runRes.TimedOut && runRes.ExitCode == 0,
		ExitCode: runRes.ExitCode,
		TimeMs:   runRes.WallTimeMs,
		TimedOut: runRes.TimedOut,
	}
	switch {
	case runRes.SpawnErr != nil:
		compileRes.Error = runRes.SpawnErr.Error()
	case runRes.TimedOut:
		compileRes.Error = "Compilation timed out."
	case runRes.ExitCode != 0:
		compileRes.Error = runRes.Stderr
		if strings.TrimSpace(compileRes.Error) == "" {
			compileRes.Error = runRes.Stdout
		}
	}
	e.metrics.ObserveCompile(ctx, lang.ID, compileRes.OK, compileRes.TimeMs)
	if !compileRes.OK {
		logger.Info(ctx, "compile failed",
			zap.String("request_id", req.RequestID),
			zap.String("language", lang.ID),
			zap.Int("exit_code", compileRes.ExitCode),
			zap.Bool("timed_out", compileRes.TimedOut),
		)
	}
	return compileRes, nil
}

func (e *Evaluator) report(ctx context.Context, req ExecutionRequest, lang profile.LanguageSpec, idx int, status result.CaseStatus) {
	err := e.reporter.ReportStatus(ctx, StatusUpdate{
		RequestID:  req.RequestID,
		LanguageID: lang.ID,
		CaseIndex:  idx,
		TotalCases: len(req.Inputs),
		Status:     status,
	})
	if err != nil {
		logger.Warn(ctx, "report case status failed", zap.String("request_id", req.RequestID), zap.Error(err))
	}
}

func compileFailureOutcomes(req ExecutionRequest, compileRes result.CompileResult) []result.Outcome {
	outcomes := make([]result.Outcome, len(req.Inputs))
	for i, input := range req.Inputs {
		outcomes[i] = result.Outcome{
			CaseIndex: i,
			Input:     input,
			Stderr:    compileRes.Error,
			ExitCode:  compileRes.ExitCode,
			Status:    result.CaseRuntimeError,
		}
		if req.HasVerdicts() {
			outcomes[i].Verdict = result.VerdictFailed
		}
	}
	return outcomes
}

func classifyRun(idx int, input string, runRes result.RunResult) result.Outcome {
	outcome := result.Outcome{
		CaseIndex: idx,
		Input:     input,
		Stdout:    runRes.Stdout,
		Stderr:    runRes.Stderr,
		ExitCode:  runRes.ExitCode,
		TimeMs:    runRes.WallTimeMs,
		Truncated: runRes.Truncated,
	}
	switch {
	case runRes.SpawnErr != nil:
		outcome.Status = result.CaseRuntimeError
		outcome.Stderr = runRes.SpawnErr.Error()
	case runRes.TimedOut:
		outcome.Status = result.CaseTimeout
		outcome.ExitCode = result.TimeoutExitCode
	case runRes.ExitCode != 0:
		outcome.Status = result.CaseRuntimeError
	default:
		outcome.Status = result.CaseCompleted
	}
	return outcome
}

// judge compares trimmed stdout of a run that actually finished. The exit
// code is not consulted; runs that never started or were killed fail.
func judge(runRes result.RunResult, expected string) result.Verdict {
	if runRes.SpawnErr != nil || runRes.TimedOut {
		return result.VerdictFailed
	}
	if OutputMatches(runRes.Stdout, expected) {
		return result.VerdictPassed
	}
	return result.VerdictFailed
}

// OutputMatches compares outputs ignoring leading and trailing whitespace only.
func OutputMatches(actual, expected string) bool {
	return strings.TrimSpace(actual) == strings.TrimSpace(expected)
}

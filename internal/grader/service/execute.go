package service

import (
	"context"
	"strings"

	"examgrader/internal/grader/model"
	"examgrader/internal/grader/sandbox"
	"examgrader/internal/grader/sandbox/result"
	appErr "examgrader/pkg/errors"

	"github.com/google/uuid"
)

const timedOutMessage = "Execution timed out."

// ExecuteLimits bounds ad-hoc executions.
type ExecuteLimits struct {
	MaxCodeBytes  int `yaml:"maxCodeBytes"`
	MaxInputBytes int `yaml:"maxInputBytes"`
	MaxTestCases  int `yaml:"maxTestCases"`
}

func (l ExecuteLimits) withDefaults() ExecuteLimits {
	if l.MaxCodeBytes <= 0 {
		l.MaxCodeBytes = 64 << 10
	}
	if l.MaxInputBytes <= 0 {
		l.MaxInputBytes = 1 << 20
	}
	if l.MaxTestCases <= 0 {
		l.MaxTestCases = 50
	}
	return l
}

// Execute runs code once per test case and reports what each run printed.
// Nothing is graded and nothing is persisted.
func (s *Service) Execute(ctx context.Context, req model.ExecuteRequest) (model.ExecuteResponse, error) {
	if err := s.validateExecute(req); err != nil {
		return model.ExecuteResponse{}, err
	}
	if err := s.acquireSlot(ctx); err != nil {
		return model.ExecuteResponse{}, err
	}
	defer s.releaseSlot()

	outcomes, err := s.evaluator.Evaluate(ctx, sandbox.ExecutionRequest{
		RequestID:  "exec-" + uuid.NewString(),
		LanguageID: req.Language,
		Code:       req.Code,
		Inputs:     req.TestCases,
	})
	if err != nil {
		return model.ExecuteResponse{}, err
	}
	resp := model.ExecuteResponse{Results: make([]model.ExecuteCaseResult, 0, len(outcomes))}
	for _, o := range outcomes {
		resp.Results = append(resp.Results, toExecuteResult(o))
	}
	return resp, nil
}

func (s *Service) validateExecute(req model.ExecuteRequest) error {
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Language) == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("Code and language are required.")
	}
	if len(req.Code) > s.limits.MaxCodeBytes {
		return appErr.New(appErr.CodeTooLarge).WithDetail("max_bytes", s.limits.MaxCodeBytes)
	}
	if len(req.TestCases) > s.limits.MaxTestCases {
		return appErr.ValidationError("test_cases", "too many test cases")
	}
	total := 0
	for _, tc := range req.TestCases {
		total += len(tc)
	}
	if total > s.limits.MaxInputBytes {
		return appErr.New(appErr.CustomInputTooLarge).WithDetail("max_bytes", s.limits.MaxInputBytes)
	}
	return nil
}

func toExecuteResult(o result.Outcome) model.ExecuteCaseResult {
	if o.Status == result.CaseTimeout {
		return model.ExecuteCaseResult{
			TestCase:   o.Input,
			Error:      timedOutMessage,
			ReturnCode: result.TimeoutExitCode,
		}
	}
	return model.ExecuteCaseResult{
		TestCase:   o.Input,
		Output:     o.Stdout,
		Error:      o.Stderr,
		ReturnCode: o.ExitCode,
	}
}

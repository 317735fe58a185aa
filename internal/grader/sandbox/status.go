package sandbox

import (
	"context"

	"examgrader/internal/grader/sandbox/result"
)

// StatusUpdate carries the progress of one test case.
type StatusUpdate struct {
	RequestID  string
	LanguageID string
	CaseIndex  int
	TotalCases int
	Status     result.CaseStatus
}

// StatusReporter receives case transitions Pending -> Running -> terminal.
type StatusReporter interface {
	ReportStatus(ctx context.Context, update StatusUpdate) error
}

type noopReporter struct{}

func (noopReporter) ReportStatus(ctx context.Context, update StatusUpdate) error { return nil }

package service_test

import (
	"context"
	"testing"

	"examgrader/internal/grader/model"
	"examgrader/internal/grader/sandbox"
	"examgrader/internal/grader/sandbox/result"
	"examgrader/internal/grader/service"
)

func TestProgressTrackerCountsTerminalCases(t *testing.T) {
	t.Parallel()
	store := newMemoryStatusStore()
	tracker := service.NewProgressTracker(store, 0)
	ctx := context.Background()

	if err := tracker.ReportStatus(ctx, sandbox.StatusUpdate{RequestID: "exec-1", Status: result.CaseCompleted}); err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if len(store.history) != 0 {
		t.Fatalf("untracked requests must be ignored")
	}

	tracker.Begin(model.GradeStatusResponse{SubmissionID: "s", Status: result.StatusRunning, Progress: model.Progress{TotalCases: 2}})
	for _, st := range []result.CaseStatus{result.CasePending, result.CaseRunning, result.CaseTimeout, result.CaseRunning, result.CaseRuntimeError, result.CaseCompleted} {
		if err := tracker.ReportStatus(ctx, sandbox.StatusUpdate{RequestID: "s", Status: st}); err != nil {
			t.Fatalf("report failed: %v", err)
		}
	}
	latest, _ := store.Get(ctx, "s")
	if latest.Progress.DoneCases != 2 || len(store.history) != 3 {
		t.Fatalf("unexpected progress %+v after %d saves", latest.Progress, len(store.history))
	}

	tracker.End("s")
	_ = tracker.ReportStatus(ctx, sandbox.StatusUpdate{RequestID: "s", Status: result.CaseCompleted})
	if len(store.history) != 3 {
		t.Fatalf("ended requests must be ignored")
	}
}

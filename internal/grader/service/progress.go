package service

import (
	"context"
	"sync"
	"time"

	"examgrader/internal/grader/model"
	"examgrader/internal/grader/sandbox"
)

// ProgressTracker turns case transitions from the evaluator into submission
// level progress in the status store. Requests it was not told about are
// ignored, which keeps ad-hoc executions out of the store.
type ProgressTracker struct {
	store   StatusStore
	timeout time.Duration

	mu     sync.Mutex
	active map[string]*model.GradeStatusResponse
}

func NewProgressTracker(store StatusStore, timeout time.Duration) *ProgressTracker {
	return &ProgressTracker{
		store:   store,
		timeout: timeout,
		active:  make(map[string]*model.GradeStatusResponse),
	}
}

// Begin starts tracking status.SubmissionID from the given snapshot.
func (p *ProgressTracker) Begin(status model.GradeStatusResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[status.SubmissionID] = &status
}

// End stops tracking submissionID.
func (p *ProgressTracker) End(submissionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, submissionID)
}

// ReportStatus implements sandbox.StatusReporter.
func (p *ProgressTracker) ReportStatus(ctx context.Context, update sandbox.StatusUpdate) error {
	if !update.Status.Terminal() {
		return nil
	}
	p.mu.Lock()
	status, ok := p.active[update.RequestID]
	if !ok {
		p.mu.Unlock()
		return nil
	}
	if status.Progress.DoneCases < status.Progress.TotalCases {
		status.Progress.DoneCases++
	}
	snapshot := *status
	p.mu.Unlock()

	if p.store == nil {
		return nil
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.store.Save(ctx, snapshot)
}

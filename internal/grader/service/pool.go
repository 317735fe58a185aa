package service

import (
	"context"
	"time"

	appErr "examgrader/pkg/errors"
)

func (s *Service) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(s.slotWait)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
	}
}

func (s *Service) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}

package service

import (
	"context"
	"time"

	"examgrader/internal/grader/model"
	"examgrader/internal/grader/sandbox/result"
	appErr "examgrader/pkg/errors"
	"examgrader/pkg/utils/logger"

	"go.uber.org/zap"
)

func (s *Service) saveStatus(ctx context.Context, status model.GradeStatusResponse) error {
	ctxStatus := ctx
	if s.statusTimeout > 0 {
		var cancel context.CancelFunc
		ctxStatus, cancel = context.WithTimeout(ctx, s.statusTimeout)
		defer cancel()
	}
	return s.statusRepo.Save(ctxStatus, status)
}

func (s *Service) publishFinal(ctx context.Context, status model.GradeStatusResponse) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishFinalStatus(ctx, status); err != nil {
		logger.Warn(ctx, "publish final status failed", zap.Error(err))
	}
}

// handleFailure records a Failed status for err and returns it alongside err.
func (s *Service) handleFailure(ctx context.Context, status model.GradeStatusResponse, err error) (model.GradeStatusResponse, error) {
	code := appErr.GetCode(err)
	if code == appErr.InternalServerError {
		code = appErr.JudgeSystemError
	}
	failed := status
	failed.Status = result.StatusFailed
	failed.Result = nil
	failed.ErrorCode = int(code)
	failed.ErrorMessage = err.Error()
	failed.FinishedAt = time.Now().Unix()

	// ctx may already be cancelled; the failure still has to be recorded.
	ctxSave := context.WithoutCancel(ctx)
	if saveErr := s.saveStatus(ctxSave, failed); saveErr != nil {
		logger.Warn(ctx, "update failure status failed", zap.Error(saveErr))
	}
	s.publishFinal(ctxSave, failed)
	logger.Warn(ctx, "grading failed", zap.Int("error_code", int(code)), zap.Error(err))
	return failed, err
}

// markRequeued records that the submission is waiting for a free worker.
func (s *Service) markRequeued(ctx context.Context, status model.GradeStatusResponse, err error) (model.GradeStatusResponse, error) {
	waiting := status
	waiting.Status = result.StatusPending
	waiting.ErrorCode = int(appErr.JudgeQueueFull)
	waiting.ErrorMessage = "worker pool is full, submission requeued"
	if saveErr := s.saveStatus(context.WithoutCancel(ctx), waiting); saveErr != nil {
		logger.Warn(ctx, "update requeued status failed", zap.Error(saveErr))
	}
	return waiting, err
}

// permanentFailure reports errors that redelivery cannot fix.
func permanentFailure(err error) bool {
	switch appErr.GetCode(err) {
	case appErr.InvalidParams, appErr.ValidationFailed, appErr.LanguageNotSupported,
		appErr.SubmissionNotFound, appErr.TooManyRequests:
		return true
	}
	return false
}

package service

import (
	"context"
	"encoding/json"

	"examgrader/internal/common/mq"
	"examgrader/internal/grader/model"
	appErr "examgrader/pkg/errors"
	"examgrader/pkg/utils/logger"

	"go.uber.org/zap"
)

// HandleMessage processes one grading task from the queue. A nil return
// commits the message; errors are redelivered by the consumer.
func (s *Service) HandleMessage(ctx context.Context, msg *mq.Message) error {
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	var payload model.GradeMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		logger.Warn(ctx, "drop undecodable grade message", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if payload.SubmissionID == "" {
		logger.Warn(ctx, "drop grade message without submission id", zap.String("message_id", msg.ID))
		return nil
	}

	canRequeue := s.queue != nil && s.retry.Topic != ""
	_, err := s.gradeSubmission(ctx, payload, canRequeue)
	switch {
	case err == nil:
		return nil
	case appErr.Is(err, appErr.JudgeQueueFull) && canRequeue:
		return s.requeueForPoolFull(ctx, msg)
	case permanentFailure(err):
		logger.Info(ctx, "grade message not retried", zap.String("submission_id", payload.SubmissionID), zap.Error(err))
		return nil
	default:
		return err
	}
}

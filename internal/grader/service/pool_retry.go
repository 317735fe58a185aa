package service

import (
	"context"
	"strconv"
	"time"

	"examgrader/internal/common/mq"
	appErr "examgrader/pkg/errors"
	"examgrader/pkg/utils/logger"

	"go.uber.org/zap"
)

const poolRetryHeader = "x-pool-retry"

// PoolRetryConfig controls how messages are requeued while the worker pool is full.
type PoolRetryConfig struct {
	Topic      string        `yaml:"topic"`
	DeadLetter string        `yaml:"deadLetter"`
	MaxRetries int           `yaml:"maxRetries"`
	BaseDelay  time.Duration `yaml:"baseDelay"`
	MaxDelay   time.Duration `yaml:"maxDelay"`
}

func (s *Service) requeueForPoolFull(ctx context.Context, msg *mq.Message) error {
	return RequeueForPoolFull(ctx, s.queue, s.retry, msg)
}

// ParsePoolRetryCount reads the pool retry counter from headers.
func ParsePoolRetryCount(headers map[string]string) int {
	raw, ok := headers[poolRetryHeader]
	if !ok {
		return 0
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0
	}
	return val
}

// CloneMessageForRetry copies msg with a fresh timestamp and the given counter.
func CloneMessageForRetry(msg *mq.Message, retryCount int) *mq.Message {
	out := &mq.Message{
		ID:         msg.ID,
		Body:       msg.Body,
		Headers:    make(map[string]string, len(msg.Headers)+1),
		Timestamp:  time.Now(),
		MaxRetries: msg.MaxRetries,
		Expiration: msg.Expiration,
	}
	for k, v := range msg.Headers {
		out.Headers[k] = v
	}
	out.Headers[poolRetryHeader] = strconv.Itoa(retryCount)
	return out
}

// ComputePoolBackoff doubles base per retry, capped at max when max > 0.
func ComputePoolBackoff(retryCount int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 0; i < retryCount; i++ {
		if max > 0 && delay >= max {
			break
		}
		delay *= 2
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}

// RequeueForPoolFull republishes msg to the retry topic after a backoff, or
// to the dead letter topic once MaxRetries is exhausted.
func RequeueForPoolFull(ctx context.Context, queue mq.Producer, cfg PoolRetryConfig, msg *mq.Message) error {
	if queue == nil || cfg.Topic == "" {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("retry queue is not configured")
	}
	if msg == nil {
		return appErr.New(appErr.InvalidParams).WithMessage("message is nil")
	}
	retryCount := ParsePoolRetryCount(msg.Headers)
	if cfg.MaxRetries > 0 && retryCount >= cfg.MaxRetries {
		if cfg.DeadLetter == "" {
			logger.Warn(ctx, "worker pool retry exhausted without dead letter", zap.Int("retry_count", retryCount), zap.String("message_id", msg.ID))
			return appErr.New(appErr.JudgeQueueFull).WithMessage("worker pool is full")
		}
		logger.Warn(ctx, "worker pool retry exhausted, sending to dead letter", zap.Int("retry_count", retryCount), zap.String("message_id", msg.ID), zap.String("topic", cfg.DeadLetter))
		return queue.Publish(ctx, cfg.DeadLetter, CloneMessageForRetry(msg, retryCount))
	}
	delay := ComputePoolBackoff(retryCount, cfg.BaseDelay, cfg.MaxDelay)
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	logger.Info(ctx, "worker pool requeue", zap.Int("retry_count", retryCount+1), zap.String("message_id", msg.ID), zap.Duration("delay", delay), zap.String("topic", cfg.Topic))
	return queue.Publish(ctx, cfg.Topic, CloneMessageForRetry(msg, retryCount+1))
}

package repository

import (
	"context"
	"time"

	"examgrader/internal/common/cache"
	appErr "examgrader/pkg/errors"

	"github.com/google/uuid"
)

const lockKeyPrefix = "grader:lock:"

// GradeLock guards a submission against concurrent grading by several
// replicas consuming the same topic.
type GradeLock struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewGradeLock(cacheClient cache.Cache, ttl time.Duration) *GradeLock {
	return &GradeLock{cache: cacheClient, ttl: ttl}
}

// Acquire returns a release func when the lock was taken, or ok=false when
// another worker already holds it.
func (l *GradeLock) Acquire(ctx context.Context, submissionID string) (release func(context.Context) error, ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.cache.TryLock(ctx, lockKeyPrefix+submissionID, token, l.ttl)
	if err != nil {
		return nil, false, appErr.Wrapf(err, appErr.CacheError, "acquire grade lock failed")
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		if err := l.cache.Unlock(ctx, lockKeyPrefix+submissionID, token); err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "release grade lock failed")
		}
		return nil
	}, true, nil
}

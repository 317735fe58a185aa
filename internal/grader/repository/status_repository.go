package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"examgrader/internal/common/cache"
	"examgrader/internal/grader/model"
	appErr "examgrader/pkg/errors"
)

const statusKeyPrefix = "grader:status:"

// StatusRepository handles status persistence.
type StatusRepository struct {
	cache cache.Cache
	TTL   time.Duration
}

// NewStatusRepository creates a new repository.
func NewStatusRepository(cacheClient cache.Cache, ttl time.Duration) *StatusRepository {
	return &StatusRepository{cache: cacheClient, TTL: ttl}
}

// Get returns status by submission id.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (model.GradeStatusResponse, error) {
	if submissionID == "" {
		return model.GradeStatusResponse{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return model.GradeStatusResponse{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, statusKeyPrefix+submissionID)
	if err != nil {
		return model.GradeStatusResponse{}, appErr.Wrapf(err, appErr.CacheError, "load status failed")
	}
	if val == "" {
		return model.GradeStatusResponse{}, appErr.New(appErr.SubmissionNotFound).WithMessage("submission status not found")
	}
	var resp model.GradeStatusResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return model.GradeStatusResponse{}, appErr.Wrapf(err, appErr.CacheError, "decode status failed")
	}
	return resp, nil
}

// Save persists status. Terminal states keep the full TTL, intermediate ones
// get a jittered TTL so abandoned requests do not expire together.
func (r *StatusRepository) Save(ctx context.Context, status model.GradeStatusResponse) error {
	if status.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status failed: %w", err)
	}
	ttl := r.TTL
	if !status.Terminal() {
		ttl = cache.JitterTTL(ttl)
	}
	if err := r.cache.Set(ctx, statusKeyPrefix+status.SubmissionID, string(data), ttl); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status failed")
	}
	return nil
}

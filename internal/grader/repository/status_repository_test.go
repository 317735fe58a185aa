package repository_test

import (
	"context"
	"testing"
	"time"

	"examgrader/internal/common/cache"
	"examgrader/internal/grader/model"
	"examgrader/internal/grader/repository"
	"examgrader/internal/grader/sandbox/result"
	appErr "examgrader/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedis(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestStatusRepositoryRoundTrip(t *testing.T) {
	t.Parallel()
	c, mr := newRedis(t)
	repo := repository.NewStatusRepository(c, time.Hour)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "1"); !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("expected SubmissionNotFound, got %v", err)
	}

	status := model.GradeStatusResponse{
		SubmissionID: "1",
		Status:       result.StatusFinished,
		Progress:     model.Progress{TotalCases: 4, DoneCases: 4},
		Result:       &result.GradeResult{TotalCases: 4, PassedCases: 3, Score: 75},
	}
	if err := repo.Save(ctx, status); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got, err := repo.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != result.StatusFinished || got.Result == nil || got.Result.Score != 75 {
		t.Fatalf("unexpected status: %+v", got)
	}
	if ttl := mr.TTL("grader:status:1"); ttl != time.Hour {
		t.Fatalf("terminal status ttl = %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := repo.Get(ctx, "1"); !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("expected expired status, got %v", err)
	}
}

func TestStatusRepositoryRejectsEmptyID(t *testing.T) {
	t.Parallel()
	c, _ := newRedis(t)
	repo := repository.NewStatusRepository(c, time.Minute)
	if err := repo.Save(context.Background(), model.GradeStatusResponse{}); !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGradeLockExcludesSecondHolder(t *testing.T) {
	t.Parallel()
	c, _ := newRedis(t)
	lock := repository.NewGradeLock(c, time.Minute)
	ctx := context.Background()

	release, ok, err := lock.Acquire(ctx, "5")
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if _, ok, err := lock.Acquire(ctx, "5"); err != nil || ok {
		t.Fatalf("second acquire should fail: ok=%v err=%v", ok, err)
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if _, ok, err := lock.Acquire(ctx, "5"); err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

package service_test

import (
	"context"
	"testing"
	"time"

	"examgrader/internal/common/mq"
	"examgrader/internal/grader/service"
	appErr "examgrader/pkg/errors"
)

func TestComputePoolBackoff(t *testing.T) {
	t.Parallel()
	cases := []struct {
		retry int
		base  time.Duration
		max   time.Duration
		want  time.Duration
	}{
		{retry: 0, base: 0, max: time.Second, want: 0},
		{retry: 0, base: 100 * time.Millisecond, want: 100 * time.Millisecond},
		{retry: 2, base: 100 * time.Millisecond, want: 400 * time.Millisecond},
		{retry: 5, base: 100 * time.Millisecond, max: time.Second, want: time.Second},
		{retry: 0, base: 2 * time.Second, max: time.Second, want: time.Second},
	}
	for _, tc := range cases {
		if got := service.ComputePoolBackoff(tc.retry, tc.base, tc.max); got != tc.want {
			t.Fatalf("backoff(%d, %v, %v) = %v, want %v", tc.retry, tc.base, tc.max, got, tc.want)
		}
	}
}

func TestRequeueForPoolFullDeadLetter(t *testing.T) {
	t.Parallel()
	producer := &fakeProducer{}
	cfg := service.PoolRetryConfig{Topic: "retry", DeadLetter: "dead", MaxRetries: 2}
	msg := mq.NewMessage([]byte("{}"))
	msg.SetHeader("x-pool-retry", "2")
	if err := service.RequeueForPoolFull(context.Background(), producer, cfg, msg); err != nil {
		t.Fatalf("requeue failed: %v", err)
	}
	if producer.topics[0] != "dead" {
		t.Fatalf("expected dead letter, got %v", producer.topics)
	}

	cfg.DeadLetter = ""
	if err := service.RequeueForPoolFull(context.Background(), producer, cfg, msg); !appErr.Is(err, appErr.JudgeQueueFull) {
		t.Fatalf("expected JudgeQueueFull, got %v", err)
	}
}

func TestRequeueForPoolFullHonoursCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := service.PoolRetryConfig{Topic: "retry", BaseDelay: time.Hour}
	if err := service.RequeueForPoolFull(ctx, &fakeProducer{}, cfg, mq.NewMessage(nil)); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

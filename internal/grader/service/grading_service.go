package service

import (
	"context"
	"fmt"
	"time"

	"examgrader/internal/common/mq"
	"examgrader/internal/grader/model"
	"examgrader/internal/grader/repository"
	"examgrader/internal/grader/sandbox"
	"examgrader/internal/grader/sandbox/result"
	appErr "examgrader/pkg/errors"
	"examgrader/pkg/utils/contextkey"
	"examgrader/pkg/utils/logger"

	"go.uber.org/zap"
)

// Evaluator runs one piece of code against its test cases.
type Evaluator interface {
	Evaluate(ctx context.Context, req sandbox.ExecutionRequest) ([]result.Outcome, error)
}

// StatusStore persists grading status.
type StatusStore interface {
	Get(ctx context.Context, submissionID string) (model.GradeStatusResponse, error)
	Save(ctx context.Context, status model.GradeStatusResponse) error
}

// SubmissionStore loads answers and stores the final grade.
type SubmissionStore interface {
	LoadQuestions(ctx context.Context, submissionID string) ([]model.QuestionAnswer, error)
	SaveGrade(ctx context.Context, submissionID string, grade result.GradeResult) error
}

// OutcomeArchiver keeps the detailed outcomes of a graded submission.
type OutcomeArchiver interface {
	Put(ctx context.Context, submissionID string, grade result.GradeResult) (string, error)
}

// GradeLocker prevents two workers from grading the same submission.
type GradeLocker interface {
	Acquire(ctx context.Context, submissionID string) (func(context.Context) error, bool, error)
}

// Service grades submissions and runs ad-hoc code.
type Service struct {
	evaluator     Evaluator
	statusRepo    StatusStore
	tracker       *ProgressTracker
	submissions   SubmissionStore
	archive       OutcomeArchiver
	publisher     repository.StatusEventPublisher
	lock          GradeLocker
	queue         mq.Producer
	retry         PoolRetryConfig
	limits        ExecuteLimits
	gradeTimeout  time.Duration
	statusTimeout time.Duration
	slotWait      time.Duration
	sem           chan struct{}
}

// Config holds service dependencies and settings. Submissions, Archive,
// Publisher, Lock and Queue are optional.
type Config struct {
	Evaluator      Evaluator
	StatusRepo     StatusStore
	Tracker        *ProgressTracker
	Submissions    SubmissionStore
	Archive        OutcomeArchiver
	Publisher      repository.StatusEventPublisher
	Lock           GradeLocker
	Queue          mq.Producer
	Retry          PoolRetryConfig
	Limits         ExecuteLimits
	GradeTimeout   time.Duration
	StatusTimeout  time.Duration
	SlotWait       time.Duration
	WorkerPoolSize int
}

// NewService creates a new grading service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if cfg.StatusRepo == nil {
		return nil, fmt.Errorf("status repository is required")
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewProgressTracker(cfg.StatusRepo, cfg.StatusTimeout)
	}
	slotWait := cfg.SlotWait
	if slotWait <= 0 {
		slotWait = 2 * time.Second
	}
	return &Service{
		evaluator:     cfg.Evaluator,
		statusRepo:    cfg.StatusRepo,
		tracker:       tracker,
		submissions:   cfg.Submissions,
		archive:       cfg.Archive,
		publisher:     cfg.Publisher,
		lock:          cfg.Lock,
		queue:         cfg.Queue,
		retry:         cfg.Retry,
		limits:        cfg.Limits.withDefaults(),
		gradeTimeout:  cfg.GradeTimeout,
		statusTimeout: cfg.StatusTimeout,
		slotWait:      slotWait,
		sem:           make(chan struct{}, poolSize),
	}, nil
}

// Grade evaluates every question in order and aggregates the outcomes.
// Any request level error aborts the whole submission: no partial grade is
// ever returned.
func (s *Service) Grade(ctx context.Context, requestID string, questions []model.QuestionAnswer) (result.GradeResult, error) {
	perQuestion := make([][]result.Outcome, 0, len(questions))
	details := make([]result.QuestionResult, 0, len(questions))
	for _, q := range questions {
		if err := ctx.Err(); err != nil {
			return result.GradeResult{}, err
		}
		outcomes, err := s.evaluator.Evaluate(ctx, q.ExecutionRequest(requestID))
		if err != nil {
			return result.GradeResult{}, fmt.Errorf("grade question %s: %w", q.QuestionID, err)
		}
		perQuestion = append(perQuestion, outcomes)
		details = append(details, result.QuestionResult{QuestionID: q.QuestionID, Outcomes: outcomes})
	}
	grade := Aggregate(perQuestion)
	grade.Questions = details
	return grade, nil
}

// GradeSubmission runs the full grading pipeline for one submission and
// returns its terminal status. The returned status carries per-case
// outcomes even when the cached copy only keeps the summary.
//
// Questions supplied inline are graded but never written to the submission
// store; only answers loaded from the store produce a stored grade.
func (s *Service) GradeSubmission(ctx context.Context, msg model.GradeMessage) (model.GradeStatusResponse, error) {
	return s.gradeSubmission(ctx, msg, false)
}

// gradeSubmission leaves the status Pending with a JudgeQueueFull code when
// the pool is full and canRequeue is set; the caller will redeliver msg.
func (s *Service) gradeSubmission(ctx context.Context, msg model.GradeMessage, canRequeue bool) (model.GradeStatusResponse, error) {
	if msg.SubmissionID == "" {
		return model.GradeStatusResponse{}, appErr.ValidationError("submission_id", "required")
	}
	ctx = context.WithValue(ctx, contextkey.SubmissionID, msg.SubmissionID)

	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx, msg.SubmissionID)
		if err != nil {
			return model.GradeStatusResponse{}, err
		}
		if !ok {
			return model.GradeStatusResponse{}, appErr.New(appErr.TooManyRequests).WithMessage("submission is already being graded")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn(ctx, "release grade lock failed", zap.Error(err))
			}
		}()
	}

	status := model.GradeStatusResponse{
		SubmissionID: msg.SubmissionID,
		Status:       result.StatusPending,
		ReceivedAt:   time.Now().Unix(),
	}
	if err := s.saveStatus(ctx, status); err != nil {
		return model.GradeStatusResponse{}, err
	}

	if err := s.acquireSlot(ctx); err != nil {
		if canRequeue && appErr.Is(err, appErr.JudgeQueueFull) {
			return s.markRequeued(ctx, status, err)
		}
		return s.handleFailure(ctx, status, err)
	}
	defer s.releaseSlot()

	questions := msg.Questions
	inline := len(questions) > 0
	if !inline {
		var err error
		questions, err = s.loadQuestions(ctx, msg.SubmissionID)
		if err != nil {
			return s.handleFailure(ctx, status, err)
		}
	}

	status.Status = result.StatusRunning
	status.Progress.TotalCases = countCases(questions)
	if err := s.saveStatus(ctx, status); err != nil {
		return s.handleFailure(ctx, status, err)
	}

	s.tracker.Begin(status)
	defer s.tracker.End(msg.SubmissionID)

	ctxGrade := ctx
	if s.gradeTimeout > 0 {
		var cancel context.CancelFunc
		ctxGrade, cancel = context.WithTimeout(ctx, s.gradeTimeout)
		defer cancel()
	}
	grade, err := s.Grade(ctxGrade, msg.SubmissionID, questions)
	if err != nil {
		return s.handleFailure(ctx, status, err)
	}
	logger.Info(ctx, "submission graded",
		zap.Int("total_cases", grade.TotalCases),
		zap.Int("passed_cases", grade.PassedCases),
		zap.Float64("score", grade.Score),
	)

	summary := grade
	if s.archive != nil {
		key, err := s.archive.Put(ctx, msg.SubmissionID, grade)
		if err != nil {
			logger.Warn(ctx, "archive outcomes failed", zap.Error(err))
		} else {
			status.ArchiveKey = key
			summary.Questions = nil
		}
	}
	if s.submissions != nil && !inline {
		if err := s.submissions.SaveGrade(ctx, msg.SubmissionID, grade); err != nil {
			return s.handleFailure(ctx, status, err)
		}
	}

	status.Status = result.StatusFinished
	status.Progress.DoneCases = status.Progress.TotalCases
	status.FinishedAt = time.Now().Unix()
	status.Result = &summary
	if err := s.saveStatus(ctx, status); err != nil {
		return status, err
	}
	s.publishFinal(ctx, status)

	status.Result = &grade
	return status, nil
}

// GetStatus returns the cached status of a submission.
func (s *Service) GetStatus(ctx context.Context, submissionID string) (model.GradeStatusResponse, error) {
	return s.statusRepo.Get(ctx, submissionID)
}

func (s *Service) loadQuestions(ctx context.Context, submissionID string) ([]model.QuestionAnswer, error) {
	if s.submissions == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("no questions supplied and no submission store configured")
	}
	return s.submissions.LoadQuestions(ctx, submissionID)
}

func countCases(questions []model.QuestionAnswer) int {
	total := 0
	for _, q := range questions {
		total += len(q.TestCases)
	}
	return total
}

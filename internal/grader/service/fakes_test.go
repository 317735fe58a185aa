package service_test

import (
	"context"
	"errors"
	"sync"

	"examgrader/internal/common/mq"
	"examgrader/internal/grader/model"
	"examgrader/internal/grader/sandbox"
	"examgrader/internal/grader/sandbox/result"
	appErr "examgrader/pkg/errors"
)

type fakeEvaluator struct {
	mu       sync.Mutex
	requests []sandbox.ExecutionRequest
	reporter sandbox.StatusReporter
	fn       func(ctx context.Context, req sandbox.ExecutionRequest) ([]result.Outcome, error)
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, req sandbox.ExecutionRequest) ([]result.Outcome, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, req)
	}
	return echoOutcomes(ctx, req, f.reporter), nil
}

func (f *fakeEvaluator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// echoOutcomes pretends the code printed "<input>x2" for every input.
func echoOutcomes(ctx context.Context, req sandbox.ExecutionRequest, reporter sandbox.StatusReporter) []result.Outcome {
	out := make([]result.Outcome, len(req.Inputs))
	for i, in := range req.Inputs {
		out[i] = result.Outcome{CaseIndex: i, Input: in, Stdout: in + "x2\n", Status: result.CaseCompleted}
		if req.HasVerdicts() {
			out[i].Verdict = result.VerdictFailed
			if sandbox.OutputMatches(out[i].Stdout, req.Expected[i]) {
				out[i].Verdict = result.VerdictPassed
			}
		}
		if reporter != nil {
			_ = reporter.ReportStatus(ctx, sandbox.StatusUpdate{RequestID: req.RequestID, CaseIndex: i, TotalCases: len(req.Inputs), Status: result.CaseCompleted})
		}
	}
	return out
}

type memoryStatusStore struct {
	mu      sync.Mutex
	history []model.GradeStatusResponse
	latest  map[string]model.GradeStatusResponse
}

func newMemoryStatusStore() *memoryStatusStore {
	return &memoryStatusStore{latest: map[string]model.GradeStatusResponse{}}
}

func (m *memoryStatusStore) Get(ctx context.Context, submissionID string) (model.GradeStatusResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.latest[submissionID]
	if !ok {
		return model.GradeStatusResponse{}, appErr.New(appErr.SubmissionNotFound)
	}
	return st, nil
}

func (m *memoryStatusStore) Save(ctx context.Context, status model.GradeStatusResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, status)
	m.latest[status.SubmissionID] = status
	return nil
}

func (m *memoryStatusStore) statuses(submissionID string) []result.GradeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []result.GradeStatus
	for _, st := range m.history {
		if st.SubmissionID == submissionID {
			out = append(out, st.Status)
		}
	}
	return out
}

type fakeSubmissions struct {
	mu        sync.Mutex
	questions map[string][]model.QuestionAnswer
	saved     map[string]result.GradeResult
	saveErr   error
}

func (f *fakeSubmissions) LoadQuestions(ctx context.Context, submissionID string) ([]model.QuestionAnswer, error) {
	qs, ok := f.questions[submissionID]
	if !ok {
		return nil, appErr.New(appErr.SubmissionNotFound)
	}
	return qs, nil
}

func (f *fakeSubmissions) SaveGrade(ctx context.Context, submissionID string, grade result.GradeResult) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string]result.GradeResult{}
	}
	f.saved[submissionID] = grade
	return nil
}

type fakeArchive struct {
	puts map[string]result.GradeResult
	err  error
}

func (f *fakeArchive) Put(ctx context.Context, submissionID string, grade result.GradeResult) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.puts == nil {
		f.puts = map[string]result.GradeResult{}
	}
	f.puts[submissionID] = grade
	return "grades/" + submissionID + ".json.zst", nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.GradeStatusResponse
}

func (f *fakePublisher) PublishFinalStatus(ctx context.Context, status model.GradeStatusResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, status)
	return nil
}

type fakeLock struct {
	held map[string]bool
}

func (f *fakeLock) Acquire(ctx context.Context, submissionID string) (func(context.Context) error, bool, error) {
	if f.held[submissionID] {
		return nil, false, nil
	}
	f.held[submissionID] = true
	return func(context.Context) error {
		delete(f.held, submissionID)
		return nil
	}, true, nil
}

type fakeProducer struct {
	mu       sync.Mutex
	topics   []string
	messages []*mq.Message
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, message *mq.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, message)
	return nil
}

var errBoom = errors.New("boom")

// Package result defines execution outcomes and grading results.
package result

// GradeStatus represents the lifecycle state of a grading request.
type GradeStatus string

const (
	StatusPending  GradeStatus = "Pending"
	StatusRunning  GradeStatus = "Running"
	StatusFinished GradeStatus = "Finished"
	StatusFailed   GradeStatus = "Failed"
)

// CaseStatus is the terminal state of one test case run.
type CaseStatus string

const (
	CasePending      CaseStatus = "Pending"
	CaseRunning      CaseStatus = "Running"
	CaseCompleted    CaseStatus = "Completed"
	CaseTimeout      CaseStatus = "Timeout"
	CaseRuntimeError CaseStatus = "RuntimeError"
)

// Terminal reports whether the case has finished running.
func (s CaseStatus) Terminal() bool {
	return s == CaseCompleted || s == CaseTimeout || s == CaseRuntimeError
}

// Verdict is set only when an expected output was supplied for the case.
type Verdict string

const (
	VerdictNone   Verdict = ""
	VerdictPassed Verdict = "Passed"
	VerdictFailed Verdict = "Failed"
)

// TimeoutExitCode is reported in place of an exit code for killed processes.
const TimeoutExitCode = -1

// RunResult captures raw process execution data.
type RunResult struct {
	ExitCode   int
	WallTimeMs int64
	Stdout     string
	Stderr     string
	TimedOut   bool
	Truncated  bool
	// SpawnErr is set when the process could not be started at all.
	SpawnErr error
}

// CompileResult contains compilation outcomes.
type CompileResult struct {
	OK       bool
	ExitCode int
	TimeMs   int64
	TimedOut bool
	Error    string
}

// Outcome is the recorded result of one test case.
type Outcome struct {
	CaseIndex int        `json:"case_index"`
	Input     string     `json:"input"`
	Stdout    string     `json:"stdout"`
	Stderr    string     `json:"stderr"`
	ExitCode  int        `json:"exit_code"`
	Status    CaseStatus `json:"status"`
	Verdict   Verdict    `json:"verdict,omitempty"`
	TimeMs    int64      `json:"time_ms"`
	// Truncated is set when stdout or stderr hit the capture limit.
	Truncated bool `json:"truncated,omitempty"`
}

// Passed reports whether the case produced the expected output.
func (o Outcome) Passed() bool {
	return o.Verdict == VerdictPassed
}

// QuestionResult groups the outcomes of one question.
type QuestionResult struct {
	QuestionID string    `json:"question_id"`
	Outcomes   []Outcome `json:"outcomes"`
}

// GradeResult is the reduced score of a coding submission.
type GradeResult struct {
	TotalCases  int              `json:"total_cases"`
	PassedCases int              `json:"passed_cases"`
	Score       float64          `json:"score"`
	Questions   []QuestionResult `json:"questions,omitempty"`
}

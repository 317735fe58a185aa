package model

import "examgrader/internal/grader/sandbox/result"

// Progress counts finished test cases across all questions.
type Progress struct {
	TotalCases int `json:"total_cases"`
	DoneCases  int `json:"done_cases"`
}

// GradeStatusResponse is the cached state of one grading request.
type GradeStatusResponse struct {
	SubmissionID string              `json:"submission_id"`
	Status       result.GradeStatus  `json:"status"`
	Progress     Progress            `json:"progress"`
	Result       *result.GradeResult `json:"result,omitempty"`
	ArchiveKey   string              `json:"archive_key,omitempty"`
	ErrorCode    int                 `json:"error_code,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	ReceivedAt   int64               `json:"received_at"`
	FinishedAt   int64               `json:"finished_at,omitempty"`
}

// Terminal reports whether no further updates will follow.
func (s GradeStatusResponse) Terminal() bool {
	return s.Status == result.StatusFinished || s.Status == result.StatusFailed
}

const StatusEventFinal = "final"

// StatusEvent is published once a grading request reaches a terminal state.
type StatusEvent struct {
	Type      string              `json:"type"`
	Status    GradeStatusResponse `json:"status"`
	CreatedAt int64               `json:"created_at"`
}

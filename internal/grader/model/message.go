// Package model holds the wire types of the grader service.
package model

import "examgrader/internal/grader/sandbox"

// QuestionAnswer is one coding question of a submission together with the
// candidate's answer.
type QuestionAnswer struct {
	QuestionID string `json:"question_id"`
	LanguageID string `json:"language"`
	Code       string `json:"code"`
	// TestCases are fed to stdin one run each.
	TestCases []string `json:"test_cases"`
	// ExpectedOutputs pairs with TestCases by index.
	ExpectedOutputs []string `json:"correct_output"`
}

// ExecutionRequest converts q into a sandbox request scoped to requestID.
func (q QuestionAnswer) ExecutionRequest(requestID string) sandbox.ExecutionRequest {
	return sandbox.ExecutionRequest{
		RequestID:  requestID,
		LanguageID: q.LanguageID,
		Code:       q.Code,
		Inputs:     q.TestCases,
		Expected:   q.ExpectedOutputs,
	}
}

// GradeMessage is the Kafka payload of a grading task. When Questions is
// empty the grader loads them from the submission store.
type GradeMessage struct {
	SubmissionID string           `json:"submission_id"`
	Questions    []QuestionAnswer `json:"questions,omitempty"`
}

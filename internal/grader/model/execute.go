package model

// ExecuteRequest runs code against free-form inputs without grading.
type ExecuteRequest struct {
	Code      string   `json:"code" binding:"required"`
	Language  string   `json:"language" binding:"required"`
	TestCases []string `json:"test_cases"`
}

// ExecuteCaseResult mirrors what a terminal would show for one input.
type ExecuteCaseResult struct {
	TestCase   string `json:"test_case"`
	Output     string `json:"output"`
	Error      string `json:"error"`
	ReturnCode int    `json:"return_code"`
}

// ExecuteResponse lists results in input order.
type ExecuteResponse struct {
	Results []ExecuteCaseResult `json:"results"`
}

// GradeRequest is the body of a synchronous grading call.
type GradeRequest struct {
	Questions []QuestionAnswer `json:"questions"`
}

package service

import "examgrader/internal/grader/sandbox/result"

// Aggregate reduces per-question outcomes into a single score. Every case
// counts toward the total; only Passed cases count toward passed, so
// questions without expected outputs can lower but never raise the score.
func Aggregate(perQuestion [][]result.Outcome) result.GradeResult {
	var grade result.GradeResult
	for _, outcomes := range perQuestion {
		for _, o := range outcomes {
			grade.TotalCases++
			if o.Passed() {
				grade.PassedCases++
			}
		}
	}
	if grade.TotalCases > 0 {
		grade.Score = float64(grade.PassedCases) / float64(grade.TotalCases) * 100
	}
	return grade
}

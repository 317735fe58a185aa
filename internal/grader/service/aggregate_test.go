package service_test

import (
	"testing"

	"examgrader/internal/grader/sandbox/result"
	"examgrader/internal/grader/service"
)

func outcomes(verdicts ...result.Verdict) []result.Outcome {
	out := make([]result.Outcome, len(verdicts))
	for i, v := range verdicts {
		out[i] = result.Outcome{CaseIndex: i, Status: result.CaseCompleted, Verdict: v}
	}
	return out
}

func TestAggregate(t *testing.T) {
	t.Parallel()
	pass, fail, none := result.VerdictPassed, result.VerdictFailed, result.VerdictNone
	cases := []struct {
		name        string
		perQuestion [][]result.Outcome
		wantTotal   int
		wantPassed  int
		wantScore   float64
	}{
		{name: "empty", perQuestion: nil, wantScore: 0},
		{name: "questions without cases", perQuestion: [][]result.Outcome{{}, {}}, wantScore: 0},
		{name: "three of four", perQuestion: [][]result.Outcome{outcomes(pass, pass), outcomes(pass, fail)}, wantTotal: 4, wantPassed: 3, wantScore: 75},
		{name: "all passed", perQuestion: [][]result.Outcome{outcomes(pass)}, wantTotal: 1, wantPassed: 1, wantScore: 100},
		{name: "output only counts toward total", perQuestion: [][]result.Outcome{outcomes(pass), outcomes(none)}, wantTotal: 2, wantPassed: 1, wantScore: 50},
		{name: "all failed", perQuestion: [][]result.Outcome{outcomes(fail, fail, fail)}, wantTotal: 3, wantScore: 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := service.Aggregate(tc.perQuestion)
			if got.TotalCases != tc.wantTotal || got.PassedCases != tc.wantPassed || got.Score != tc.wantScore {
				t.Fatalf("got total=%d passed=%d score=%v", got.TotalCases, got.PassedCases, got.Score)
			}
		})
	}
}

func TestAggregateScoreBounds(t *testing.T) {
	t.Parallel()
	pass, fail := result.VerdictPassed, result.VerdictFailed
	got := service.Aggregate([][]result.Outcome{outcomes(pass, fail, fail)})
	if got.Score <= 33.3 || got.Score >= 33.4 {
		t.Fatalf("score = %v", got.Score)
	}
	if got.PassedCases > got.TotalCases {
		t.Fatalf("passed exceeds total: %+v", got)
	}
}

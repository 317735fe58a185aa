package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"examgrader/internal/grader/repository"
	"examgrader/internal/grader/sandbox/result"
	appErr "examgrader/pkg/errors"

	"github.com/go-sql-driver/mysql"
)

func newSubmissionDB() *fakeDB {
	return &fakeDB{
		submissions: map[int64]fakeSubmission{
			7: {examID: 3, answers: []byte(`{"11":"print(int(input())*2)","12":{"code":"int main(){}","language":"c"}}`)},
			8: {examID: 4, answers: nil},
		},
		questions: map[int64][][]interface{}{
			3: {
				{int64(10), []byte(`[]`), []byte(`[]`)},
				{int64(11), []byte(`["1","2"]`), []byte(`["2","4"]`)},
				{int64(12), []byte(`["x"]`), []byte(`["y"]`)},
			},
			4: {
				{int64(20), []byte(`["a"]`), nil},
			},
		},
		affected: 1,
	}
}

func TestLoadQuestionsPairsAnswersWithTestCases(t *testing.T) {
	t.Parallel()
	repo := repository.NewSubmissionRepository(newSubmissionDB())
	got, err := repo.LoadQuestions(context.Background(), "7")
	if err != nil {
		t.Fatalf("load questions failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected questions without test cases to be skipped, got %d", len(got))
	}
	if got[0].QuestionID != "11" || got[0].LanguageID != "python" || got[0].Code != "print(int(input())*2)" {
		t.Fatalf("unexpected first question: %+v", got[0])
	}
	if !reflect.DeepEqual(got[0].TestCases, []string{"1", "2"}) || !reflect.DeepEqual(got[0].ExpectedOutputs, []string{"2", "4"}) {
		t.Fatalf("unexpected cases: %+v", got[0])
	}
	if got[1].LanguageID != "c" || got[1].Code != "int main(){}" {
		t.Fatalf("unexpected second question: %+v", got[1])
	}
}

func TestLoadQuestionsUnansweredDefaultsToEmptyPython(t *testing.T) {
	t.Parallel()
	repo := repository.NewSubmissionRepository(newSubmissionDB())
	got, err := repo.LoadQuestions(context.Background(), "8")
	if err != nil {
		t.Fatalf("load questions failed: %v", err)
	}
	if len(got) != 1 || got[0].Code != "" || got[0].LanguageID != "python" || got[0].ExpectedOutputs != nil {
		t.Fatalf("unexpected questions: %+v", got)
	}
}

func TestLoadQuestionsErrors(t *testing.T) {
	t.Parallel()
	repo := repository.NewSubmissionRepository(newSubmissionDB())
	cases := []struct {
		id   string
		code appErr.ErrorCode
	}{
		{id: "99", code: appErr.SubmissionNotFound},
		{id: "abc", code: appErr.ValidationFailed},
		{id: "-1", code: appErr.ValidationFailed},
	}
	for _, tc := range cases {
		if _, err := repo.LoadQuestions(context.Background(), tc.id); !appErr.Is(err, tc.code) {
			t.Fatalf("id %q: expected %v, got %v", tc.id, tc.code, err)
		}
	}
}

func TestSaveGradeWritesAllColumns(t *testing.T) {
	t.Parallel()
	fdb := newSubmissionDB()
	repo := repository.NewSubmissionRepository(fdb)
	grade := result.GradeResult{TotalCases: 4, PassedCases: 3, Score: 75}
	if err := repo.SaveGrade(context.Background(), "7", grade); err != nil {
		t.Fatalf("save grade failed: %v", err)
	}
	if len(fdb.execs) != 1 {
		t.Fatalf("expected one update, got %d", len(fdb.execs))
	}
	want := []interface{}{75, 3, 75.0, int64(7)}
	if !reflect.DeepEqual(fdb.execs[0].args, want) {
		t.Fatalf("args = %v, want %v", fdb.execs[0].args, want)
	}
}

func TestSaveGradeUnchangedRowIsNotMissing(t *testing.T) {
	t.Parallel()
	fdb := newSubmissionDB()
	fdb.affected = 0
	repo := repository.NewSubmissionRepository(fdb)
	if err := repo.SaveGrade(context.Background(), "7", result.GradeResult{}); err != nil {
		t.Fatalf("expected unchanged row to succeed, got %v", err)
	}
	if err := repo.SaveGrade(context.Background(), "42", result.GradeResult{}); !appErr.Is(err, appErr.SubmissionNotFound) {
		t.Fatalf("expected SubmissionNotFound, got %v", err)
	}
}

func TestSaveGradeDatabaseError(t *testing.T) {
	t.Parallel()
	fdb := newSubmissionDB()
	fdb.execErr = errors.New("connection reset")
	repo := repository.NewSubmissionRepository(fdb)
	if err := repo.SaveGrade(context.Background(), "7", result.GradeResult{}); !appErr.Is(err, appErr.DatabaseError) {
		t.Fatalf("expected DatabaseError, got %v", err)
	}
}

func TestSaveGradeClassifiesDriverErrors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		code appErr.ErrorCode
	}{
		{name: "lost connection", err: fmt.Errorf("exec: %w", mysql.ErrInvalidConn), code: appErr.ServiceUnavailable},
		{name: "closed conn", err: sql.ErrConnDone, code: appErr.ServiceUnavailable},
		{name: "bad query", err: errors.New("Error 1054: Unknown column"), code: appErr.DatabaseError},
	}
	for _, tc := range cases {
		fdb := newSubmissionDB()
		fdb.execErr = tc.err
		repo := repository.NewSubmissionRepository(fdb)
		if err := repo.SaveGrade(context.Background(), "7", result.GradeResult{}); !appErr.Is(err, tc.code) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.code, err)
		}
	}
}

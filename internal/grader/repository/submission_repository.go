package repository

import (
	"context"
	"encoding/json"
	"strconv"

	"examgrader/internal/common/db"
	"examgrader/internal/grader/model"
	"examgrader/internal/grader/sandbox/result"
	appErr "examgrader/pkg/errors"
)

const defaultAnswerLanguage = "python"

const (
	selectSubmissionSQL = "SELECT exam_id, answers FROM exams_submission WHERE id = ?"
	selectQuestionsSQL  = "SELECT id, test_cases, correct_output FROM exams_question WHERE exam_id = ? ORDER BY id"
	updateGradeSQL      = "UPDATE exams_submission SET score = ?, correct_answers = ?, percentage = ? WHERE id = ?"
	submissionExistsSQL = "SELECT 1 FROM exams_submission WHERE id = ?"
)

// SubmissionRepository reads coding answers from and writes grades to the
// exam platform's submission tables.
type SubmissionRepository struct {
	db db.Database
}

func NewSubmissionRepository(database db.Database) *SubmissionRepository {
	return &SubmissionRepository{db: database}
}

// codingAnswer accepts either a bare code string or {"code", "language"}.
type codingAnswer struct {
	Code     string `json:"code"`
	Language string `json:"language"`
}

func (a *codingAnswer) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err == nil {
		a.Code = code
		return nil
	}
	type plain codingAnswer
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = codingAnswer(p)
	return nil
}

// LoadQuestions pairs each question of the submission's exam that has test
// cases with the answer stored under its id.
func (r *SubmissionRepository) LoadQuestions(ctx context.Context, submissionID string) ([]model.QuestionAnswer, error) {
	id, err := parseSubmissionID(submissionID)
	if err != nil {
		return nil, err
	}

	var examID int64
	var rawAnswers []byte
	if err := r.db.QueryRow(ctx, selectSubmissionSQL, id).Scan(&examID, &rawAnswers); err != nil {
		if db.IsNoRows(err) {
			return nil, appErr.New(appErr.SubmissionNotFound).WithDetail("submission_id", submissionID)
		}
		return nil, wrapDBError(err, "load submission failed")
	}
	answers := map[string]codingAnswer{}
	if len(rawAnswers) > 0 {
		if err := json.Unmarshal(rawAnswers, &answers); err != nil {
			return nil, appErr.Wrapf(err, appErr.ValidationFailed, "decode submission answers failed")
		}
	}

	rows, err := r.db.Query(ctx, selectQuestionsSQL, examID)
	if err != nil {
		return nil, wrapDBError(err, "load questions failed")
	}
	defer rows.Close()

	var questions []model.QuestionAnswer
	for rows.Next() {
		var questionID int64
		var rawCases, rawExpected []byte
		if err := rows.Scan(&questionID, &rawCases, &rawExpected); err != nil {
			return nil, wrapDBError(err, "scan question failed")
		}
		var cases, expected []string
		if err := decodeStringList(rawCases, &cases); err != nil {
			return nil, appErr.Wrapf(err, appErr.ValidationFailed, "decode test cases of question %d failed", questionID)
		}
		if len(cases) == 0 {
			continue
		}
		if err := decodeStringList(rawExpected, &expected); err != nil {
			return nil, appErr.Wrapf(err, appErr.ValidationFailed, "decode expected outputs of question %d failed", questionID)
		}
		qid := strconv.FormatInt(questionID, 10)
		answer := answers[qid]
		if answer.Language == "" {
			answer.Language = defaultAnswerLanguage
		}
		questions = append(questions, model.QuestionAnswer{
			QuestionID:      qid,
			LanguageID:      answer.Language,
			Code:            answer.Code,
			TestCases:       cases,
			ExpectedOutputs: expected,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError(err, "iterate questions failed")
	}
	return questions, nil
}

// SaveGrade stores score, correct_answers and percentage on the submission.
func (r *SubmissionRepository) SaveGrade(ctx context.Context, submissionID string, grade result.GradeResult) error {
	id, err := parseSubmissionID(submissionID)
	if err != nil {
		return err
	}
	res, err := r.db.Exec(ctx, updateGradeSQL, int(grade.Score), grade.PassedCases, grade.Score, id)
	if err != nil {
		return wrapDBError(err, "save grade failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapDBError(err, "read affected rows failed")
	}
	if affected > 0 {
		return nil
	}
	// MySQL reports 0 affected rows when the values did not change.
	var one int
	if err := r.db.QueryRow(ctx, submissionExistsSQL, id).Scan(&one); err != nil {
		if db.IsNoRows(err) {
			return appErr.New(appErr.SubmissionNotFound).WithDetail("submission_id", submissionID)
		}
		return wrapDBError(err, "check submission failed")
	}
	return nil
}

func parseSubmissionID(submissionID string) (int64, error) {
	id, err := strconv.ParseInt(submissionID, 10, 64)
	if err != nil || id <= 0 {
		return 0, appErr.ValidationError("submission_id", "must be a positive integer")
	}
	return id, nil
}

func decodeStringList(raw []byte, out *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// wrapDBError tags lost connections as ServiceUnavailable so callers can
// tell an outage from a bad query.
func wrapDBError(err error, format string, args ...interface{}) error {
	code := appErr.DatabaseError
	if db.IsConnectionError(err) {
		code = appErr.ServiceUnavailable
	}
	return appErr.Wrapf(err, code, format, args...)
}

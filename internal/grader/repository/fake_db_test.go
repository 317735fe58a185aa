package repository_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"examgrader/internal/common/db"
)

type fakeDB struct {
	submissions map[int64]fakeSubmission
	questions   map[int64][][]interface{}
	execs       []fakeExec
	affected    int64
	execErr     error
}

type fakeSubmission struct {
	examID  int64
	answers []byte
}

type fakeExec struct {
	query string
	args  []interface{}
}

func (f *fakeDB) Query(ctx context.Context, query string, args ...interface{}) (db.Rows, error) {
	examID := args[0].(int64)
	return &fakeRows{rows: f.questions[examID], idx: -1}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	id := args[0].(int64)
	sub, ok := f.submissions[id]
	if !ok {
		return fakeRow{err: sql.ErrNoRows}
	}
	if strings.HasPrefix(query, "SELECT 1") {
		return fakeRow{values: []interface{}{1}}
	}
	return fakeRow{values: []interface{}{sub.examID, sub.answers}}
}

func (f *fakeDB) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.execs = append(f.execs, fakeExec{query: query, args: args})
	return fakeResult{affected: f.affected}, nil
}

func (f *fakeDB) Ping(ctx context.Context) error { return nil }
func (f *fakeDB) Close() error                   { return nil }

type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type fakeRows struct {
	rows [][]interface{}
	idx  int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...interface{}) error { return assign(dest, r.rows[r.idx]) }
func (r *fakeRows) Close() error                   { return nil }
func (r *fakeRows) Err() error                     { return nil }

type fakeResult struct{ affected int64 }

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

func assign(dest []interface{}, values []interface{}) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = values[i].(int64)
		case *int:
			*p = values[i].(int)
		case *[]byte:
			if values[i] == nil {
				*p = nil
				continue
			}
			*p = values[i].([]byte)
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

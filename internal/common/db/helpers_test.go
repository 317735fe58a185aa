package db_test

import (
	"database/sql"
	"fmt"
	"testing"

	"examgrader/internal/common/db"

	"github.com/go-sql-driver/mysql"
)

func TestIsNoRows(t *testing.T) {
	t.Parallel()
	if !db.IsNoRows(fmt.Errorf("load: %w", sql.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to match")
	}
	if db.IsNoRows(sql.ErrTxDone) {
		t.Fatalf("unexpected match")
	}
}

func TestIsConnectionError(t *testing.T) {
	t.Parallel()
	if !db.IsConnectionError(fmt.Errorf("exec: %w", mysql.ErrInvalidConn)) {
		t.Fatalf("expected invalid conn to match")
	}
	if db.IsConnectionError(sql.ErrNoRows) {
		t.Fatalf("unexpected match")
	}
}

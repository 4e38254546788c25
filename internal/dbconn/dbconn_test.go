package dbconn

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestPool(t *testing.T) (*Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return Wrap(db, "primary"), mock
}

func TestExecSucceeds(t *testing.T) {
	pool, mock := newTestPool(t)
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := pool.Exec(context.Background(), "UPDATE users SET name = ? WHERE id = ?", "X", 7)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestExecNonRetryableErrorSurfacesImmediately(t *testing.T) {
	pool, mock := newTestPool(t)
	mock.ExpectExec("INSERT INTO").WillReturnError(errors.New("constraint violation"))

	_, err := pool.Exec(context.Background(), "INSERT INTO t (a) VALUES (?)", 1)
	if err == nil {
		t.Fatalf("expected error to surface")
	}
}

func TestIsRetryableErrorClassification(t *testing.T) {
	cases := map[string]bool{
		"driver: bad connection": true,
		"connection reset by peer": true,
		"lost connection to mysql server": true,
		"constraint violation":    false,
		"syntax error near 'SELECT'": false,
	}
	for msg, want := range cases {
		if got := isRetryableError(errors.New(msg)); got != want {
			t.Errorf("isRetryableError(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestPingSucceeds(t *testing.T) {
	pool, mock := newTestPool(t)
	mock.ExpectPing()
	if err := pool.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestQueryRowScansResult(t *testing.T) {
	pool, mock := newTestPool(t)
	rows := sqlmock.NewRows([]string{"count"}).AddRow(42)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(rows)

	var count int
	err := pool.QueryRow(context.Background(), func(row *sql.Row) error {
		return row.Scan(&count)
	}, "SELECT COUNT(*) FROM orders")
	if err != nil {
		t.Fatalf("QueryRow: %v", err)
	}
	if count != 42 {
		t.Fatalf("expected count=42, got %d", count)
	}
}

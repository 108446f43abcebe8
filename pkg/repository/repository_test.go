package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/zxlitianshu/Kekari-agent/pkg/database"
	"github.com/zxlitianshu/Kekari-agent/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
	errConflict  = errors.New("conflict")
)

func TestMapError(t *testing.T) {
	other := errors.New("some other error")
	fk := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"pg unique", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, errDuplicate},
		{"sqlite primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, errDuplicate},
		{"pg foreign key", fk, fk},
		{"passthrough", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repository.MapError(tt.err, errNotFound, errDuplicate); got != tt.want {
				t.Errorf("MapError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pg unique", &pgconn.PgError{Code: "23505"}, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"plain", errors.New("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repository.IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetry(t *testing.T) {
	isConflict := func(err error) bool { return errors.Is(err, errConflict) }
	permanent := errors.New("permanent")

	tests := []struct {
		name      string
		failures  []error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{"first try", nil, 2, 1, nil},
		{"recovers", []error{errConflict}, 2, 2, nil},
		{"exhausted", []error{errConflict, errConflict, errConflict}, 2, 2, errConflict},
		{"not retryable", []error{permanent}, 3, 1, permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, retries := 0, 0
			got, err := repository.Retry(context.Background(), tt.attempts, isConflict,
				func(int, error) { retries++ },
				func(attempt int) (int, error) {
					calls++
					if attempt <= len(tt.failures) {
						return 0, tt.failures[attempt-1]
					}
					return attempt, nil
				},
			)

			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("Retry() error = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls || retries != calls-1 {
				t.Errorf("calls = %d retries = %d, want %d calls", calls, retries, tt.wantCalls)
			}
			if err == nil && got != calls {
				t.Errorf("Retry() = %d, want %d", got, calls)
			}
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := repository.Retry(ctx, 5, func(error) bool { return true }, nil, func(int) (struct{}, error) {
		calls++
		cancel()
		return struct{}{}, errConflict
	})

	if !errors.Is(err, errConflict) || calls != 1 {
		t.Errorf("Retry() = %v after %d calls, want conflict after 1", err, calls)
	}
}

type item struct {
	ID   int
	Name string
}

func scanItem(s repository.Scanner) (item, error) {
	var it item
	err := s.Scan(&it.ID, &it.Name)
	return it, err
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(&database.Config{Driver: database.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT UNIQUE NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestQueryHelpers(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()

	items, err := repository.QueryMany(ctx, db, `SELECT id, name FROM items`, nil, scanItem)
	if err != nil || items == nil || len(items) != 0 {
		t.Fatalf("QueryMany(empty) = %v, %v, want empty non-nil slice", items, err)
	}

	for _, name := range []string{"chair", "desk"} {
		if err := repository.ExecExpectOne(ctx, db, `INSERT INTO items (name) VALUES ($1)`, name); err != nil {
			t.Fatalf("ExecExpectOne(insert) error = %v", err)
		}
	}

	err = repository.ExecExpectOne(ctx, db, `INSERT INTO items (name) VALUES ($1)`, "chair")
	if !repository.IsDuplicate(err) {
		t.Errorf("duplicate insert error = %v, want unique violation", err)
	}

	err = repository.ExecExpectOne(ctx, db, `UPDATE items SET name = $1 WHERE id = $2`, "lamp", 99)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ExecExpectOne(no match) = %v, want sql.ErrNoRows", err)
	}

	got, err := repository.QueryOne(ctx, db, `SELECT id, name FROM items WHERE name = $1`, []any{"desk"}, scanItem)
	if err != nil || got.Name != "desk" {
		t.Errorf("QueryOne() = %+v, %v", got, err)
	}

	_, err = repository.QueryOne(ctx, db, `SELECT id, name FROM items WHERE name = $1`, []any{"sofa"}, scanItem)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("QueryOne(missing) error = %v, want sql.ErrNoRows", err)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := repository.WithTx(ctx, db, func(tx *sql.Tx) (struct{}, error) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (name) VALUES ('chair')`); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	n, err := repository.WithTx(ctx, db, func(tx *sql.Tx) (int, error) {
		return repository.QueryOne(ctx, tx, `SELECT COUNT(*) FROM items`, nil, func(s repository.Scanner) (int, error) {
			var n int
			return n, s.Scan(&n)
		})
	})
	if err != nil || n != 0 {
		t.Errorf("rows after rollback = %d, %v, want 0", n, err)
	}
}

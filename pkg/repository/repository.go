// Package repository holds the SQL helpers shared by the durable stores:
// typed scanning, transactions, single-row expectations, and bounded
// retries of optimistic writes.
package repository

import (
	"context"
	"database/sql"
)

// Querier is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor is implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc converts one row into T.
type ScanFunc[T any] func(Scanner) (T, error)

// WithTx runs fn in a transaction, committing when fn succeeds and rolling
// back otherwise.
func WithTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (T, error) {
	var zero T

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return zero, err
	}
	defer tx.Rollback()

	result, err := fn(tx)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	return result, nil
}

// QueryOne scans the single row a query returns. A missing row surfaces as
// sql.ErrNoRows.
func QueryOne[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) (T, error) {
	return scan(q.QueryRowContext(ctx, query, args...))
}

// QueryMany scans every row a query returns. No rows yields an empty,
// non-nil slice.
func QueryMany[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// ExecExpectOne runs a statement that must affect exactly one row. Zero
// affected rows is reported as sql.ErrNoRows, which a compare-and-swap
// update reads as a lost race.
func ExecExpectOne(ctx context.Context, e Executor, query string, args ...any) error {
	result, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Retry calls fn up to attempts times while retryable reports its error as
// transient. onRetry, when set, runs before each further attempt. The last
// error is returned when attempts run out or ctx ends.
func Retry[T any](
	ctx context.Context,
	attempts int,
	retryable func(error) bool,
	onRetry func(attempt int, err error),
	fn func(attempt int) (T, error),
) (T, error) {
	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= max(attempts, 1); attempt++ {
		result, err = fn(attempt)
		if err == nil || !retryable(err) || attempt >= attempts {
			return result, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	return result, err
}

// Package repository holds the SQL data access for the parking engine. Each
// repository is bound to a database.DB so it can rebind placeholders for the
// active dialect. Methods ending in Tx run on a caller-supplied transaction
// (any DBTX) and never commit or roll back; the caller owns the unit of work.
package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a looked-up row does not exist. Services
// translate it into their own domain error (token not found, lot not found).
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a guarded update matched no row because the
// row is no longer in the expected state, e.g. a token that left ACTIVE
// between the read and the write.
var ErrConflict = errors.New("conflict")

// DBTX is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// affectedOne maps a guarded UPDATE result to ErrConflict when no row matched.
func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

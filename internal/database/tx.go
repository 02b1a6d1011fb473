package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/cenkalti/backoff/v5"

	"github.com/iliyamo/smart-parking/internal/model"
)

// TxFunc is one unit of work. It must use only the supplied tx and ctx.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

// RunInTx executes fn inside a transaction, committing on success and
// rolling back on any error. Each attempt is bounded by the configured
// timeout. Transient faults restart the whole unit with exponential
// backoff; when the attempts run out the error is reported as
// model.ErrTemporarilyUnavailable. Other errors are returned unchanged.
func (db *DB) RunInTx(ctx context.Context, fn TxFunc) error {
	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		err := db.runOnce(ctx, fn)
		if err == nil {
			return struct{}{}, nil
		}
		if ctx.Err() != nil || !IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		log.Printf("database: transient fault on attempt %d/%d: %v", attempt, db.maxAttempts, err)
		return struct{}{}, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = db.retryBackoff
	b.MaxInterval = 20 * db.retryBackoff

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(db.maxAttempts)),
	)
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Unwrap()
	}
	if err != nil && ctx.Err() == nil && IsTransient(err) {
		return fmt.Errorf("%w: %v", model.ErrTemporarilyUnavailable, err)
	}
	return err
}

func (db *DB) runOnce(ctx context.Context, fn TxFunc) error {
	actx, cancel := context.WithTimeout(ctx, db.txTimeout)
	defer cancel()

	tx, err := db.BeginTx(actx, db.Dialect.TxOptions())
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(actx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

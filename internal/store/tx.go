package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
)

// Tx is one unit of work against the gateway. It owns a single pooled
// connection from Begin until Commit or Rollback, whichever comes first.
//
// A Tx must be finished exactly once and must not be shared across
// concurrent operations. The usual shape is:
//
//	tx, err := store.Begin(ctx)
//	if err != nil { ... }
//	defer tx.Rollback(ctx) //nolint:errcheck // after Commit it reports ErrProtocolViolation, discarded here
//	...writes...
//	return tx.Commit(ctx)
type Tx struct {
	tx       pgx.Tx
	finished atomic.Bool
	onFinish func()
}

// Commit commits the transaction and returns the connection to the pool.
// Committing an already-finished Tx is a caller defect and returns
// ErrProtocolViolation.
func (t *Tx) Commit(ctx context.Context) error {
	if t == nil || t.tx == nil {
		return fmt.Errorf("%w: commit on nil transaction", ErrProtocolViolation)
	}
	if !t.finished.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: commit on finished transaction", ErrProtocolViolation)
	}
	defer t.release()

	if err := t.tx.Commit(ctx); err != nil {
		// pgx releases the connection even when Commit fails; the transaction
		// is rolled back server-side on connection teardown.
		return mapError("commit", err)
	}
	return nil
}

// Rollback rolls the transaction back and returns the connection to the pool.
// Any second finish, including Rollback after Commit, returns
// ErrProtocolViolation without reaching the driver. The deferred-rollback
// pattern stays safe: deferred callers discard the error.
func (t *Tx) Rollback(ctx context.Context) error {
	if t == nil || t.tx == nil {
		return fmt.Errorf("%w: rollback on nil transaction", ErrProtocolViolation)
	}
	if !t.finished.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: rollback on finished transaction", ErrProtocolViolation)
	}
	defer t.release()

	if err := t.tx.Rollback(ctx); err != nil {
		return mapError("rollback", err)
	}
	return nil
}

// Finished reports whether the Tx has been committed or rolled back.
func (t *Tx) Finished() bool {
	return t.finished.Load()
}

func (t *Tx) release() {
	if t.onFinish != nil {
		t.onFinish()
	}
}

// active returns the underlying pgx.Tx, or an error if the Tx was already
// finished. Every gateway write goes through this guard.
func (t *Tx) active(procedure string) (pgx.Tx, error) {
	if t == nil || t.tx == nil {
		return nil, fmt.Errorf("%w: %s on nil transaction", ErrProtocolViolation, procedure)
	}
	if t.finished.Load() {
		return nil, fmt.Errorf("%w: %s on finished transaction", ErrProtocolViolation, procedure)
	}
	return t.tx, nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConnection indicates a connection could not be acquired or was lost
	// mid-operation. Transient: safe to retry from the top-level caller with a
	// fresh transaction, never inside an open one.
	ErrConnection = errors.New("database connection failure")

	// ErrProtocolViolation indicates internal misuse of a Tx: finishing it
	// twice, or using it after it was finished. Always a programming defect.
	ErrProtocolViolation = errors.New("transaction protocol violation")

	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// ProcedureError is a business-rule rejection from the database, e.g. a
// constraint violation. Not retryable; surfaced to the caller unchanged.
type ProcedureError struct {
	Procedure string // gateway operation that failed
	Code      string // PostgreSQL error code (pgerrcode)
	Message   string
}

func (e *ProcedureError) Error() string {
	return fmt.Sprintf("%s: procedure rejected (code %s): %s", e.Procedure, e.Code, e.Message)
}

// mapError classifies a pgx error for the given gateway operation.
// PgError becomes *ProcedureError (class 08 connection exceptions excepted),
// transport and context failures become ErrConnection.
func mapError(procedure string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", procedure, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is a connection exception, not a business rejection
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
			return fmt.Errorf("%s: %w: %s", procedure, ErrConnection, pgErr.Message)
		}
		return &ProcedureError{Procedure: procedure, Code: pgErr.Code, Message: pgErr.Message}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %v", procedure, ErrConnection, err)
	}

	return fmt.Errorf("%s: %w: %v", procedure, ErrConnection, err)
}

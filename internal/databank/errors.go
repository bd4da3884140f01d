package databank

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrPoolExhausted means no connection became free within the acquire
	// timeout. Callers should back off and retry the batch later.
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrConnectionLost marks transient connectivity failures. The upsert
	// engine retries these internally before surfacing them.
	ErrConnectionLost = errors.New("database connection lost")

	// ErrConstraintViolation marks a permanent per-record failure, e.g. a
	// comment referencing a never-seen content. The batch continues.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrSerializationConflict marks a concurrent-upsert conflict reported
	// by the store. Retried internally with backoff.
	ErrSerializationConflict = errors.New("serialization conflict")
)

// Postgres error codes relevant to the ingestion path
const (
	pgForeignKeyViolation  = "23503"
	pgNotNullViolation     = "23502"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classify maps a raw store error onto the ingestion taxonomy. Context
// errors and pool exhaustion pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPoolExhausted) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation, pgNotNullViolation, pgCheckViolation:
			return fmt.Errorf("%w: %s", ErrConstraintViolation, pgErr.Message)
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrSerializationConflict, pgErr.Message)
		default:
			return err
		}
	}
	// Anything else at this point is a broken or dropped connection
	return fmt.Errorf("%w: %v", ErrConnectionLost, err)
}

// retryable reports whether the upsert engine should transparently retry
func retryable(err error) bool {
	return errors.Is(err, ErrSerializationConflict) || errors.Is(err, ErrConnectionLost)
}

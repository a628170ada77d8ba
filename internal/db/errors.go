// Package db provides error types for graph store operations.
package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
)

// Sentinel errors for graph store operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDuplicate indicates a write hit a unique index (fact or mention
	// already recorded). Callers treat this as idempotent success.
	ErrDuplicate = errors.New("record already exists")

	// ErrTransactionConflict indicates a SurrealDB transaction conflict
	// between concurrent writers. Callers should retry.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
)

// wrapQueryError inspects a SurrealDB error and wraps it with the
// appropriate sentinel if it matches a known query error pattern.
func wrapQueryError(err error) error {
	if err == nil {
		return nil
	}

	var queryErr *surrealdb.QueryError
	if errors.As(err, &queryErr) {
		msg := queryErr.Message
		if strings.Contains(msg, "already contains") || strings.Contains(msg, "already exists") {
			return fmt.Errorf("%w: %s", ErrDuplicate, msg)
		}
		if strings.Contains(msg, "Transaction conflict") {
			return fmt.Errorf("%w: %s", ErrTransactionConflict, msg)
		}
	}

	return err
}

// IsRetryable reports whether a store error is worth retrying: transaction
// conflicts and transport-level failures qualify, constraint violations do not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, ErrTransactionConflict) {
		return true
	}
	// Anything that is not a database-level query error is assumed to be a
	// connection problem surfaced by the websocket transport.
	var queryErr *surrealdb.QueryError
	return !errors.As(err, &queryErr)
}

package service

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ValidationError is fatal to the current call and never partially applied.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func validationf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ConflictError wraps a commit rejected by the store. Its message is the
// store's, verbatim; the engine never retries.
type ConflictError struct {
	Err error
	// SQLState is the postgres error code when the driver reported one.
	SQLState string
}

func (e *ConflictError) Error() string { return e.Err.Error() }
func (e *ConflictError) Unwrap() error { return e.Err }

// Concurrent reports a serialization failure or a unique violation, i.e. the
// commit lost a race with another writer.
func (e *ConflictError) Concurrent() bool {
	switch e.SQLState {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}

func newConflict(err error) *ConflictError {
	c := &ConflictError{Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		c.SQLState = pgErr.Code
	}
	return c
}

// StageError reports an adapter that rejected its staged write. The unit is
// aborted before commit.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// ErrSaleNotFound is returned by lookups by id or code.
var ErrSaleNotFound = errors.New("sale not found")

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

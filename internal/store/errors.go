package store

import (
	"errors"
	"fmt"
)

// ErrDuplicate marks a unique constraint violation (MySQL error 1062 or the
// in-memory equivalent).
var ErrDuplicate = errors.New("duplicate entry")

// StoreError wraps any failure of the underlying data store.  Its message is
// meant to be shown to the admin as-is.
type StoreError struct {
	Op    string // find, insert, update, delete, count, tx
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NotFoundError is returned by FindOne and Update when no row matches.
type NotFoundError struct {
	Table  string
	Filter Filter
}

func (e *NotFoundError) Error() string {
	if len(e.Filter) == 0 {
		return fmt.Sprintf("%s: record not found", e.Table)
	}
	return fmt.Sprintf("%s: record not found (%s)", e.Table, e.Filter)
}

// IsNotFound reports whether err is, or wraps, a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicate) }

func wrapErr(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return err
	}
	return &StoreError{Op: op, Table: table, Err: err}
}

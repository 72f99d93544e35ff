// Package repository is the only path through which requests, comments and
// user accounts are read or written.  Failures are reported as
// *StorageError; ErrConstraint can be matched with errors.Is to tell
// uniqueness and foreign-key violations apart from I/O faults.
package repository

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a single-row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// ErrConstraint matches storage errors caused by a UNIQUE, NOT NULL or
// FOREIGN KEY constraint.
var ErrConstraint = errors.New("constraint violation")

// StorageError wraps a database failure with the operation that hit it.
// The write it belongs to has been rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports constraint failures as ErrConstraint.
func (e *StorageError) Is(target error) bool {
	return target == ErrConstraint && isConstraint(e.Err)
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func isConstraint(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

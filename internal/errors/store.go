package errors

import (
	"errors"
	"fmt"
)

// StoreUnavailableError means the local store is not open or could not be opened.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store unavailable (%s): %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store unavailable (%s)", e.Op)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// NewStoreUnavailableError creates a StoreUnavailableError for the given operation.
func NewStoreUnavailableError(op string, err error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, Err: err}
}

// IsStoreUnavailable reports whether err is a StoreUnavailableError (even when wrapped).
func IsStoreUnavailable(err error) bool {
	var target *StoreUnavailableError
	return errors.As(err, &target)
}

// WriteFailedError is returned when a put, clear or drop fails part way.
// Index is the position of the failing record within its batch, or -1.
type WriteFailedError struct {
	Op    string
	Index int
	Err   error
}

func (e *WriteFailedError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("write failed (%s, item %d): %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("write failed (%s): %v", e.Op, e.Err)
}

func (e *WriteFailedError) Unwrap() error {
	return e.Err
}

// NewWriteFailedError creates a WriteFailedError that is not tied to a single item.
func NewWriteFailedError(op string, err error) *WriteFailedError {
	return &WriteFailedError{Op: op, Index: -1, Err: err}
}

// NewItemWriteFailedError creates a WriteFailedError for the item at index.
func NewItemWriteFailedError(op string, index int, err error) *WriteFailedError {
	return &WriteFailedError{Op: op, Index: index, Err: err}
}

// IsWriteFailed reports whether err is a WriteFailedError (even when wrapped).
func IsWriteFailed(err error) bool {
	var target *WriteFailedError
	return errors.As(err, &target)
}

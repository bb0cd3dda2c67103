package errors

import (
	"errors"
	"fmt"
)

// FetchFailedError wraps any failure to obtain the remote collection.
type FetchFailedError struct {
	Source string
	Err    error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch from %s failed: %v", e.Source, e.Err)
}

func (e *FetchFailedError) Unwrap() error {
	return e.Err
}

// NewFetchFailedError creates a FetchFailedError for the named source.
func NewFetchFailedError(source string, err error) *FetchFailedError {
	return &FetchFailedError{Source: source, Err: err}
}

// IsFetchFailed reports whether err is a FetchFailedError (even when wrapped).
func IsFetchFailed(err error) bool {
	var target *FetchFailedError
	return errors.As(err, &target)
}

package exitcode

import (
	"errors"
	"fmt"
)

// Exit statuses shared by extpack-pack and extpack-fetch.
const (
	// OK indicates the command completed successfully.
	OK = 0
	// Failure indicates a generic failure, including missing or unknown arguments.
	Failure = 1
	// MissingURL indicates the fetcher was asked to download without a URL.
	MissingURL = 2
	// TooSmall indicates the downloaded artifact is missing, truncated, smaller than the threshold or otherwise invalid.
	TooSmall = 3
)

// Error wraps a cause with the exit status the process should terminate with.
type Error struct {
	// Code is the process exit status.
	Code int
	// Err is the underlying cause.
	Err error
}

// New returns an *Error with the given status and cause.
func New(code int, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}

	return e.Err.Error()
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// FromError maps err to a process exit status.
// A nil error is OK; errors without an attached status are Failure.
func FromError(err error) int {
	if err == nil {
		return OK
	}

	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}

	return Failure
}

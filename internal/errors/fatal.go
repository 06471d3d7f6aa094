package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredentials is returned when no library card number or password is configured.
	ErrMissingCredentials = errors.New("library card number and password are required")
	// ErrLoginFailed is returned when the catalogue still shows the login form after submitting it.
	ErrLoginFailed = errors.New("login failed")
)

// RetriesExhaustedError is returned once a retryable operation has used all its attempts.
type RetriesExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Err
}

// IsRetriesExhausted reports whether err is a RetriesExhaustedError (even when wrapped).
func IsRetriesExhausted(err error) bool {
	var exhausted *RetriesExhaustedError
	return errors.As(err, &exhausted)
}

// PanicError carries a value recovered from a panicking worker.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panicked: %v", e.Value)
}

// IsPanicError reports whether err is a PanicError (even when wrapped).
func IsPanicError(err error) bool {
	var panicErr *PanicError
	return errors.As(err, &panicErr)
}

package session

import (
	"errors"
)

// Error codes raised by the tracker. The auth-store/ prefix keeps them apart
// from provider codes.
const (
	CodeLoadingTimedOut = "auth-store/loading-timed-out"
	CodeUnloaded        = "auth-store/unloaded"
	CodeUnknown         = "auth-store/unknown-error"
)

var (
	// ErrLoadingTimedOut matches errors returned when WaitUntilLoaded gives up
	ErrLoadingTimedOut = &Error{Code: CodeLoadingTimedOut, Message: "auth state not loaded within the timeout period"}
	// ErrUnloaded matches errors returned to waiters released by Unload
	ErrUnloaded = &Error{Code: CodeUnloaded, Message: "tracker unloaded while waiting for auth state"}
)

// Error is a coded tracker error
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// ErrorCode returns the error code
func (e *Error) ErrorCode() string {
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a tracker error with the same code
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

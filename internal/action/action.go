// Package action wraps one-shot identity provider calls (sign up, sign in,
// password reset, email verification and recovery) as small observable state
// machines.
//
// Every wrapper follows the same contract:
//   - a second call while one is in flight fails with ErrAlreadySubmitting
//   - a failure code the wrapper knows about becomes the Result, with a nil error
//   - any other failure leaves the Result empty, is reported to the handler
//     given with WithErrorHandler, and is returned
//
// Example:
//
//	signIn := action.NewSignIn(client, action.WithErrorHandler(func(err error) {
//	    log.Printf("unexpected sign in failure: %v", err)
//	}))
//	result, err := signIn.Submit(ctx, email, password)
//	if err != nil {
//	    return err
//	}
//	if result == action.Result(identity.CodeInvalidCredential) {
//	    // show "wrong email or password"
//	}
package action

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/otiai10/firesession/internal/identity"
)

// Result is the outcome recorded by a wrapper. Failure results carry the
// provider code, e.g. Result(identity.CodeInvalidCredential).
type Result string

// Success results
const (
	ResultSuccess         Result = "success"
	ResultEnterPassword   Result = "enter-password"
	ResultPasswordUpdated Result = "password-updated"
	ResultLinkSent        Result = "link-sent"
	ResultEmailVerified   Result = "email-verified"
)

// Coded reports whether r is a classified provider failure
func (r Result) Coded() bool {
	switch r {
	case "", ResultSuccess, ResultEnterPassword, ResultPasswordUpdated, ResultLinkSent, ResultEmailVerified:
		return false
	}
	return true
}

var (
	// ErrAlreadySubmitting is returned when a wrapper is called while busy
	ErrAlreadySubmitting = errors.New("already submitting")
	// ErrNotLoaded is returned by SendEmailVerification.Send before Load
	ErrNotLoaded = errors.New("not loaded yet")
	// ErrNotSignedIn is returned when an action needs a principal and there is none
	ErrNotSignedIn = errors.New("user unexpectedly not authenticated")

	// errDone stops a one-shot Handle that already has a result
	errDone = errors.New("already handled")
)

// Option configures a wrapper
type Option func(*options)

type options struct {
	onError func(error)
	logger  *zap.Logger
}

// WithErrorHandler receives every unclassified failure
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// fail wraps an unclassified failure and hands it to the error handler
func (o options) fail(op string, err error) error {
	wrapped := fmt.Errorf("failed to %s: %w", op, err)
	o.logger.Error("unexpected provider failure",
		zap.String("action", op),
		zap.String("code", identity.ErrorCode(err)),
		zap.Error(err))
	if o.onError != nil {
		o.onError(wrapped)
	}
	return wrapped
}

// classify maps err to a Result when its code is one of known
func classify(err error, known ...string) (Result, bool) {
	code := identity.ErrorCode(err)
	if code == "" || !slices.Contains(known, code) {
		return "", false
	}
	return Result(code), true
}

// internalError reports a provider response missing a required field
func internalError(format string, args ...any) error {
	return &identity.Error{Code: identity.CodeInternal, Message: fmt.Sprintf(format, args...)}
}

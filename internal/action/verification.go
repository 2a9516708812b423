package action

import (
	"context"

	"github.com/otiai10/firesession/internal/identity"
	"github.com/otiai10/firesession/internal/session"
)

// EmailVerificationState is the state of the verification email flow
type EmailVerificationState struct {
	Loaded     bool   `json:"loaded"`
	Submitting bool   `json:"submitting"`
	Email      string `json:"email,omitempty"`
	Result     Result `json:"result,omitempty"`
}

// SessionSource exposes the current session snapshot
type SessionSource interface {
	Snapshot() session.Snapshot
}

// VerificationSender reloads accounts and sends verification emails
type VerificationSender interface {
	Reload(ctx context.Context, user *identity.User) (*identity.User, error)
	SendEmailVerification(ctx context.Context, user *identity.User) error
}

// SendEmailVerification sends a verification email to the signed-in user
type SendEmailVerification struct {
	*store[EmailVerificationState]
	session  SessionSource
	provider VerificationSender
	opts     options
}

// NewSendEmailVerification creates the verification email wrapper.
// Call Load once the session has a principal.
func NewSendEmailVerification(sessions SessionSource, provider VerificationSender, opts ...Option) *SendEmailVerification {
	return &SendEmailVerification{
		store:    newStore(EmailVerificationState{}),
		session:  sessions,
		provider: provider,
		opts:     newOptions(opts),
	}
}

// Load reloads the principal to read its current verification status.
// Result becomes ResultEmailVerified when there is nothing left to send.
// Load does nothing once loaded; returns ErrNotSignedIn without a principal.
func (a *SendEmailVerification) Load(ctx context.Context) (EmailVerificationState, error) {
	if st := a.State(); st.Loaded {
		return st, nil
	}
	user := a.session.Snapshot().Principal
	if user == nil {
		return a.State(), ErrNotSignedIn
	}

	fresh, err := a.provider.Reload(ctx, user)
	if err != nil {
		return a.State(), a.opts.fail("reload user", err)
	}
	if fresh == nil {
		fresh = user
	}

	return a.swap(func(st EmailVerificationState) (EmailVerificationState, error) {
		st.Loaded = true
		st.Email = fresh.Email
		st.Result = ""
		if fresh.EmailVerified {
			st.Result = ResultEmailVerified
		}
		return st, nil
	})
}

// Send emails a verification link to the principal. Result: ResultLinkSent.
func (a *SendEmailVerification) Send(ctx context.Context) (Result, error) {
	_, err := a.swap(func(st EmailVerificationState) (EmailVerificationState, error) {
		if !st.Loaded {
			return st, ErrNotLoaded
		}
		if st.Submitting {
			return st, ErrAlreadySubmitting
		}
		st.Submitting = true
		st.Result = ""
		return st, nil
	})
	if err != nil {
		return "", err
	}

	finish := func(result Result) {
		a.swap(func(st EmailVerificationState) (EmailVerificationState, error) {
			st.Submitting = false
			st.Result = result
			return st, nil
		})
	}

	user := a.session.Snapshot().Principal
	if user == nil {
		finish("")
		return "", ErrNotSignedIn
	}
	if err := a.provider.SendEmailVerification(ctx, user); err != nil {
		finish("")
		return "", a.opts.fail("send email verification", err)
	}
	finish(ResultLinkSent)
	return ResultLinkSent, nil
}

// Reset returns to the initial state so Load runs again
func (a *SendEmailVerification) Reset() {
	a.set(EmailVerificationState{})
}

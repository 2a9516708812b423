package action

import (
	"context"

	"github.com/otiai10/firesession/internal/identity"
)

var actionCodeErrors = []string{
	identity.CodeExpiredActionCode,
	identity.CodeInvalidActionCode,
}

// ResetPasswordState is the state of a password reset link
type ResetPasswordState struct {
	Loaded     bool   `json:"loaded"`
	Submitting bool   `json:"submitting"`
	Result     Result `json:"result,omitempty"`
	Email      string `json:"email,omitempty"`
}

// PasswordResetter checks and redeems password reset codes
type PasswordResetter interface {
	VerifyPasswordResetCode(ctx context.Context, oobCode string) (string, error)
	ConfirmPasswordReset(ctx context.Context, oobCode, newPassword string) error
}

// ResetPassword drives a password reset link: Handle checks the code, then
// Confirm sets the new password.
type ResetPassword struct {
	*store[ResetPasswordState]
	provider PasswordResetter
	opts     options
}

// NewResetPassword creates the password reset wrapper
func NewResetPassword(provider PasswordResetter, opts ...Option) *ResetPassword {
	return &ResetPassword{
		store:    newStore(ResetPasswordState{}),
		provider: provider,
		opts:     newOptions(opts),
	}
}

// Handle verifies oobCode once. Results: ResultEnterPassword with the
// account email, auth/expired-action-code, auth/invalid-action-code.
// After the first completed call Handle returns the recorded result.
func (a *ResetPassword) Handle(ctx context.Context, oobCode string) (Result, error) {
	st, err := a.swap(func(st ResetPasswordState) (ResetPasswordState, error) {
		if st.Submitting {
			return st, ErrAlreadySubmitting
		}
		if st.Loaded {
			return st, errDone
		}
		st.Submitting = true
		return st, nil
	})
	if err == errDone {
		return st.Result, nil
	}
	if err != nil {
		return "", err
	}

	email, err := a.provider.VerifyPasswordResetCode(ctx, oobCode)
	if err == nil && email == "" {
		err = internalError("email unexpectedly empty during reset password action")
	}
	if err != nil {
		if result, ok := classify(err, actionCodeErrors...); ok {
			a.set(ResetPasswordState{Loaded: true, Result: result})
			return result, nil
		}
		a.set(ResetPasswordState{})
		return "", a.opts.fail("verify password reset code", err)
	}

	a.set(ResetPasswordState{Loaded: true, Result: ResultEnterPassword, Email: email})
	return ResultEnterPassword, nil
}

// Confirm sets newPassword. Results: ResultPasswordUpdated,
// auth/expired-action-code, auth/invalid-action-code, auth/weak-password.
// The email found by Handle is kept.
func (a *ResetPassword) Confirm(ctx context.Context, oobCode, newPassword string) (Result, error) {
	_, err := a.swap(func(st ResetPasswordState) (ResetPasswordState, error) {
		if st.Submitting {
			return st, ErrAlreadySubmitting
		}
		st.Submitting = true
		return st, nil
	})
	if err != nil {
		return "", err
	}

	finish := func(result Result) {
		a.swap(func(st ResetPasswordState) (ResetPasswordState, error) {
			st.Submitting = false
			if result != "" {
				st.Result = result
			}
			return st, nil
		})
	}

	if err := a.provider.ConfirmPasswordReset(ctx, oobCode, newPassword); err != nil {
		known := append([]string{identity.CodeWeakPassword}, actionCodeErrors...)
		if result, ok := classify(err, known...); ok {
			finish(result)
			return result, nil
		}
		finish("")
		return "", a.opts.fail("confirm password reset", err)
	}
	finish(ResultPasswordUpdated)
	return ResultPasswordUpdated, nil
}

// VerifyEmailState is the state of an email verification link
type VerifyEmailState struct {
	Loaded     bool   `json:"loaded"`
	Submitting bool   `json:"submitting"`
	Result     Result `json:"result,omitempty"`
}

// EmailVerifier applies verification codes and refreshes the current user
type EmailVerifier interface {
	ApplyActionCode(ctx context.Context, oobCode string) error
	CurrentUser() *identity.User
	RefreshIDToken(ctx context.Context, user *identity.User, force bool) (*identity.User, error)
}

// VerifyEmail applies an email verification code
type VerifyEmail struct {
	*store[VerifyEmailState]
	provider EmailVerifier
	opts     options
}

// NewVerifyEmail creates the email verification wrapper
func NewVerifyEmail(provider EmailVerifier, opts ...Option) *VerifyEmail {
	return &VerifyEmail{
		store:    newStore(VerifyEmailState{}),
		provider: provider,
		opts:     newOptions(opts),
	}
}

// Handle applies oobCode once. Results: ResultSuccess,
// auth/expired-action-code, auth/invalid-action-code.
//
// The link may be opened on a device where nobody is signed in. When someone
// is, their ID token is refreshed so the email_verified claim is current.
func (a *VerifyEmail) Handle(ctx context.Context, oobCode string) (Result, error) {
	st, err := a.swap(func(st VerifyEmailState) (VerifyEmailState, error) {
		if st.Submitting {
			return st, ErrAlreadySubmitting
		}
		if st.Loaded {
			return st, errDone
		}
		st.Submitting = true
		return st, nil
	})
	if err == errDone {
		return st.Result, nil
	}
	if err != nil {
		return "", err
	}

	err = a.provider.ApplyActionCode(ctx, oobCode)
	if err == nil {
		if user := a.provider.CurrentUser(); user != nil {
			_, err = a.provider.RefreshIDToken(ctx, user, true)
		}
	}
	if err != nil {
		if result, ok := classify(err, actionCodeErrors...); ok {
			a.set(VerifyEmailState{Loaded: true, Result: result})
			return result, nil
		}
		a.set(VerifyEmailState{})
		return "", a.opts.fail("verify email", err)
	}

	a.set(VerifyEmailState{Loaded: true, Result: ResultSuccess})
	return ResultSuccess, nil
}

// RecoverEmailState is the state of an email recovery link
type RecoverEmailState struct {
	Loaded     bool   `json:"loaded"`
	Submitting bool   `json:"submitting"`
	Result     Result `json:"result,omitempty"`
	Email      string `json:"email,omitempty"`
}

// EmailRecoverer reverts an email change
type EmailRecoverer interface {
	CheckActionCode(ctx context.Context, oobCode string) (*identity.ActionCodeInfo, error)
	ApplyActionCode(ctx context.Context, oobCode string) error
	SendPasswordResetEmail(ctx context.Context, email string) error
}

// RecoverEmail restores the email address an account had before a change
type RecoverEmail struct {
	*store[RecoverEmailState]
	provider EmailRecoverer
	opts     options
}

// NewRecoverEmail creates the email recovery wrapper
func NewRecoverEmail(provider EmailRecoverer, opts ...Option) *RecoverEmail {
	return &RecoverEmail{
		store:    newStore(RecoverEmailState{}),
		provider: provider,
		opts:     newOptions(opts),
	}
}

// Handle checks oobCode, applies it, and sends a password reset email to the
// restored address in case the change was malicious. Results: ResultSuccess
// with the restored email, auth/expired-action-code,
// auth/invalid-action-code, auth/email-already-in-use.
func (a *RecoverEmail) Handle(ctx context.Context, oobCode string) (Result, error) {
	st, err := a.swap(func(st RecoverEmailState) (RecoverEmailState, error) {
		if st.Submitting {
			return st, ErrAlreadySubmitting
		}
		if st.Loaded {
			return st, errDone
		}
		st.Submitting = true
		return st, nil
	})
	if err == errDone {
		return st.Result, nil
	}
	if err != nil {
		return "", err
	}

	email, err := a.recover(ctx, oobCode)
	if err != nil {
		known := append([]string{identity.CodeEmailAlreadyInUse}, actionCodeErrors...)
		if result, ok := classify(err, known...); ok {
			a.set(RecoverEmailState{Loaded: true, Result: result})
			return result, nil
		}
		a.set(RecoverEmailState{})
		return "", a.opts.fail("recover email", err)
	}

	a.set(RecoverEmailState{Loaded: true, Result: ResultSuccess, Email: email})
	return ResultSuccess, nil
}

func (a *RecoverEmail) recover(ctx context.Context, oobCode string) (string, error) {
	info, err := a.provider.CheckActionCode(ctx, oobCode)
	if err != nil {
		return "", err
	}
	if info == nil || info.Email == "" {
		return "", internalError("email unexpectedly empty during email recovery action")
	}
	if err := a.provider.ApplyActionCode(ctx, oobCode); err != nil {
		return "", err
	}
	if err := a.provider.SendPasswordResetEmail(ctx, info.Email); err != nil {
		return "", err
	}
	return info.Email, nil
}

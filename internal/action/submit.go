package action

import (
	"context"

	"github.com/otiai10/firesession/internal/identity"
)

// SubmitState is the state of the plain request/response wrappers
type SubmitState struct {
	Submitting bool   `json:"submitting"`
	Result     Result `json:"result,omitempty"`
}

// submitter runs one call at a time and records its Result
type submitter struct {
	*store[SubmitState]
	op    string
	known []string
	opts  options
}

func newSubmitter(op string, opts []Option, known ...string) submitter {
	return submitter{
		store: newStore(SubmitState{}),
		op:    op,
		known: known,
		opts:  newOptions(opts),
	}
}

func (s submitter) run(ctx context.Context, call func(context.Context) error) (Result, error) {
	_, err := s.swap(func(st SubmitState) (SubmitState, error) {
		if st.Submitting {
			return st, ErrAlreadySubmitting
		}
		return SubmitState{Submitting: true}, nil
	})
	if err != nil {
		return "", err
	}

	if err := call(ctx); err != nil {
		if result, ok := classify(err, s.known...); ok {
			s.set(SubmitState{Result: result})
			return result, nil
		}
		s.set(SubmitState{})
		return "", s.opts.fail(s.op, err)
	}
	s.set(SubmitState{Result: ResultSuccess})
	return ResultSuccess, nil
}

// UserCreator creates email/password accounts
type UserCreator interface {
	CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*identity.User, error)
}

// CreateUser signs up a new email/password account.
//
// Results: ResultSuccess, auth/email-already-in-use, auth/invalid-email,
// auth/weak-password.
type CreateUser struct {
	submitter
	provider UserCreator
}

// NewCreateUser creates the sign up wrapper
func NewCreateUser(provider UserCreator, opts ...Option) *CreateUser {
	return &CreateUser{
		submitter: newSubmitter("create user", opts,
			identity.CodeEmailAlreadyInUse,
			identity.CodeInvalidEmail,
			identity.CodeWeakPassword,
		),
		provider: provider,
	}
}

// Submit creates the account. The provider signs the new user in.
func (a *CreateUser) Submit(ctx context.Context, email, password string) (Result, error) {
	return a.run(ctx, func(ctx context.Context) error {
		_, err := a.provider.CreateUserWithEmailAndPassword(ctx, email, password)
		return err
	})
}

// PasswordSigner signs in with email and password
type PasswordSigner interface {
	SignInWithEmailAndPassword(ctx context.Context, email, password string) (*identity.User, error)
}

// SignIn signs in an email/password account.
//
// Results: ResultSuccess, auth/invalid-credential. The auth emulator only
// reports auth/invalid-credential with improved email privacy enabled.
type SignIn struct {
	submitter
	provider PasswordSigner
}

// NewSignIn creates the sign in wrapper
func NewSignIn(provider PasswordSigner, opts ...Option) *SignIn {
	return &SignIn{
		submitter: newSubmitter("sign in", opts, identity.CodeInvalidCredential),
		provider:  provider,
	}
}

// Submit signs in
func (a *SignIn) Submit(ctx context.Context, email, password string) (Result, error) {
	return a.run(ctx, func(ctx context.Context) error {
		_, err := a.provider.SignInWithEmailAndPassword(ctx, email, password)
		return err
	})
}

// PasswordResetSender sends password reset emails
type PasswordResetSender interface {
	SendPasswordResetEmail(ctx context.Context, email string) error
}

// SendPasswordResetEmail requests a password reset email. It classifies no
// failures: every error is reported.
type SendPasswordResetEmail struct {
	submitter
	provider PasswordResetSender
}

// NewSendPasswordResetEmail creates the password reset email wrapper
func NewSendPasswordResetEmail(provider PasswordResetSender, opts ...Option) *SendPasswordResetEmail {
	return &SendPasswordResetEmail{
		submitter: newSubmitter("send password reset email", opts),
		provider:  provider,
	}
}

// Submit sends the email
func (a *SendPasswordResetEmail) Submit(ctx context.Context, email string) (Result, error) {
	return a.run(ctx, func(ctx context.Context) error {
		return a.provider.SendPasswordResetEmail(ctx, email)
	})
}

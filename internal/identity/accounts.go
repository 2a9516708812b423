package identity

import (
	"context"
	"strconv"
	"time"
)

// authResponse is shared by accounts:signUp and accounts:signInWithPassword
type authResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type accountInfo struct {
	LocalID       string `json:"localId"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	DisplayName   string `json:"displayName"`
}

type lookupResponse struct {
	Users []accountInfo `json:"users"`
}

type oobCodeRequest struct {
	RequestType string `json:"requestType"`
	Email       string `json:"email,omitempty"`
	IDToken     string `json:"idToken,omitempty"`
}

type resetPasswordResponse struct {
	Email       string `json:"email"`
	NewEmail    string `json:"newEmail"`
	RequestType string `json:"requestType"`
}

// CreateUserWithEmailAndPassword creates an account and signs it in.
//
// Known failure codes: CodeEmailAlreadyInUse, CodeInvalidEmail, CodeWeakPassword.
func (c *Client) CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (*User, error) {
	var resp authResponse
	err := c.postJSON(ctx, c.identityURL("accounts:signUp"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.signedIn(resp), nil
}

// SignInWithEmailAndPassword signs in an existing account.
//
// Known failure codes: CodeInvalidCredential, CodeUserDisabled, CodeTooManyRequests.
// The Auth emulator reports CodeInvalidCredential only when improved email
// privacy is enabled in its config.
func (c *Client) SignInWithEmailAndPassword(ctx context.Context, email, password string) (*User, error) {
	var resp authResponse
	err := c.postJSON(ctx, c.identityURL("accounts:signInWithPassword"), map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return c.signedIn(resp), nil
}

// SignOut forgets the current user and notifies listeners with nil
func (c *Client) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.setCurrentUser(nil)
	return nil
}

// SendPasswordResetEmail asks the backend to mail a password reset link
func (c *Client) SendPasswordResetEmail(ctx context.Context, email string) error {
	return c.postJSON(ctx, c.identityURL("accounts:sendOobCode"), oobCodeRequest{
		RequestType: OperationPasswordReset,
		Email:       email,
	}, nil)
}

// SendEmailVerification mails a verification link to user's address
func (c *Client) SendEmailVerification(ctx context.Context, user *User) error {
	if user == nil || user.IDToken == "" {
		return &Error{Code: CodeNoCurrentUser, Message: "a signed-in user is required"}
	}
	return c.postJSON(ctx, c.identityURL("accounts:sendOobCode"), oobCodeRequest{
		RequestType: OperationVerifyEmail,
		IDToken:     user.IDToken,
	}, nil)
}

// VerifyPasswordResetCode checks a password reset code and returns the
// account email it belongs to
func (c *Client) VerifyPasswordResetCode(ctx context.Context, oobCode string) (string, error) {
	info, err := c.CheckActionCode(ctx, oobCode)
	if err != nil {
		return "", err
	}
	if info.Operation != "" && info.Operation != OperationPasswordReset {
		return "", &Error{Code: CodeInvalidActionCode, Message: "code is not a password reset code"}
	}
	return info.Email, nil
}

// ConfirmPasswordReset sets a new password using a password reset code
func (c *Client) ConfirmPasswordReset(ctx context.Context, oobCode, newPassword string) error {
	return c.postJSON(ctx, c.identityURL("accounts:resetPassword"), map[string]string{
		"oobCode":     oobCode,
		"newPassword": newPassword,
	}, nil)
}

// CheckActionCode reports what an out-of-band code authorizes without using it
func (c *Client) CheckActionCode(ctx context.Context, oobCode string) (*ActionCodeInfo, error) {
	var resp resetPasswordResponse
	err := c.postJSON(ctx, c.identityURL("accounts:resetPassword"), map[string]string{
		"oobCode": oobCode,
	}, &resp)
	if err != nil {
		return nil, err
	}

	info := &ActionCodeInfo{
		Operation: resp.RequestType,
		Email:     resp.Email,
	}
	switch resp.RequestType {
	case OperationVerifyAndChangeEmail:
		info.Email = resp.NewEmail
		info.PreviousEmail = resp.Email
	case OperationRecoverEmail:
		info.PreviousEmail = resp.NewEmail
	}
	return info, nil
}

// ApplyActionCode consumes an email verification or recovery code
func (c *Client) ApplyActionCode(ctx context.Context, oobCode string) error {
	return c.postJSON(ctx, c.identityURL("accounts:update"), map[string]string{
		"oobCode": oobCode,
	}, nil)
}

// Reload fetches the latest profile for user. When user is the current user
// the client's record is updated as well.
func (c *Client) Reload(ctx context.Context, user *User) (*User, error) {
	if user == nil || user.IDToken == "" {
		return nil, &Error{Code: CodeNoCurrentUser, Message: "a signed-in user is required"}
	}

	var resp lookupResponse
	err := c.postJSON(ctx, c.identityURL("accounts:lookup"), map[string]string{
		"idToken": user.IDToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Users) == 0 {
		return nil, &Error{Code: CodeUserTokenExpired, Message: "account no longer exists"}
	}

	info := resp.Users[0]
	reloaded := user.clone()
	reloaded.Email = info.Email
	reloaded.EmailVerified = info.EmailVerified
	reloaded.DisplayName = info.DisplayName

	c.replaceIfCurrent(reloaded, false)
	return reloaded.clone(), nil
}

// signedIn stores the user described by resp as the current user
func (c *Client) signedIn(resp authResponse) *User {
	u := &User{
		UID:          resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    c.expiresAt(resp.ExpiresIn),
	}
	c.setCurrentUser(u)
	c.logger.Debug("user signed in")
	return u.clone()
}

// replaceIfCurrent updates the current user record when u has the same UID.
// Listeners are only told about token changes. The check and the swap happen
// under listenersMu, so a concurrent SignOut is never undone.
func (c *Client) replaceIfCurrent(u *User, tokenChanged bool) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()

	c.mu.Lock()
	same := c.current != nil && c.current.UID == u.UID
	if same && !tokenChanged {
		c.current = u.clone()
	}
	c.mu.Unlock()

	if same && tokenChanged {
		c.installLocked(u)
	}
}

// expiresAt converts an expiresIn value in seconds to an absolute time
func (c *Client) expiresAt(expiresIn string) time.Time {
	seconds, err := strconv.Atoi(expiresIn)
	if err != nil || seconds <= 0 {
		seconds = 3600
	}
	return c.now().Add(time.Duration(seconds) * time.Second)
}

// Package identity provides a client for the Firebase Authentication REST API.
//
// The client plays the role of the browser SDK for Go programs: it signs users
// in and out, keeps track of the current user, refreshes ID tokens, and
// notifies listeners whenever the current user's ID token changes.
//
// Endpoints used:
//   - Identity Toolkit v1 (accounts:signUp, accounts:signInWithPassword,
//     accounts:sendOobCode, accounts:resetPassword, accounts:update, accounts:lookup)
//   - Secure Token v1 (token exchange for refresh tokens)
//
// Example usage:
//
//	client := identity.NewClient(apiKey)
//	unsubscribe := client.OnIDTokenChanged(func(u *identity.User) {
//	    if u == nil {
//	        log.Println("signed out")
//	        return
//	    }
//	    log.Printf("signed in as %s", u.UID)
//	})
//	defer unsubscribe()
//
//	if _, err := client.SignInWithEmailAndPassword(ctx, email, password); err != nil {
//	    log.Printf("sign in failed: %s", identity.ErrorCode(err))
//	}
package identity

import (
	"time"
)

// User is the authenticated principal as known to the client.
type User struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	DisplayName   string    `json:"displayName,omitempty"`
	IDToken       string    `json:"-"`
	RefreshToken  string    `json:"-"`
	ExpiresAt     time.Time `json:"-"`
}

// clone returns a copy so that listeners never share the client's record
func (u *User) clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// Operation names reported by CheckActionCode
const (
	OperationPasswordReset        = "PASSWORD_RESET"
	OperationVerifyEmail          = "VERIFY_EMAIL"
	OperationRecoverEmail         = "RECOVER_EMAIL"
	OperationVerifyAndChangeEmail = "VERIFY_AND_CHANGE_EMAIL"
)

// ActionCodeInfo describes what an out-of-band code authorizes.
type ActionCodeInfo struct {
	Operation     string
	Email         string
	PreviousEmail string
}

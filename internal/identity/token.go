package identity

import (
	"context"
	"fmt"
	"net/url"

	"github.com/golang-jwt/jwt/v5"
)

type tokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// RefreshIDToken obtains a fresh ID token for user.
//
// Without force the network is only used when the current token expires
// within five minutes. When user is the current user, listeners are notified
// of the new token.
func (c *Client) RefreshIDToken(ctx context.Context, user *User, force bool) (*User, error) {
	if user == nil || user.RefreshToken == "" {
		return nil, &Error{Code: CodeNoCurrentUser, Message: "a signed-in user is required"}
	}
	if !force && c.now().Add(refreshWindow).Before(user.ExpiresAt) {
		return user.clone(), nil
	}

	var resp tokenResponse
	err := c.postForm(ctx, c.tokenURL(), url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {user.RefreshToken},
	}, &resp)
	if err != nil {
		return nil, err
	}

	refreshed := user.clone()
	refreshed.IDToken = resp.IDToken
	refreshed.RefreshToken = resp.RefreshToken
	refreshed.ExpiresAt = c.expiresAt(resp.ExpiresIn)

	c.replaceIfCurrent(refreshed, true)
	return refreshed.clone(), nil
}

// IDTokenClaims decodes the claims carried by user's ID token.
//
// The signature is not checked; the token came straight from the backend.
// Use auth.FirebaseTokenVerifier when the claims must be verified.
func (c *Client) IDTokenClaims(ctx context.Context, user *User) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if user == nil || user.IDToken == "" {
		return nil, &Error{Code: CodeNoCurrentUser, Message: "a signed-in user is required"}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(user.IDToken, claims); err != nil {
		return nil, &Error{Code: CodeInvalidUserToken, Message: "malformed ID token", Err: fmt.Errorf("failed to decode ID token: %w", err)}
	}
	return map[string]any(claims), nil
}

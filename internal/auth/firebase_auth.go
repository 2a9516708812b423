package auth

import (
	"context"
	"fmt"
	"maps"

	firebase "firebase.google.com/go/v4"
	firebaseAuth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/otiai10/firesession/internal/identity"
	"github.com/otiai10/firesession/internal/session"
)

// idTokenVerifier is an interface for verifying ID tokens
// Both firebaseAuth.Client and firebaseAuth.TenantClient implement this
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseAuth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*firebaseAuth.Token, error)
}

// Ensure FirebaseTokenVerifier implements session.ClaimsResolver
var _ session.ClaimsResolver = (*FirebaseTokenVerifier)(nil)

// FirebaseTokenVerifier resolves claims by verifying ID tokens with the
// Firebase Admin SDK, so a forged token never reaches the session snapshot
type FirebaseTokenVerifier struct {
	verifier     idTokenVerifier
	tenantID     string
	checkRevoked bool
}

// FirebaseTokenVerifierConfig holds configuration for FirebaseTokenVerifier
type FirebaseTokenVerifierConfig struct {
	ProjectID       string
	CredentialsPath string
	TenantID        string // Optional: for multi-tenant Identity Platform
	CheckRevoked    bool   // Also reject revoked tokens (one extra API call per check)
}

// NewFirebaseTokenVerifier creates a verifier on an existing admin app
func NewFirebaseTokenVerifier(ctx context.Context, app *firebase.App, tenantID string, checkRevoked bool) (*FirebaseTokenVerifier, error) {
	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}

	var verifier idTokenVerifier

	if tenantID != "" {
		// Multi-tenant mode: use tenant-specific auth client
		tenantClient, err := authClient.TenantManager.AuthForTenant(tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to get tenant auth client for %s: %w", tenantID, err)
		}
		verifier = tenantClient
	} else {
		verifier = authClient
	}

	return &FirebaseTokenVerifier{
		verifier:     verifier,
		tenantID:     tenantID,
		checkRevoked: checkRevoked,
	}, nil
}

// NewFirebaseTokenVerifierWithConfig creates its own admin app and a verifier on it
func NewFirebaseTokenVerifierWithConfig(ctx context.Context, cfg FirebaseTokenVerifierConfig) (*FirebaseTokenVerifier, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID: cfg.ProjectID,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase app: %w", err)
	}

	return NewFirebaseTokenVerifier(ctx, app, cfg.TenantID, cfg.CheckRevoked)
}

// TenantID returns the tenant the verifier is bound to, empty for none
func (v *FirebaseTokenVerifier) TenantID() string {
	return v.tenantID
}

// ResolveClaims verifies the user's ID token and returns all of its claims.
// Verification failures carry provider codes (see verificationCode).
func (v *FirebaseTokenVerifier) ResolveClaims(ctx context.Context, user *identity.User) (map[string]any, error) {
	if user == nil || user.IDToken == "" {
		return nil, &identity.Error{Code: identity.CodeInvalidUserToken, Message: "no ID token to verify"}
	}

	token, err := v.verify(ctx, user.IDToken)
	if err != nil {
		return nil, err
	}
	if token.UID != user.UID {
		return nil, &identity.Error{Code: identity.CodeInvalidUserToken, Message: "ID token belongs to another user"}
	}
	return maps.Clone(token.Claims), nil
}

// VerifyIDToken verifies a Firebase ID token and returns the decoded claims
func (v *FirebaseTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*Claims, error) {
	token, err := v.verify(ctx, idToken)
	if err != nil {
		return nil, err
	}

	claims := ClaimsFromMap(token.Claims)
	claims.UID = token.UID

	// Set provider ID from Firebase token
	if token.Firebase.SignInProvider != "" {
		claims.ProviderID = token.Firebase.SignInProvider
	}

	return &claims, nil
}

func (v *FirebaseTokenVerifier) verify(ctx context.Context, idToken string) (*firebaseAuth.Token, error) {
	var (
		token *firebaseAuth.Token
		err   error
	)
	if v.checkRevoked {
		token, err = v.verifier.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	} else {
		token, err = v.verifier.VerifyIDToken(ctx, idToken)
	}
	if err != nil {
		return nil, &identity.Error{
			Code:    verificationCode(err),
			Message: "failed to verify ID token",
			Err:     err,
		}
	}
	return token, nil
}

// verificationCode maps Admin SDK verification errors to client codes
func verificationCode(err error) string {
	switch {
	case firebaseAuth.IsIDTokenExpired(err):
		return identity.CodeUserTokenExpired
	case firebaseAuth.IsUserDisabled(err):
		return identity.CodeUserDisabled
	case firebaseAuth.IsIDTokenRevoked(err), firebaseAuth.IsIDTokenInvalid(err):
		return identity.CodeInvalidUserToken
	default:
		return identity.CodeInternal
	}
}

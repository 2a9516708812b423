package auth

import (
	"context"
	"errors"
	"testing"

	firebaseAuth "firebase.google.com/go/v4/auth"

	"github.com/otiai10/firesession/internal/identity"
)

// stubVerifier returns a fixed token or error and records which method ran
type stubVerifier struct {
	token   *firebaseAuth.Token
	err     error
	revoked int
	plain   int
}

func (s *stubVerifier) VerifyIDToken(context.Context, string) (*firebaseAuth.Token, error) {
	s.plain++
	return s.token, s.err
}

func (s *stubVerifier) VerifyIDTokenAndCheckRevoked(context.Context, string) (*firebaseAuth.Token, error) {
	s.revoked++
	return s.token, s.err
}

func TestFirebaseTokenVerifier_ResolveClaims(t *testing.T) {
	token := &firebaseAuth.Token{
		UID:    "uid-1",
		Claims: map[string]any{"admin": true, "email": "a@example.com"},
	}

	t.Run("verified claims", func(t *testing.T) {
		stub := &stubVerifier{token: token}
		v := &FirebaseTokenVerifier{verifier: stub}

		claims, err := v.ResolveClaims(context.Background(), &identity.User{UID: "uid-1", IDToken: "tok"})
		if err != nil {
			t.Fatalf("ResolveClaims() error = %v", err)
		}
		if claims["admin"] != true {
			t.Errorf("claims = %v, want admin=true", claims)
		}
		claims["admin"] = false
		if token.Claims["admin"] != true {
			t.Error("ResolveClaims() returned the token's own map")
		}
		if stub.plain != 1 || stub.revoked != 0 {
			t.Errorf("plain = %d revoked = %d, want 1 0", stub.plain, stub.revoked)
		}
	})

	t.Run("revocation check", func(t *testing.T) {
		stub := &stubVerifier{token: token}
		v := &FirebaseTokenVerifier{verifier: stub, checkRevoked: true}

		if _, err := v.ResolveClaims(context.Background(), &identity.User{UID: "uid-1", IDToken: "tok"}); err != nil {
			t.Fatalf("ResolveClaims() error = %v", err)
		}
		if stub.revoked != 1 {
			t.Errorf("revoked = %d, want 1", stub.revoked)
		}
	})

	t.Run("other user's token", func(t *testing.T) {
		v := &FirebaseTokenVerifier{verifier: &stubVerifier{token: token}}

		_, err := v.ResolveClaims(context.Background(), &identity.User{UID: "uid-2", IDToken: "tok"})
		if code := identity.ErrorCode(err); code != identity.CodeInvalidUserToken {
			t.Errorf("ErrorCode() = %q, want %q", code, identity.CodeInvalidUserToken)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		v := &FirebaseTokenVerifier{verifier: &stubVerifier{token: token}}

		_, err := v.ResolveClaims(context.Background(), &identity.User{UID: "uid-1"})
		if code := identity.ErrorCode(err); code != identity.CodeInvalidUserToken {
			t.Errorf("ErrorCode() = %q, want %q", code, identity.CodeInvalidUserToken)
		}
	})

	t.Run("verification failure keeps the cause", func(t *testing.T) {
		cause := errors.New("certificate fetch failed")
		v := &FirebaseTokenVerifier{verifier: &stubVerifier{err: cause}}

		_, err := v.ResolveClaims(context.Background(), &identity.User{UID: "uid-1", IDToken: "tok"})
		if !errors.Is(err, cause) {
			t.Errorf("ResolveClaims() error = %v, want wrapping %v", err, cause)
		}
		if code := identity.ErrorCode(err); code != identity.CodeInternal {
			t.Errorf("ErrorCode() = %q, want %q", code, identity.CodeInternal)
		}
	})
}

func TestFirebaseTokenVerifier_VerifyIDToken(t *testing.T) {
	token := &firebaseAuth.Token{
		UID:    "uid-1",
		Claims: map[string]any{"email": "a@example.com", "email_verified": true},
	}
	token.Firebase.SignInProvider = "password"
	v := &FirebaseTokenVerifier{verifier: &stubVerifier{token: token}, tenantID: "tenant-a"}

	claims, err := v.VerifyIDToken(context.Background(), "tok")
	if err != nil {
		t.Fatalf("VerifyIDToken() error = %v", err)
	}
	want := Claims{UID: "uid-1", Email: "a@example.com", EmailVerified: true, ProviderID: "password"}
	if *claims != want {
		t.Errorf("VerifyIDToken() = %+v, want %+v", *claims, want)
	}
	if v.TenantID() != "tenant-a" {
		t.Errorf("TenantID() = %q, want tenant-a", v.TenantID())
	}
}

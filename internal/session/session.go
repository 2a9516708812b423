// Package session keeps one authoritative view of the caller's authentication
// state on top of an identity provider.
//
// A Tracker subscribes to the provider's ID token notifications, resolves the
// claims of each principal, and replaces its Snapshot as a whole on every
// change. Code that must not run before the first notification arrives can
// block on WaitUntilLoaded.
//
// Lifecycle:
//
//	tracker := session.NewTracker(client)
//	tracker.Init()
//	defer tracker.Unload()
//
//	if err := tracker.WaitUntilLoaded(ctx, 0); err != nil {
//	    if errors.Is(err, session.ErrLoadingTimedOut) {
//	        // provider never answered
//	    }
//	    return err
//	}
//	snap := tracker.Snapshot()
//	if snap.Principal != nil {
//	    log.Printf("signed in as %s with claims %v", snap.Principal.UID, snap.Claims)
//	}
package session

import (
	"context"
	"maps"

	"github.com/otiai10/firesession/internal/identity"
)

// Provider is the part of the identity client the tracker depends on
type Provider interface {
	OnIDTokenChanged(fn func(*identity.User)) (unsubscribe func())
	IDTokenClaims(ctx context.Context, user *identity.User) (map[string]any, error)
	RefreshIDToken(ctx context.Context, user *identity.User, force bool) (*identity.User, error)
	SignOut(ctx context.Context) error
}

// ClaimsResolver looks up the claims attached to a principal's credential
type ClaimsResolver interface {
	ResolveClaims(ctx context.Context, user *identity.User) (map[string]any, error)
}

// ClaimsResolverFunc adapts a function to ClaimsResolver
type ClaimsResolverFunc func(ctx context.Context, user *identity.User) (map[string]any, error)

// ResolveClaims calls f
func (f ClaimsResolverFunc) ResolveClaims(ctx context.Context, user *identity.User) (map[string]any, error) {
	return f(ctx, user)
}

// Snapshot is the tracker's view of the session at one point in time.
// Snapshots are values: the tracker never mutates one after handing it out.
type Snapshot struct {
	// Principal is the signed-in user, nil when signed out
	Principal *identity.User
	// Claims of the principal's ID token, empty when signed out
	Claims map[string]any
	// Loaded becomes true with the first notification of a subscription
	Loaded bool
	// Error is the last claims lookup failure, if any
	Error error
}

// SignedIn reports whether the snapshot has a principal
func (s Snapshot) SignedIn() bool {
	return s.Principal != nil
}

// clone copies the mutable parts of s
func (s Snapshot) clone() Snapshot {
	c := s
	if s.Principal != nil {
		p := *s.Principal
		c.Principal = &p
	}
	c.Claims = maps.Clone(s.Claims)
	if c.Claims == nil {
		c.Claims = map[string]any{}
	}
	return c
}

// initialSnapshot is the state before any notification arrives
func initialSnapshot() Snapshot {
	return Snapshot{Claims: map[string]any{}}
}

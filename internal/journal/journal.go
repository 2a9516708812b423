// Package journal records session transitions (sign in, sign out, user
// switch, claims failures) so they can be audited after the fact.
package journal

import (
	"context"
	"errors"
	"time"
)

// Kind is the type of a session transition
type Kind string

const (
	KindSignedIn    Kind = "signed-in"
	KindSignedOut   Kind = "signed-out"
	KindUserChanged Kind = "user-changed"
	KindClaimsError Kind = "claims-error"
)

// ErrNotFound is returned when an entry is not found
var ErrNotFound = errors.New("journal entry not found")

// Entry is one recorded transition
type Entry struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	UID         string    `json:"uid,omitempty"`
	PreviousUID string    `json:"previousUid,omitempty"`
	Email       string    `json:"email,omitempty"`
	Code        string    `json:"code,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// Repository defines the interface for journal storage
type Repository interface {
	// Append stores entry and returns its ID. An empty entry.ID is generated.
	Append(ctx context.Context, entry Entry) (string, error)

	// Get retrieves an entry by ID, ErrNotFound if there is none
	Get(ctx context.Context, id string) (*Entry, error)

	// ListByUID returns the entries of a user, newest first.
	// limit <= 0 means no limit.
	ListByUID(ctx context.Context, uid string, limit int) ([]Entry, error)
}

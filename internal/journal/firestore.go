package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/otiai10/firesession/internal/store"
)

// CollectionName is the Firestore collection for journal entries, before any
// store prefix is applied
const CollectionName = "sessionEvents"

// FirestoreRepository implements Repository interface using Firestore
type FirestoreRepository struct {
	collection *firestore.CollectionRef
}

// Ensure FirestoreRepository implements Repository interface
var _ Repository = (*FirestoreRepository)(nil)

// NewFirestoreRepository creates a new FirestoreRepository
//
// Parameters:
//   - collection: Collection holding the entries, usually
//     FirestoreClient.Collection(CollectionName)
//
// Returns:
//   - FirestoreRepository instance
func NewFirestoreRepository(collection *firestore.CollectionRef) *FirestoreRepository {
	return &FirestoreRepository{
		collection: collection,
	}
}

// Append stores an entry under its ID, generating a UUID when it has none
//
// Parameters:
//   - ctx: Context for cancellation control
//   - entry: Entry to store
//
// Returns:
//   - ID of the stored entry
//   - Error if Firestore operation fails
func (r *FirestoreRepository) Append(ctx context.Context, entry Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	_, err := r.collection.Doc(entry.ID).Create(ctx, entryToMap(entry))
	if err != nil {
		return "", fmt.Errorf("failed to append journal entry: %w", err)
	}

	return entry.ID, nil
}

// Get retrieves an entry by ID
//
// Parameters:
//   - ctx: Context for cancellation control
//   - id: Entry ID to retrieve
//
// Returns:
//   - Pointer to the entry
//   - ErrNotFound if the document does not exist
func (r *FirestoreRepository) Get(ctx context.Context, id string) (*Entry, error) {
	doc, err := r.collection.Doc(id).Get(ctx)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}

	entry := documentToEntry(doc)
	return &entry, nil
}

// ListByUID returns the entries of a user, newest first
//
// Parameters:
//   - ctx: Context for cancellation control
//   - uid: User whose entries to list
//   - limit: Maximum number of entries, <= 0 for all
//
// Returns:
//   - Entries ordered by occurredAt descending
//   - Error if Firestore operation fails
func (r *FirestoreRepository) ListByUID(ctx context.Context, uid string, limit int) ([]Entry, error) {
	q := r.collection.
		Where("uid", "==", uid).
		OrderBy("occurredAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var entries []Entry
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list journal entries: %w", err)
		}
		entries = append(entries, documentToEntry(doc))
	}

	return entries, nil
}

// entryToMap converts an Entry to a map for Firestore storage
func entryToMap(e Entry) map[string]any {
	data := map[string]any{
		"kind":       string(e.Kind),
		"uid":        e.UID,
		"occurredAt": e.OccurredAt,
	}
	if e.PreviousUID != "" {
		data["previousUid"] = e.PreviousUID
	}
	if e.Email != "" {
		data["email"] = e.Email
	}
	if e.Code != "" {
		data["code"] = e.Code
	}
	return data
}

// documentToEntry converts a Firestore document to an Entry
func documentToEntry(doc *firestore.DocumentSnapshot) Entry {
	return mapToEntry(doc.Ref.ID, doc.Data())
}

func mapToEntry(id string, data map[string]any) Entry {
	e := Entry{ID: id}
	if kind, ok := data["kind"].(string); ok {
		e.Kind = Kind(kind)
	}
	if uid, ok := data["uid"].(string); ok {
		e.UID = uid
	}
	if prev, ok := data["previousUid"].(string); ok {
		e.PreviousUID = prev
	}
	if email, ok := data["email"].(string); ok {
		e.Email = email
	}
	if code, ok := data["code"].(string); ok {
		e.Code = code
	}
	if at, ok := data["occurredAt"].(time.Time); ok {
		e.OccurredAt = at
	}
	return e
}

package journal

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps entries in process memory.
// Used when no Firestore database is configured.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
}

// Ensure MemoryRepository implements Repository interface
var _ Repository = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Append stores a copy of entry
func (r *MemoryRepository) Append(_ context.Context, entry Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return entry.ID, nil
}

// Get retrieves an entry by ID
func (r *MemoryRepository) Get(_ context.Context, id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

// ListByUID returns the entries of a user, newest first
func (r *MemoryRepository) ListByUID(_ context.Context, uid string, limit int) ([]Entry, error) {
	r.mu.RLock()
	var result []Entry
	for _, e := range r.entries {
		if e.UID == uid {
			result = append(result, e)
		}
	}
	r.mu.RUnlock()

	slices.SortStableFunc(result, func(a, b Entry) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

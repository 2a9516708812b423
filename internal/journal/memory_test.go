package journal

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, kind := range []Kind{KindSignedIn, KindClaimsError, KindSignedOut} {
		if _, err := repo.Append(ctx, Entry{Kind: kind, UID: "alice", OccurredAt: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	id, err := repo.Append(ctx, Entry{ID: "fixed", Kind: KindSignedIn, UID: "bob", OccurredAt: base})
	if err != nil || id != "fixed" {
		t.Fatalf("Append() = %q, %v, want fixed", id, err)
	}

	entries, err := repo.ListByUID(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("ListByUID() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ListByUID() returned %d entries, want 2", len(entries))
	}
	if entries[0].Kind != KindSignedOut || entries[1].Kind != KindClaimsError {
		t.Errorf("ListByUID() order = %v, %v, want newest first", entries[0].Kind, entries[1].Kind)
	}

	got, err := repo.Get(ctx, "fixed")
	if err != nil || got.UID != "bob" {
		t.Errorf("Get() = %+v, %v", got, err)
	}
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

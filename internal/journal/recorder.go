package journal

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/otiai10/firesession/internal/identity"
	"github.com/otiai10/firesession/internal/session"
)

const defaultBuffer = 64

// SnapshotSource is the part of session.Tracker the recorder observes
type SnapshotSource interface {
	Subscribe(fn func(session.Snapshot)) (cancel func())
}

// Recorder turns session snapshots into journal entries.
//
// Observe only computes entries and queues them, so it is cheap enough to
// run as a tracker observer. Run writes the queue to the repository.
type Recorder struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
	queue  chan Entry

	mu      sync.Mutex
	loaded  bool
	uid     string
	code    string
	dropped int
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithBuffer sets how many entries may wait for Run before new ones are dropped
func WithBuffer(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Entry, n)
		}
	}
}

// NewRecorder creates a Recorder writing to repo
func NewRecorder(repo Repository, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		repo:   repo,
		logger: zap.NewNop(),
		now:    time.Now,
		queue:  make(chan Entry, defaultBuffer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach subscribes the recorder to source
func (r *Recorder) Attach(source SnapshotSource) (cancel func()) {
	return source.Subscribe(r.Observe)
}

// Observe compares s with the previous snapshot and queues the resulting
// entries. An unloaded snapshot resets the comparison without an entry.
func (r *Recorder) Observe(s session.Snapshot) {
	for _, e := range r.transitions(s) {
		select {
		case r.queue <- e:
		default:
			r.mu.Lock()
			r.dropped++
			r.mu.Unlock()
			r.logger.Warn("journal queue full, entry dropped",
				zap.String("kind", string(e.Kind)),
				zap.String("uid", e.UID))
		}
	}
}

func (r *Recorder) transitions(s session.Snapshot) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !s.Loaded {
		r.loaded, r.uid, r.code = false, "", ""
		return nil
	}

	var (
		entries []Entry
		uid     string
		email   string
		at      = r.now()
	)
	if s.Principal != nil {
		uid = s.Principal.UID
		email = s.Principal.Email
	}

	switch {
	case uid == r.uid && r.loaded:
	case uid != "" && r.uid == "":
		entries = append(entries, r.entry(KindSignedIn, uid, "", email, at))
	case uid == "" && r.uid != "":
		entries = append(entries, r.entry(KindSignedOut, r.uid, "", "", at))
	case uid != r.uid:
		entries = append(entries, r.entry(KindUserChanged, uid, r.uid, email, at))
	}

	code := identity.ErrorCode(s.Error)
	if code != "" && code != r.code {
		e := r.entry(KindClaimsError, uid, "", email, at)
		e.Code = code
		entries = append(entries, e)
	}

	r.loaded, r.uid, r.code = true, uid, code
	return entries
}

func (r *Recorder) entry(kind Kind, uid, prev, email string, at time.Time) Entry {
	return Entry{
		ID:          uuid.NewString(),
		Kind:        kind,
		UID:         uid,
		PreviousUID: prev,
		Email:       email,
		OccurredAt:  at,
	}
}

// Run writes queued entries until ctx is done. Append failures are logged
// and never reach the tracker.
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-r.queue:
			if _, err := r.repo.Append(ctx, e); err != nil {
				r.logger.Error("failed to append journal entry",
					zap.String("kind", string(e.Kind)),
					zap.String("uid", e.UID),
					zap.Error(err))
				continue
			}
			r.logger.Debug("journal entry appended",
				zap.String("id", e.ID),
				zap.String("kind", string(e.Kind)))
		}
	}
}

// Dropped returns how many entries were lost to a full queue
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

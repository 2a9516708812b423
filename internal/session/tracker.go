package session

import (
	"context"
	"maps"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/otiai10/firesession/internal/identity"
)

// DefaultWaitTimeout bounds WaitUntilLoaded when no timeout is given
const DefaultWaitTimeout = 8 * time.Second

// Tracker maintains the session Snapshot for one identity provider.
//
// Tracker is safe for concurrent use. It is reusable across any number of
// Init/Unload cycles but never holds more than one provider subscription.
type Tracker struct {
	provider    Provider
	claims      ClaimsResolver
	logger      *zap.Logger
	waitTimeout time.Duration
	afterFunc   func(time.Duration, func()) *time.Timer

	// lock order: lifecycleMu, notifyMu, mu
	lifecycleMu sync.Mutex
	notifyMu    sync.Mutex
	mu          sync.Mutex

	snapshot    Snapshot
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
	generation  uint64
	seq         uint64
	applied     uint64
	ticket      *ticket
	nextWaiter  uint64

	observers    map[int]func(Snapshot)
	nextObserver int
}

// ticket is the single pending WaitUntilLoaded completion. Its one timer is
// armed at the earliest deadline among the waiters still attached.
type ticket struct {
	done     chan struct{}
	err      error
	timer    *time.Timer
	deadline time.Time
	armed    uint64
	waiters  map[uint64]time.Time
}

// complete must only be called by whoever detached the ticket from the tracker
func (tk *ticket) complete(err error) {
	if tk.timer != nil {
		tk.timer.Stop()
	}
	tk.err = err
	close(tk.done)
}

// earliest returns the closest waiter deadline
func (tk *ticket) earliest() time.Time {
	var first time.Time
	for _, d := range tk.waiters {
		if first.IsZero() || d.Before(first) {
			first = d
		}
	}
	return first
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClaimsResolver replaces the default claims lookup, which decodes the
// provider's ID token
func WithClaimsResolver(r ClaimsResolver) Option {
	return func(t *Tracker) {
		t.claims = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithWaitTimeout sets the default WaitUntilLoaded timeout
func WithWaitTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.waitTimeout = d
		}
	}
}

// NewTracker creates a tracker over provider. Nothing happens until Init.
//
// Example:
//
//	client := identity.NewClient(apiKey)
//	tracker := session.NewTracker(client, session.WithWaitTimeout(5*time.Second))
//	tracker.Init()
//	defer tracker.Unload()
func NewTracker(provider Provider, opts ...Option) *Tracker {
	t := &Tracker{
		provider:    provider,
		logger:      zap.NewNop(),
		waitTimeout: DefaultWaitTimeout,
		afterFunc:   time.AfterFunc,
		snapshot:    initialSnapshot(),
		observers:   make(map[int]func(Snapshot)),
	}
	t.claims = ClaimsResolverFunc(provider.IDTokenClaims)
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Init subscribes to the provider. Calling Init while subscribed does nothing.
func (t *Tracker) Init() {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	t.mu.Lock()
	if t.unsubscribe != nil {
		t.mu.Unlock()
		return
	}
	t.generation++
	gen := t.generation
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.mu.Unlock()

	unsubscribe := t.provider.OnIDTokenChanged(func(user *identity.User) {
		t.handle(gen, user)
	})

	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	t.logger.Debug("session tracker subscribed")
}

// handle derives a new snapshot from one provider notification
func (t *Tracker) handle(gen uint64, user *identity.User) {
	t.mu.Lock()
	if gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.seq++
	seq := t.seq
	ctx := t.ctx
	t.mu.Unlock()

	next := Snapshot{Principal: user, Claims: map[string]any{}, Loaded: true}
	if user != nil {
		claims, err := t.claims.ResolveClaims(ctx, user)
		if err != nil {
			next.Error = classifyClaimsError(err)
			t.logger.Warn("failed to resolve claims",
				zap.String("uid", user.UID),
				zap.String("code", identity.ErrorCode(next.Error)),
				zap.Error(err))
		} else if claims != nil {
			next.Claims = maps.Clone(claims)
		}
	}

	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	if gen != t.generation || seq <= t.applied {
		// unloaded meanwhile, or a newer notification already landed
		t.mu.Unlock()
		return
	}
	prev := t.snapshot
	t.applied = seq
	t.snapshot = next
	tk := t.ticket
	t.ticket = nil
	observers := t.observerList()
	t.mu.Unlock()

	if tk != nil {
		tk.complete(nil)
	}
	if uidOf(prev.Principal) != uidOf(next.Principal) {
		t.logger.Info("auth state changed",
			zap.String("from", uidOf(prev.Principal)),
			zap.String("to", uidOf(next.Principal)))
	}
	publish(observers, next)
}

// uidOf is a nil-safe accessor for logging
func uidOf(u *identity.User) string {
	if u == nil {
		return ""
	}
	return u.UID
}

// classifyClaimsError keeps the provider code when there is one
func classifyClaimsError(err error) error {
	code := identity.ErrorCode(err)
	if code == "" {
		code = CodeUnknown
	}
	return &Error{Code: code, Message: "failed to resolve claims", Err: err}
}

// WaitUntilLoaded blocks until the first notification has been applied.
//
// It returns nil at once when the snapshot is already loaded. Otherwise all
// callers share one pending ticket and one timer (timeout <= 0 means the
// tracker default). The timer follows the earliest deadline of the callers
// still waiting; when it fires every waiter gets an error matching
// ErrLoadingTimedOut. Unload releases them with ErrUnloaded. Cancelling ctx
// releases only this caller, and the last caller to leave drops the ticket.
func (t *Tracker) WaitUntilLoaded(ctx context.Context, timeout time.Duration) error {
	t.mu.Lock()
	if t.snapshot.Loaded {
		t.mu.Unlock()
		return nil
	}
	if timeout <= 0 {
		timeout = t.waitTimeout
	}
	deadline := time.Now().Add(timeout)

	tk := t.ticket
	if tk == nil {
		tk = &ticket{done: make(chan struct{}), waiters: make(map[uint64]time.Time)}
		t.ticket = tk
	}
	t.nextWaiter++
	id := t.nextWaiter
	tk.waiters[id] = deadline
	if tk.timer == nil || deadline.Before(tk.deadline) {
		t.arm(tk, deadline)
	}
	t.mu.Unlock()

	select {
	case <-tk.done:
		return tk.err
	case <-ctx.Done():
		t.leave(tk, id)
		return ctx.Err()
	}
}

// arm (re)starts the ticket timer for deadline; mu must be held
func (t *Tracker) arm(tk *ticket, deadline time.Time) {
	if tk.timer != nil {
		tk.timer.Stop()
	}
	tk.armed++
	n := tk.armed
	tk.deadline = deadline
	tk.timer = t.afterFunc(time.Until(deadline), func() {
		t.expire(tk, n)
	})
}

// leave detaches waiter id from tk after its context ended
func (t *Tracker) leave(tk *ticket, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ticket != tk {
		// already completed
		return
	}
	delete(tk.waiters, id)
	if len(tk.waiters) == 0 {
		t.ticket = nil
		tk.timer.Stop()
		tk.armed++
		return
	}
	if next := tk.earliest(); next.After(tk.deadline) {
		t.arm(tk, next)
	}
}

// expire rejects tk if it is still pending and n is its current timer
func (t *Tracker) expire(tk *ticket, n uint64) {
	t.mu.Lock()
	if t.ticket != tk || tk.armed != n {
		t.mu.Unlock()
		return
	}
	t.ticket = nil
	t.mu.Unlock()

	t.logger.Warn("auth state not loaded in time")
	tk.complete(&Error{Code: CodeLoadingTimedOut, Message: ErrLoadingTimedOut.Message})
}

// RefreshToken forces the provider to issue a new ID token for the current
// principal. It does nothing when signed out. Provider errors are returned
// unchanged.
func (t *Tracker) RefreshToken(ctx context.Context) error {
	user := t.Snapshot().Principal
	if user == nil {
		return nil
	}
	_, err := t.provider.RefreshIDToken(ctx, user, true)
	return err
}

// SignOut signs out at the provider and clears the snapshot error.
//
// The principal is cleared later, by the provider's notification; callers
// must not expect Snapshot().Principal to be nil right after SignOut returns.
func (t *Tracker) SignOut(ctx context.Context) error {
	if err := t.provider.SignOut(ctx); err != nil {
		return err
	}
	t.ClearError()
	return nil
}

// ClearError drops the snapshot error and leaves everything else as is
func (t *Tracker) ClearError() {
	t.replace(func(s Snapshot) Snapshot {
		s.Error = nil
		return s
	})
}

// Unload cancels the subscription, resets the snapshot to its initial state,
// and releases a pending WaitUntilLoaded ticket with ErrUnloaded.
func (t *Tracker) Unload() {
	t.lifecycleMu.Lock()
	defer t.lifecycleMu.Unlock()

	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	unsubscribe := t.unsubscribe
	cancel := t.cancel
	t.unsubscribe = nil
	t.cancel = nil
	t.generation++
	t.seq = 0
	t.applied = 0
	t.snapshot = initialSnapshot()
	tk := t.ticket
	t.ticket = nil
	observers := t.observerList()
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	if tk != nil {
		tk.complete(&Error{Code: CodeUnloaded, Message: ErrUnloaded.Message})
	}
	t.logger.Debug("session tracker unloaded")
	publish(observers, initialSnapshot())
}

// Snapshot returns a copy of the current snapshot
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot.clone()
}

// IsLoggedIn reports whether the current snapshot has a principal
func (t *Tracker) IsLoggedIn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot.Principal != nil
}

// Subscribe calls fn with the current snapshot and then with every
// replacement, in order. fn runs while the tracker holds its notification
// lock: it may read the tracker but must not call Init, Unload, SignOut,
// ClearError or Subscribe synchronously.
func (t *Tracker) Subscribe(fn func(Snapshot)) (cancel func()) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	id := t.nextObserver
	t.nextObserver++
	t.observers[id] = fn
	current := t.snapshot.clone()
	t.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.observers, id)
			t.mu.Unlock()
		})
	}
}

// replace swaps in fn(current) as the new snapshot
func (t *Tracker) replace(fn func(Snapshot) Snapshot) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	next := fn(t.snapshot.clone())
	t.snapshot = next
	observers := t.observerList()
	t.mu.Unlock()

	publish(observers, next)
}

// observerList must be called with mu held
func (t *Tracker) observerList() []func(Snapshot) {
	list := make([]func(Snapshot), 0, len(t.observers))
	for _, fn := range t.observers {
		list = append(list, fn)
	}
	return list
}

func publish(observers []func(Snapshot), s Snapshot) {
	for _, fn := range observers {
		fn(s.clone())
	}
}

// pendingTicket is used by tests
func (t *Tracker) pendingTicket() *ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticket
}

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

const (
	defaultIdentityEndpoint = "https://identitytoolkit.googleapis.com/v1"
	defaultTokenEndpoint    = "https://securetoken.googleapis.com/v1"

	// refreshWindow is how close to expiry a token must be before a
	// non-forced refresh goes to the network
	refreshWindow = 5 * time.Minute
)

// Client talks to Firebase Authentication and tracks the current user.
//
// Client is safe for concurrent use by multiple goroutines.
type Client struct {
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu               sync.RWMutex
	identityEndpoint string
	tokenEndpoint    string
	appCheckToken    string
	clientVersion    string
	appID            string
	current          *User

	// listenersMu serializes user changes with their notifications so every
	// listener observes the same order
	listenersMu  sync.Mutex
	listeners    map[int]*listener
	nextListener int
}

// Option configures the Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for API calls.
// Default is an http.Client with a 10 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithEmulator points the client at an Auth emulator, e.g. "http://127.0.0.1:9099"
func WithEmulator(emulatorURL string) Option {
	return func(c *Client) {
		if err := c.UseEmulator(emulatorURL); err != nil {
			c.logger.Warn("ignoring invalid emulator url", zap.String("url", emulatorURL), zap.Error(err))
		}
	}
}

// WithAppCheckToken attaches an App Check token to every request
func WithAppCheckToken(token string) Option {
	return func(c *Client) {
		c.appCheckToken = token
	}
}

// WithClientVersion sets the X-Client-Version header
func WithClientVersion(version string) Option {
	return func(c *Client) {
		c.clientVersion = version
	}
}

// WithAppID sets the Firebase app ID sent as X-Firebase-gmpid
func WithAppID(appID string) Option {
	return func(c *Client) {
		c.appID = appID
	}
}

// NewClient creates a client for the project owning apiKey.
//
// Example:
//
//	// Production
//	client := identity.NewClient("AIza...")
//
//	// Local emulator
//	client := identity.NewClient("fake-key", identity.WithEmulator("http://127.0.0.1:9099"))
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:           apiKey,
		httpClient:       &http.Client{Timeout: 10 * time.Second},
		logger:           zap.NewNop(),
		now:              time.Now,
		identityEndpoint: defaultIdentityEndpoint,
		tokenEndpoint:    defaultTokenEndpoint,
		listeners:        make(map[int]*listener),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UseEmulator redirects all subsequent calls to the Auth emulator at emulatorURL
func (c *Client) UseEmulator(emulatorURL string) error {
	u, err := url.Parse(emulatorURL)
	if err != nil {
		return fmt.Errorf("failed to parse emulator url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("emulator url must be http or https, got %q", emulatorURL)
	}
	if u.Host == "" {
		return fmt.Errorf("emulator url has no host: %q", emulatorURL)
	}
	base := strings.TrimRight(emulatorURL, "/")

	c.mu.Lock()
	c.identityEndpoint = base + "/identitytoolkit.googleapis.com/v1"
	c.tokenEndpoint = base + "/securetoken.googleapis.com/v1"
	c.mu.Unlock()

	c.logger.Info("🔧 Using Auth Emulator", zap.String("url", base))
	return nil
}

// SetAppCheckToken replaces the App Check token sent with requests
func (c *Client) SetAppCheckToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appCheckToken = token
}

// SetClientVersion replaces the X-Client-Version header value
func (c *Client) SetClientVersion(version string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientVersion = version
}

// Endpoints returns the Identity Toolkit and Secure Token base URLs in use
func (c *Client) Endpoints() (identityEndpoint, tokenEndpoint string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identityEndpoint, c.tokenEndpoint
}

// CurrentUser returns a copy of the signed-in user, or nil
func (c *Client) CurrentUser() *User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.clone()
}

// OnIDTokenChanged registers fn to be called with the current user right away
// and again whenever the user signs in, signs out, or gets a new ID token.
//
// Calls for one listener happen on a dedicated goroutine, one at a time, in
// the order the changes occurred. The returned function stops delivery and can
// be called more than once.
//
// Example:
//
//	unsubscribe := client.OnIDTokenChanged(func(u *identity.User) {
//	    log.Printf("user: %v", u)
//	})
//	defer unsubscribe()
func (c *Client) OnIDTokenChanged(fn func(*User)) (unsubscribe func()) {
	l := newListener(fn)

	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = l
	l.push(c.CurrentUser())
	c.listenersMu.Unlock()

	go l.run()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
		l.stop()
	}
}

// setCurrentUser replaces the current user and notifies listeners
func (c *Client) setCurrentUser(u *User) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.installLocked(u)
}

// installLocked must be called with listenersMu held
func (c *Client) installLocked(u *User) {
	c.mu.Lock()
	c.current = u.clone()
	c.mu.Unlock()

	for _, l := range c.listeners {
		l.push(u.clone())
	}
}

// listenerCount is used by tests
func (c *Client) listenerCount() int {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	return len(c.listeners)
}

func (c *Client) identityURL(method string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identityEndpoint + "/" + method
}

func (c *Client) tokenURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokenEndpoint + "/token"
}

// postJSON sends body as JSON to endpoint and decodes the response into out
func (c *Client) postJSON(ctx context.Context, endpoint string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// postForm sends form values to endpoint and decodes the response into out
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	c.mu.RLock()
	if c.appCheckToken != "" {
		req.Header.Set("X-Firebase-AppCheck", c.appCheckToken)
	}
	if c.clientVersion != "" {
		req.Header.Set("X-Client-Version", c.clientVersion)
	}
	if c.appID != "" {
		req.Header.Set("X-Firebase-gmpid", c.appID)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := googleapi.CheckResponse(resp); err != nil {
		return fromAPIError(err)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// listener delivers notifications to one callback without ever blocking the
// notifier
type listener struct {
	fn      func(*User)
	mu      sync.Mutex
	pending []*User
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newListener(fn func(*User)) *listener {
	return &listener{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (l *listener) push(u *User) {
	l.mu.Lock()
	l.pending = append(l.pending, u)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *listener) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.wake:
		}

		for {
			l.mu.Lock()
			if len(l.pending) == 0 {
				l.mu.Unlock()
				break
			}
			u := l.pending[0]
			l.pending = l.pending[1:]
			l.mu.Unlock()

			select {
			case <-l.done:
				return
			default:
			}
			l.fn(u)
		}
	}
}

func (l *listener) stop() {
	l.once.Do(func() {
		close(l.done)
	})
}

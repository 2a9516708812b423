package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/otiai10/firesession/internal/identity"
)

const (
	defaultAppCheckEndpoint = "https://firebaseappcheck.googleapis.com/v1"
	appCheckRetryDelay      = time.Minute
)

// appCheck holds the App Check token and refreshes it when enabled
type appCheck struct {
	client     *identity.Client
	httpClient *http.Client
	logger     *zap.Logger
	exchange   string // full exchangeDebugToken URL
	apiKey     string
	debugToken string

	mu      sync.Mutex
	current string

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

type exchangeResponse struct {
	Token string `json:"token"`
	TTL   string `json:"ttl"`
}

func startAppCheck(ctx context.Context, client *identity.Client, cfg Config, opts AppCheckOptions, hc *http.Client, logger *zap.Logger) (*appCheck, error) {
	if opts.RecaptchaSiteKey == "" {
		return nil, fmt.Errorf("appCheck.recaptchaSiteKey is required")
	}
	ac := &appCheck{
		client:     client,
		httpClient: hc,
		logger:     logger,
		apiKey:     cfg.APIKey,
		debugToken: opts.DebugToken,
		done:       make(chan struct{}),
	}
	if opts.DebugToken == "" {
		// a reCAPTCHA attestation needs a browser; without a debug token no
		// App Check header is sent
		logger.Info("App Check enabled without debug token")
		return ac, nil
	}
	if cfg.ProjectID == "" || cfg.AppID == "" {
		return nil, fmt.Errorf("projectId and appId are required to exchange an App Check debug token")
	}

	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = defaultAppCheckEndpoint
	}
	ac.exchange = fmt.Sprintf("%s/projects/%s/apps/%s:exchangeDebugToken",
		endpoint, url.PathEscape(cfg.ProjectID), url.PathEscape(cfg.AppID))

	ttl, err := ac.refresh(ctx)
	if err != nil {
		return nil, err
	}
	if opts.autoRefresh() {
		ac.wg.Add(1)
		go ac.loop(ttl)
	}
	return ac, nil
}

// refresh exchanges the debug token and installs the result on the client
func (a *appCheck) refresh(ctx context.Context) (time.Duration, error) {
	body, err := json.Marshal(map[string]string{"debugToken": a.debugToken})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.exchange+"?key="+url.QueryEscape(a.apiKey), bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to exchange App Check debug token: %w", err)
	}
	defer resp.Body.Close()
	if err := googleapi.CheckResponse(resp); err != nil {
		return 0, fmt.Errorf("failed to exchange App Check debug token: %w", err)
	}

	var out exchangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode App Check response: %w", err)
	}
	if out.Token == "" {
		return 0, fmt.Errorf("App Check response has no token")
	}
	ttl, err := time.ParseDuration(out.TTL)
	if err != nil || ttl <= 0 {
		ttl = time.Hour
	}

	a.mu.Lock()
	a.current = out.Token
	a.mu.Unlock()
	a.client.SetAppCheckToken(out.Token)
	return ttl, nil
}

// loop refreshes at half the token lifetime until stop
func (a *appCheck) loop(ttl time.Duration) {
	defer a.wg.Done()
	wait := ttl / 2
	for {
		timer := time.NewTimer(wait)
		select {
		case <-a.done:
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		next, err := a.refresh(ctx)
		cancel()
		if err != nil {
			a.logger.Warn("failed to refresh App Check token", zap.Error(err))
			wait = appCheckRetryDelay
			continue
		}
		wait = next / 2
	}
}

func (a *appCheck) token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *appCheck) stop() {
	a.stopOnce.Do(func() {
		close(a.done)
	})
	a.wg.Wait()
}

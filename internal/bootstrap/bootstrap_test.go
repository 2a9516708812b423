package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func clearEmulatorEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FIREBASE_AUTH_EMULATOR_HOST", "")
	t.Setenv("FIRESTORE_EMULATOR_HOST", "")
}

func TestInit_RequiresAPIKey(t *testing.T) {
	if _, err := Init(context.Background(), Options{}); err == nil {
		t.Error("Init() without apiKey error = nil")
	}
}

func TestInit_Minimal(t *testing.T) {
	app, err := Init(context.Background(), Options{Config: Config{APIKey: "key"}})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer app.Close()

	if app.Identity == nil {
		t.Fatal("Identity = nil")
	}
	if app.Admin != nil || app.Firestore != nil {
		t.Error("optional subsystems initialized without configuration")
	}
	if app.AppCheckToken() != "" {
		t.Errorf("AppCheckToken() = %q, want empty", app.AppCheckToken())
	}
}

func TestInit_Emulators(t *testing.T) {
	clearEmulatorEnv(t)

	app, err := Init(context.Background(), Options{
		Config: Config{APIKey: "key", ProjectID: "demo-firesession"},
		Emulators: &EmulatorOptions{
			Auth:      &PortOptions{},
			Functions: &PortOptions{Port: 5002},
		},
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer app.Close()

	identityEndpoint, tokenEndpoint := app.Identity.Endpoints()
	if identityEndpoint != "http://127.0.0.1:9099/identitytoolkit.googleapis.com/v1" {
		t.Errorf("identity endpoint = %q", identityEndpoint)
	}
	if tokenEndpoint != "http://127.0.0.1:9099/securetoken.googleapis.com/v1" {
		t.Errorf("token endpoint = %q", tokenEndpoint)
	}
	if got := os.Getenv("FIREBASE_AUTH_EMULATOR_HOST"); got != "127.0.0.1:9099" {
		t.Errorf("FIREBASE_AUTH_EMULATOR_HOST = %q, want 127.0.0.1:9099", got)
	}
	if got := app.FunctionsURL("us-central1", "hello"); got != "http://127.0.0.1:5002/demo-firesession/us-central1/hello" {
		t.Errorf("FunctionsURL() = %q", got)
	}
	if app.Admin == nil {
		t.Error("Admin = nil with a project ID")
	}
}

func TestApp_FunctionsURL_Production(t *testing.T) {
	app := &App{projectID: "my-project"}

	if got := app.FunctionsURL("asia-northeast1", "notify"); got != "https://asia-northeast1-my-project.cloudfunctions.net/notify" {
		t.Errorf("FunctionsURL() = %q", got)
	}
}

func TestInit_FailurePolicy(t *testing.T) {
	yes := true

	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{
			name: "invalid port",
			opts: Options{
				Config:    Config{APIKey: "key"},
				Emulators: &EmulatorOptions{Auth: &PortOptions{}, Functions: &PortOptions{Port: 70000}},
			},
			wantErr: "functions emulator",
		},
		{
			name: "firestore without project",
			opts: Options{
				Config:    Config{APIKey: "key"},
				Emulators: &EmulatorOptions{Firestore: &PortOptions{}},
			},
			wantErr: "projectID is required",
		},
		{
			name: "app check without site key",
			opts: Options{
				Config:   Config{APIKey: "key"},
				AppCheck: &AppCheckOptions{IsTokenAutoRefreshEnabled: &yes},
			},
			wantErr: "recaptchaSiteKey",
		},
		{
			name: "debug token without app id",
			opts: Options{
				Config:   Config{APIKey: "key", ProjectID: "demo-firesession"},
				AppCheck: &AppCheckOptions{RecaptchaSiteKey: "site", DebugToken: "debug"},
			},
			wantErr: "appId",
		},
		{
			name: "analytics without version",
			opts: Options{
				Config:    Config{APIKey: "key"},
				Analytics: &AnalyticsOptions{},
			},
			wantErr: "analytics.version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEmulatorEnv(t)

			app, err := Init(context.Background(), tt.opts)
			if err == nil {
				app.Close()
				t.Fatal("Init() error = nil")
			}
			if app != nil {
				t.Error("Init() returned an app along with an error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Init() error = %q, want it to mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestInit_AppCheckDebugToken(t *testing.T) {
	no := false
	var gotPath, gotKey, gotDebug string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotDebug = body["debugToken"]
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"app-check-token","ttl":"3600s"}`))
	}))
	defer srv.Close()

	app, err := Init(context.Background(), Options{
		Config: Config{APIKey: "key", AppID: "1:123:web:abc"},
		AppCheck: &AppCheckOptions{
			RecaptchaSiteKey:          "site",
			DebugToken:                "debug-123",
			IsTokenAutoRefreshEnabled: &no,
			Endpoint:                  srv.URL,
		},
	})
	if err == nil {
		app.Close()
		t.Fatal("Init() without project ID error = nil")
	}

	app, err = Init(context.Background(), Options{
		Config: Config{APIKey: "key", ProjectID: "demo-firesession", AppID: "1:123:web:abc"},
		AppCheck: &AppCheckOptions{
			RecaptchaSiteKey:          "site",
			DebugToken:                "debug-123",
			IsTokenAutoRefreshEnabled: &no,
			Endpoint:                  srv.URL,
		},
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer app.Close()

	if app.AppCheckToken() != "app-check-token" {
		t.Errorf("AppCheckToken() = %q, want app-check-token", app.AppCheckToken())
	}
	if gotPath != "/projects/demo-firesession/apps/1:123:web:abc:exchangeDebugToken" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "key" || gotDebug != "debug-123" {
		t.Errorf("key = %q debugToken = %q", gotKey, gotDebug)
	}
}

func TestInit_AppCheckRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"App attestation failed.","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	_, err := Init(context.Background(), Options{
		Config:   Config{APIKey: "key", ProjectID: "demo-firesession", AppID: "app"},
		AppCheck: &AppCheckOptions{RecaptchaSiteKey: "site", DebugToken: "bad", Endpoint: srv.URL},
	})
	if err == nil || !strings.Contains(err.Error(), "app check") {
		t.Errorf("Init() error = %v, want app check failure", err)
	}
}

func TestInit_Analytics(t *testing.T) {
	app, err := Init(context.Background(), Options{
		Config:    Config{APIKey: "key"},
		Analytics: &AnalyticsOptions{Version: "1.2.3"},
	})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestAppCheckOptions_AutoRefreshDefault(t *testing.T) {
	if !(&AppCheckOptions{}).autoRefresh() {
		t.Error("autoRefresh() = false, want true by default")
	}
	off := false
	if (&AppCheckOptions{IsTokenAutoRefreshEnabled: &off}).autoRefresh() {
		t.Error("autoRefresh() = true, want false")
	}
}

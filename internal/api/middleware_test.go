package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestChain(t *testing.T) {
	order := make([]string, 0)
	mu := sync.Mutex{}

	record := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				order = append(order, name+"-before")
				mu.Unlock()
				next.ServeHTTP(w, r)
				mu.Lock()
				order = append(order, name+"-after")
				mu.Unlock()
			})
		}
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		order = append(order, "handler")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	chained := Chain(record("m1"), record("m2"))(handler)
	chained.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))

	expected := []string{"m1-before", "m2-before", "handler", "m2-after", "m1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("order[%d] = %q, expected %q", i, order[i], v)
		}
	}
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	wrapped := LoggingMiddleware(zap.New(core))(handler)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/test" || fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("fields = %v", fields)
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantOrigin string
		wantStatus int
	}{
		{name: "no origin", method: http.MethodGet, wantOrigin: "", wantStatus: http.StatusOK},
		{name: "same origin", origin: "http://example.com", method: http.MethodGet, wantOrigin: "", wantStatus: http.StatusOK},
		{name: "cross origin without list", origin: "http://a.example.com", method: http.MethodGet, wantOrigin: "", wantStatus: http.StatusForbidden},
		{name: "cross origin post without list", origin: "https://evil.example.com", method: http.MethodPost, wantOrigin: "", wantStatus: http.StatusForbidden},
		{name: "allowed origin", allowed: []string{"http://localhost:5173"}, origin: "http://localhost:5173", method: http.MethodGet, wantOrigin: "http://localhost:5173", wantStatus: http.StatusOK},
		{name: "foreign origin", allowed: []string{"http://localhost:5173"}, origin: "http://evil.example.com", method: http.MethodGet, wantOrigin: "", wantStatus: http.StatusForbidden},
		{name: "allowed preflight", allowed: []string{"http://localhost:5173"}, origin: "http://localhost:5173", method: http.MethodOptions, wantOrigin: "http://localhost:5173", wantStatus: http.StatusNoContent},
		{name: "foreign preflight", origin: "http://evil.example.com", method: http.MethodOptions, wantOrigin: "", wantStatus: http.StatusForbidden},
		{name: "malformed origin", origin: "null", method: http.MethodGet, wantOrigin: "", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})
			wrapped := NewCORSMiddleware(CORSConfig{AllowedOrigins: tt.allowed})(handler)

			req := httptest.NewRequest(tt.method, "/test", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			wrapped.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.wantStatus == http.StatusForbidden && called {
				t.Error("handler called for a rejected origin")
			}
		})
	}
}

func TestJSONContentTypeMiddleware(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	JSONContentTypeMiddleware(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	rec := httptest.NewRecorder()
	RecoveryMiddleware(zap.New(core))(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
	if logs.Len() != 1 {
		t.Errorf("expected 1 log entry, got %d", logs.Len())
	}
}

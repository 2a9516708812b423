package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/otiai10/firesession/internal/session"
)

func TestNewServer(t *testing.T) {
	server := NewServer(":8787", http.NotFoundHandler())

	if server == nil {
		t.Fatal("expected server to be created")
	}

	if server.Addr() != ":8787" {
		t.Errorf("expected addr :8787, got %s", server.Addr())
	}

	if server.httpServer == nil {
		t.Error("expected httpServer to be initialized")
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	_, router := newTestRouter(newMockTracker(session.Snapshot{Loaded: true}), newMockProvider())

	// Use a random available port
	server := NewServer("127.0.0.1:0", router)

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	waitFor(t, func() bool { return server.Addr() != "127.0.0.1:0" })

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	// Shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}

	select {
	case err := <-errChan:
		if err != nil {
			t.Errorf("server start error: %v", err)
		}
	case <-time.After(time.Second):
		t.Error("Start did not return after Shutdown")
	}
}

func TestServerStart_AddressInUse(t *testing.T) {
	first := NewServer("127.0.0.1:0", http.NotFoundHandler())
	go first.Start()
	defer first.Shutdown(context.Background())
	waitFor(t, func() bool { return first.Addr() != "127.0.0.1:0" })

	second := NewServer(first.Addr(), http.NotFoundHandler())
	if err := second.Start(); err == nil {
		t.Error("Start() on a bound address error = nil")
	}
}

func TestServerShutdownNilServer(t *testing.T) {
	server := &Server{}

	ctx := context.Background()
	if err := server.Shutdown(ctx); err != nil {
		t.Errorf("expected nil error for nil httpServer, got: %v", err)
	}
}

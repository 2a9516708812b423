package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server represents the local session API server
type Server struct {
	addr       string
	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a new API server serving handler on addr
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			// Long polls on /api/session/wait and the stream outlive a short write timeout
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins listening for HTTP requests and blocks until Shutdown
func (s *Server) Start() error {
	if s.httpServer == nil {
		return fmt.Errorf("server not initialized")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	err = s.httpServer.Serve(ln)
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address. Once Start is listening it is the bound
// address, so ":0" resolves to the chosen port.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

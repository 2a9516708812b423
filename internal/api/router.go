package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/otiai10/firesession/internal/version"
)

// RouterConfig holds the middleware settings of the router
type RouterConfig struct {
	Logger         *zap.Logger // nil means no request logging
	AllowedOrigins []string    // defaults to the handler's; empty allows same-origin requests only
}

// NewRouter creates a new router with all API routes configured
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	registerPublicRoutes(mux, h)
	registerSessionRoutes(mux, h)
	registerAuthRoutes(mux, h)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = h.allowedOrigins
	}
	return Chain(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		NewCORSMiddleware(CORSConfig{AllowedOrigins: origins}),
		JSONContentTypeMiddleware,
	)(mux)
}

// registerPublicRoutes registers the health check
func registerPublicRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"hash":    version.CommitHash,
			"version": version.Version,
			"loaded":  h.tracker.Snapshot().Loaded,
		})
	})
}

// registerSessionRoutes registers the session tracker routes
func registerSessionRoutes(mux *http.ServeMux, h *Handler) {
	route(mux, "/api/session", http.MethodGet, h.GetSession)
	route(mux, "/api/session/wait", http.MethodGet, h.WaitSession)
	route(mux, "/api/session/refresh", http.MethodPost, h.RefreshSession)
	route(mux, "/api/session/sign-out", http.MethodPost, h.SignOut)
	route(mux, "/api/session/clear-error", http.MethodPost, h.ClearError)
	route(mux, "/api/session/events", http.MethodGet, h.ListEvents)
	route(mux, "/api/session/stream", http.MethodGet, h.StreamSession)
}

// registerAuthRoutes registers the action routes
func registerAuthRoutes(mux *http.ServeMux, h *Handler) {
	route(mux, "/api/auth/sign-up", http.MethodPost, h.SignUp)
	route(mux, "/api/auth/sign-in", http.MethodPost, h.SignIn)
	route(mux, "/api/auth/password-reset", http.MethodPost, h.SendPasswordResetEmail)
	route(mux, "/api/auth/email-verification", http.MethodPost, h.SendEmailVerification)
	route(mux, "/api/auth/action", http.MethodGet, h.HandleAction)
	route(mux, "/api/auth/action/reset-password", http.MethodPost, h.ConfirmPasswordReset)
}

// route registers fn for one method on path; OPTIONS is answered for CORS preflight
func route(mux *http.ServeMux, path, method string, fn http.HandlerFunc) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case method:
			fn(w, r)
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, "method not allowed", "", http.StatusMethodNotAllowed)
		}
	})
}

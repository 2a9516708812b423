package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/otiai10/firesession/internal/action"
	"github.com/otiai10/firesession/internal/identity"
	"github.com/otiai10/firesession/internal/journal"
	"github.com/otiai10/firesession/internal/session"
)

// SessionTracker is the part of session.Tracker the API serves
type SessionTracker interface {
	Snapshot() session.Snapshot
	WaitUntilLoaded(ctx context.Context, timeout time.Duration) error
	RefreshToken(ctx context.Context) error
	SignOut(ctx context.Context) error
	ClearError()
	Subscribe(fn func(session.Snapshot)) (cancel func())
}

// AuthProvider is everything the action endpoints call on the identity client
type AuthProvider interface {
	action.UserCreator
	action.PasswordSigner
	action.PasswordResetSender
	action.PasswordResetter
	action.EmailVerifier
	action.EmailRecoverer
	action.VerificationSender
}

var _ AuthProvider = (*identity.Client)(nil)
var _ SessionTracker = (*session.Tracker)(nil)

// CredentialsRequest is the body of sign up and sign in
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// EmailRequest is the body of the password reset email endpoint
type EmailRequest struct {
	Email string `json:"email" validate:"required"`
}

// ConfirmPasswordResetRequest is the body of the reset password endpoint
type ConfirmPasswordResetRequest struct {
	OOBCode     string `json:"oobCode" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// SessionResponse represents a session snapshot
type SessionResponse struct {
	Loaded   bool           `json:"loaded"`
	SignedIn bool           `json:"signedIn"`
	User     *identity.User `json:"user,omitempty"`
	Claims   map[string]any `json:"claims"`
	Error    *SessionError  `json:"error,omitempty"`
}

// SessionError is the coded error carried by a snapshot
type SessionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ActionResponse represents the outcome of an action endpoint
type ActionResponse struct {
	Result action.Result `json:"result"`
	Email  string        `json:"email,omitempty"`
	Mode   string        `json:"mode,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

const defaultJournalLimit = 50

// Handler contains the HTTP handlers for the API
type Handler struct {
	tracker  SessionTracker
	provider AuthProvider
	journal  journal.Repository
	logger   *zap.Logger
	validate *validator.Validate

	actionOpts     []action.Option
	allowedOrigins []string

	signUp        *action.CreateUser
	signIn        *action.SignIn
	passwordReset *action.SendPasswordResetEmail

	done      chan struct{}
	closeOnce sync.Once
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithLogger sets the logger for request failures
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithJournal serves GET /api/session/events from repo
func WithJournal(repo journal.Repository) HandlerOption {
	return func(h *Handler) {
		h.journal = repo
	}
}

// WithAllowedOrigins restricts the browser origins allowed to open the stream
func WithAllowedOrigins(origins []string) HandlerOption {
	return func(h *Handler) {
		h.allowedOrigins = origins
	}
}

// NewHandler creates a new Handler instance.
//
// Parameters:
//   - tracker: the session tracker whose snapshot is served
//   - provider: identity client used by the action endpoints
//   - opts: optional logger, journal, and allowed origins
//
// Returns:
//   - *Handler: call Close before shutting the server down to end open streams
//
// Example:
//
//	h := api.NewHandler(tracker, client, api.WithLogger(logger))
//	defer h.Close()
//	srv := api.NewServer(addr, api.NewRouter(h, api.RouterConfig{Logger: logger}))
func NewHandler(tracker SessionTracker, provider AuthProvider, opts ...HandlerOption) *Handler {
	h := &Handler{
		tracker:  tracker,
		provider: provider,
		logger:   zap.NewNop(),
		validate: validator.New(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.actionOpts = []action.Option{action.WithLogger(h.logger)}
	h.signUp = action.NewCreateUser(provider, h.actionOpts...)
	h.signIn = action.NewSignIn(provider, h.actionOpts...)
	h.passwordReset = action.NewSendPasswordResetEmail(provider, h.actionOpts...)
	return h
}

// Close ends every open session stream
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// GetSession handles GET /api/session
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, toSessionResponse(h.tracker.Snapshot()), http.StatusOK)
}

// WaitSession handles GET /api/session/wait?timeout=5s.
// It answers with the snapshot once loaded, or 504 when the wait times out.
func (h *Handler) WaitSession(w http.ResponseWriter, r *http.Request) {
	var timeout time.Duration
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, "invalid timeout", "", http.StatusBadRequest)
			return
		}
		timeout = d
	}

	if err := h.tracker.WaitUntilLoaded(r.Context(), timeout); err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, toSessionResponse(h.tracker.Snapshot()), http.StatusOK)
}

// RefreshSession handles POST /api/session/refresh
func (h *Handler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.RefreshToken(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, toSessionResponse(h.tracker.Snapshot()), http.StatusOK)
}

// SignOut handles POST /api/session/sign-out
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.SignOut(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearError handles POST /api/session/clear-error
func (h *Handler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.tracker.ClearError()
	writeJSON(w, toSessionResponse(h.tracker.Snapshot()), http.StatusOK)
}

// ListEvents handles GET /api/session/events?uid=&limit=.
// uid defaults to the signed-in principal.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		writeError(w, "journal is not enabled", "", http.StatusNotFound)
		return
	}

	uid := r.URL.Query().Get("uid")
	if uid == "" {
		if p := h.tracker.Snapshot().Principal; p != nil {
			uid = p.UID
		}
	}
	if uid == "" {
		writeError(w, "uid is required when signed out", "", http.StatusBadRequest)
		return
	}

	limit := defaultJournalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "invalid limit", "", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.journal.ListByUID(r.Context(), uid, limit)
	if err != nil {
		h.logger.Error("failed to list session events", zap.String("uid", uid), zap.Error(err))
		writeError(w, "failed to list events", "", http.StatusInternalServerError)
		return
	}

	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, entries, http.StatusOK)
}

// SignUp handles POST /api/auth/sign-up
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.signUp.Submit(r.Context(), req.Email, req.Password)
	h.writeResult(w, ActionResponse{Result: result}, err)
}

// SignIn handles POST /api/auth/sign-in
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.signIn.Submit(r.Context(), req.Email, req.Password)
	h.writeResult(w, ActionResponse{Result: result}, err)
}

// SendPasswordResetEmail handles POST /api/auth/password-reset
func (h *Handler) SendPasswordResetEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.passwordReset.Submit(r.Context(), req.Email)
	h.writeResult(w, ActionResponse{Result: result}, err)
}

// SendEmailVerification handles POST /api/auth/email-verification.
// Nothing is sent when the principal is already verified.
func (h *Handler) SendEmailVerification(w http.ResponseWriter, r *http.Request) {
	a := action.NewSendEmailVerification(h.tracker, h.provider, h.actionOpts...)
	st, err := a.Load(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	if st.Result == action.ResultEmailVerified {
		writeJSON(w, ActionResponse{Result: st.Result, Email: st.Email}, http.StatusOK)
		return
	}
	result, err := a.Send(r.Context())
	h.writeResult(w, ActionResponse{Result: result, Email: st.Email}, err)
}

// HandleAction handles GET /api/auth/action?mode=&oobCode=&continueUrl=,
// the target of the links in provider emails.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := action.ActionParams{
		Mode:        q.Get("mode"),
		OOBCode:     q.Get("oobCode"),
		ContinueURL: q.Get("continueUrl"),
	}
	if params.OOBCode == "" {
		writeError(w, "oobCode is required", "", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	verify := func(p action.ActionParams) {
		result, err := action.NewVerifyEmail(h.provider, h.actionOpts...).Handle(ctx, p.OOBCode)
		h.writeResult(w, ActionResponse{Result: result, Mode: p.Mode}, err)
	}

	action.ActionHandler{
		OnResetPassword: func(p action.ActionParams) {
			a := action.NewResetPassword(h.provider, h.actionOpts...)
			result, err := a.Handle(ctx, p.OOBCode)
			h.writeResult(w, ActionResponse{Result: result, Email: a.State().Email, Mode: p.Mode}, err)
		},
		OnRecoverEmail: func(p action.ActionParams) {
			a := action.NewRecoverEmail(h.provider, h.actionOpts...)
			result, err := a.Handle(ctx, p.OOBCode)
			h.writeResult(w, ActionResponse{Result: result, Email: a.State().Email, Mode: p.Mode}, err)
		},
		OnVerifyEmail:          verify,
		OnVerifyAndChangeEmail: verify,
		OnInvalidMode: func(mode string) {
			writeError(w, "invalid mode: "+mode, "", http.StatusBadRequest)
		},
	}.Handle(params)
}

// ConfirmPasswordReset handles POST /api/auth/action/reset-password
func (h *Handler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPasswordResetRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := action.NewResetPassword(h.provider, h.actionOpts...).Confirm(r.Context(), req.OOBCode, req.NewPassword)
	h.writeResult(w, ActionResponse{Result: result}, err)
}

// decode reads and validates a JSON body, answering 400 on failure
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "invalid request body", "", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, verrs[0].Field()+" is "+verrs[0].Tag(), "", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body", "", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeResult(w http.ResponseWriter, resp ActionResponse, err error) {
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, resp, http.StatusOK)
}

// writeFailure maps an error to its status code:
// guard violations 409, wait timeout 504, unloaded tracker 503,
// other provider failures 502 with their code.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, action.ErrAlreadySubmitting),
		errors.Is(err, action.ErrNotLoaded),
		errors.Is(err, action.ErrNotSignedIn):
		writeError(w, err.Error(), "", http.StatusConflict)
	case errors.Is(err, session.ErrLoadingTimedOut):
		writeError(w, err.Error(), session.CodeLoadingTimedOut, http.StatusGatewayTimeout)
	case errors.Is(err, session.ErrUnloaded):
		writeError(w, err.Error(), session.CodeUnloaded, http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, "request cancelled", "", http.StatusServiceUnavailable)
	default:
		code := identity.ErrorCode(err)
		if code == "" {
			code = session.CodeUnknown
		}
		h.logger.Warn("provider call failed", zap.String("code", code), zap.Error(err))
		writeError(w, err.Error(), code, http.StatusBadGateway)
	}
}

func toSessionResponse(s session.Snapshot) SessionResponse {
	resp := SessionResponse{
		Loaded:   s.Loaded,
		SignedIn: s.SignedIn(),
		User:     s.Principal,
		Claims:   s.Claims,
	}
	if resp.Claims == nil {
		resp.Claims = map[string]any{}
	}
	if s.Error != nil {
		code := identity.ErrorCode(s.Error)
		if code == "" {
			code = session.CodeUnknown
		}
		resp.Error = &SessionError{Code: code, Message: s.Error.Error()}
	}
	return resp
}

func writeJSON(w http.ResponseWriter, data any, status int) {
	w.WriteHeader(status)
	// Headers are already sent; an encode failure means the client went away
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message, code string, status int) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

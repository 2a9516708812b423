package action

import (
	"errors"
	"fmt"
	"net/url"
)

// Mode is the kind of email action link
type Mode string

const (
	ModeResetPassword        Mode = "resetPassword"
	ModeRecoverEmail         Mode = "recoverEmail"
	ModeVerifyEmail          Mode = "verifyEmail"
	ModeVerifyAndChangeEmail Mode = "verifyAndChangeEmail"
)

// ActionParams are the query parameters of an email action link
type ActionParams struct {
	Mode        string `json:"mode"`
	OOBCode     string `json:"oobCode"`
	ContinueURL string `json:"continueUrl,omitempty"`
}

// ParseActionLink extracts ActionParams from a link such as
// https://example.com/__/auth/action?mode=resetPassword&oobCode=CODE&continueUrl=...
func ParseActionLink(link string) (ActionParams, error) {
	u, err := url.Parse(link)
	if err != nil {
		return ActionParams{}, fmt.Errorf("failed to parse action link: %w", err)
	}
	q := u.Query()
	p := ActionParams{
		Mode:        q.Get("mode"),
		OOBCode:     q.Get("oobCode"),
		ContinueURL: q.Get("continueUrl"),
	}
	if p.OOBCode == "" {
		return p, errors.New("action link has no oobCode")
	}
	return p, nil
}

// ActionHandler dispatches an action link to the callback for its mode.
// Nil callbacks are skipped.
type ActionHandler struct {
	OnResetPassword        func(ActionParams)
	OnRecoverEmail         func(ActionParams)
	OnVerifyEmail          func(ActionParams)
	OnVerifyAndChangeEmail func(ActionParams)
	OnInvalidMode          func(mode string)
}

// Handle calls exactly one callback
func (h ActionHandler) Handle(p ActionParams) {
	var fn func(ActionParams)
	switch Mode(p.Mode) {
	case ModeResetPassword:
		fn = h.OnResetPassword
	case ModeRecoverEmail:
		fn = h.OnRecoverEmail
	case ModeVerifyEmail:
		fn = h.OnVerifyEmail
	case ModeVerifyAndChangeEmail:
		fn = h.OnVerifyAndChangeEmail
	default:
		if h.OnInvalidMode != nil {
			h.OnInvalidMode(p.Mode)
		}
		return
	}
	if fn != nil {
		fn(p)
	}
}

package identity

import (
	"errors"
	"strings"

	"google.golang.org/api/googleapi"
)

// Error codes reported by the client, named after the browser SDK codes
const (
	CodeEmailAlreadyInUse  = "auth/email-already-in-use"
	CodeInvalidEmail       = "auth/invalid-email"
	CodeWeakPassword       = "auth/weak-password"
	CodeInvalidCredential  = "auth/invalid-credential"
	CodeExpiredActionCode  = "auth/expired-action-code"
	CodeInvalidActionCode  = "auth/invalid-action-code"
	CodeUserDisabled       = "auth/user-disabled"
	CodeTooManyRequests    = "auth/too-many-requests"
	CodeUserTokenExpired   = "auth/user-token-expired"
	CodeInvalidUserToken   = "auth/invalid-user-token"
	CodeOperationForbidden = "auth/operation-not-allowed"
	CodeInternal           = "auth/internal-error"
	CodeNoCurrentUser      = "auth/no-current-user"
)

// serverCodes maps Identity Toolkit error messages to client error codes
var serverCodes = map[string]string{
	"EMAIL_EXISTS":                CodeEmailAlreadyInUse,
	"INVALID_EMAIL":               CodeInvalidEmail,
	"MISSING_EMAIL":               CodeInvalidEmail,
	"WEAK_PASSWORD":               CodeWeakPassword,
	"INVALID_LOGIN_CREDENTIALS":   CodeInvalidCredential,
	"INVALID_PASSWORD":            CodeInvalidCredential,
	"EMAIL_NOT_FOUND":             CodeInvalidCredential,
	"EXPIRED_OOB_CODE":            CodeExpiredActionCode,
	"INVALID_OOB_CODE":            CodeInvalidActionCode,
	"USER_DISABLED":               CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER": CodeTooManyRequests,
	"TOKEN_EXPIRED":               CodeUserTokenExpired,
	"USER_NOT_FOUND":              CodeUserTokenExpired,
	"INVALID_REFRESH_TOKEN":       CodeInvalidUserToken,
	"INVALID_ID_TOKEN":            CodeInvalidUserToken,
	"OPERATION_NOT_ALLOWED":       CodeOperationForbidden,
	"PASSWORD_LOGIN_DISABLED":     CodeOperationForbidden,
}

// Error is a coded failure returned by the client
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// ErrorCode returns the client error code
func (e *Error) ErrorCode() string {
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// coder is implemented by errors that carry a string code
type coder interface {
	ErrorCode() string
}

// ErrorCode extracts the error code carried by err, or "" when err has none.
//
// Any error in the chain that implements ErrorCode() string is honoured first.
// Raw *googleapi.Error values are translated from their server message.
//
// Example:
//
//	_, err := client.SignInWithEmailAndPassword(ctx, email, password)
//	if identity.ErrorCode(err) == identity.CodeInvalidCredential {
//	    // show "wrong email or password"
//	}
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var c coder
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return codeFromServerMessage(gerr.Message)
	}
	return ""
}

// codeFromServerMessage translates messages such as
// "WEAK_PASSWORD : Password should be at least 6 characters"
func codeFromServerMessage(message string) string {
	key := message
	if i := strings.Index(key, ":"); i >= 0 {
		key = key[:i]
	}
	key = strings.TrimSpace(key)
	if code, ok := serverCodes[key]; ok {
		return code
	}
	return CodeInternal
}

// fromAPIError converts an HTTP level failure into a coded Error
func fromAPIError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	return &Error{
		Code:    codeFromServerMessage(gerr.Message),
		Message: gerr.Message,
		Err:     err,
	}
}

package identity

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

type codedError struct{ code string }

func (e codedError) Error() string     { return "coded: " + e.code }
func (e codedError) ErrorCode() string { return e.code }

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "plain error has no code",
			err:      errors.New("boom"),
			expected: "",
		},
		{
			name:     "identity error",
			err:      &Error{Code: CodeInvalidCredential},
			expected: CodeInvalidCredential,
		},
		{
			name:     "wrapped identity error",
			err:      fmt.Errorf("sign in: %w", &Error{Code: CodeWeakPassword}),
			expected: CodeWeakPassword,
		},
		{
			name:     "foreign coded error",
			err:      codedError{code: "custom/code"},
			expected: "custom/code",
		},
		{
			name:     "raw googleapi error",
			err:      &googleapi.Error{Code: 400, Message: "EXPIRED_OOB_CODE"},
			expected: CodeExpiredActionCode,
		},
		{
			name:     "unknown googleapi message",
			err:      &googleapi.Error{Code: 500, Message: "SOMETHING_NEW"},
			expected: CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCodeFromServerMessage(t *testing.T) {
	tests := []struct {
		message  string
		expected string
	}{
		{"EMAIL_EXISTS", CodeEmailAlreadyInUse},
		{"WEAK_PASSWORD : Password should be at least 6 characters", CodeWeakPassword},
		{"INVALID_LOGIN_CREDENTIALS", CodeInvalidCredential},
		{"EMAIL_NOT_FOUND", CodeInvalidCredential},
		{"INVALID_OOB_CODE", CodeInvalidActionCode},
		{"TOO_MANY_ATTEMPTS_TRY_LATER : Access disabled", CodeTooManyRequests},
		{"", CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := codeFromServerMessage(tt.message); got != tt.expected {
				t.Errorf("codeFromServerMessage(%q) = %q, want %q", tt.message, got, tt.expected)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	err := &Error{Code: CodeInvalidEmail, Message: "INVALID_EMAIL"}
	if err.Error() != "auth/invalid-email: INVALID_EMAIL" {
		t.Errorf("Error() = %q", err.Error())
	}

	bare := &Error{Code: CodeInternal}
	if bare.Error() != CodeInternal {
		t.Errorf("Error() = %q, want %q", bare.Error(), CodeInternal)
	}
}

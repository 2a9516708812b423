package auth

import (
	"testing"
)

func TestGetStringClaim(t *testing.T) {
	tests := []struct {
		name     string
		claims   map[string]any
		key      string
		expected string
	}{
		{
			name:     "existing string claim",
			claims:   map[string]any{"email": "test@example.com"},
			key:      "email",
			expected: "test@example.com",
		},
		{
			name:     "missing claim",
			claims:   map[string]any{},
			key:      "email",
			expected: "",
		},
		{
			name:     "wrong type claim",
			claims:   map[string]any{"email": 123},
			key:      "email",
			expected: "",
		},
		{
			name:     "nil claims map",
			claims:   nil,
			key:      "email",
			expected: "",
		},
		{
			name:     "empty string claim",
			claims:   map[string]any{"email": ""},
			key:      "email",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getStringClaim(tt.claims, tt.key)
			if result != tt.expected {
				t.Errorf("getStringClaim(%q) = %q, want %q", tt.key, result, tt.expected)
			}
		})
	}
}

func TestGetBoolClaim(t *testing.T) {
	tests := []struct {
		name     string
		claims   map[string]any
		key      string
		expected bool
	}{
		{
			name:     "existing true claim",
			claims:   map[string]any{"email_verified": true},
			key:      "email_verified",
			expected: true,
		},
		{
			name:     "existing false claim",
			claims:   map[string]any{"email_verified": false},
			key:      "email_verified",
			expected: false,
		},
		{
			name:     "missing claim",
			claims:   map[string]any{},
			key:      "email_verified",
			expected: false,
		},
		{
			name:     "wrong type claim - string",
			claims:   map[string]any{"email_verified": "true"},
			key:      "email_verified",
			expected: false,
		},
		{
			name:     "wrong type claim - int",
			claims:   map[string]any{"email_verified": 1},
			key:      "email_verified",
			expected: false,
		},
		{
			name:     "nil claims map",
			claims:   nil,
			key:      "email_verified",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := getBoolClaim(tt.claims, tt.key)
			if result != tt.expected {
				t.Errorf("getBoolClaim(%q) = %v, want %v", tt.key, result, tt.expected)
			}
		})
	}
}

func TestClaimsFromMap(t *testing.T) {
	tests := []struct {
		name     string
		claims   map[string]any
		expected Claims
	}{
		{
			name: "full token",
			claims: map[string]any{
				"user_id":        "uid-1",
				"sub":            "uid-1",
				"email":          "a@example.com",
				"email_verified": true,
				"name":           "Alice",
				"firebase":       map[string]any{"sign_in_provider": "password"},
			},
			expected: Claims{UID: "uid-1", Email: "a@example.com", EmailVerified: true, Name: "Alice", ProviderID: "password"},
		},
		{
			name:     "subject only",
			claims:   map[string]any{"sub": "uid-2"},
			expected: Claims{UID: "uid-2"},
		},
		{
			name:     "empty",
			claims:   nil,
			expected: Claims{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClaimsFromMap(tt.claims); got != tt.expected {
				t.Errorf("ClaimsFromMap() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

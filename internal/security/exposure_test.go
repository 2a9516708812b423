package security

import "testing"

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip       string
		expected bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"192.168.1.1", true},
		{"169.254.1.1", true},
		{"::1", true},
		{"fe80::1", true},
		{"8.8.8.8", false},
		{"2001:4860:4860::8888", false},
		{"not-an-ip", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			if got := IsPrivateIP(tt.ip); got != tt.expected {
				t.Errorf("IsPrivateIP(%q) = %v, want %v", tt.ip, got, tt.expected)
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"localhost", true},
		{"LOCALHOST", true},
		{"127.0.0.1", true},
		{"127.1.2.3", true},
		{"::1", true},
		{"[::1]", true},
		{"0.0.0.0", false},
		{"::", false},
		{"", false},
		{"192.168.1.1", false},
		{"example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := IsLoopback(tt.host); got != tt.expected {
				t.Errorf("IsLoopback(%q) = %v, want %v", tt.host, got, tt.expected)
			}
		})
	}
}

func TestValidateListenAddr(t *testing.T) {
	tests := []struct {
		name        string
		addr        string
		allowRemote bool
		wantErr     bool
	}{
		{name: "loopback", addr: "127.0.0.1:8787"},
		{name: "localhost", addr: "localhost:8787"},
		{name: "ipv6 loopback", addr: "[::1]:8787"},
		{name: "every interface", addr: ":8787", wantErr: true},
		{name: "unspecified", addr: "0.0.0.0:8787", wantErr: true},
		{name: "private", addr: "192.168.1.10:8787", wantErr: true},
		{name: "every interface allowed", addr: ":8787", allowRemote: true},
		{name: "unspecified allowed", addr: "0.0.0.0:8787", allowRemote: true},
		{name: "private allowed", addr: "10.0.0.5:8787", allowRemote: true},
		{name: "hostname allowed", addr: "session.internal:8787", allowRemote: true},
		{name: "public never", addr: "8.8.8.8:8787", allowRemote: true, wantErr: true},
		{name: "missing port", addr: "127.0.0.1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateListenAddr(tt.addr, tt.allowRemote)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateListenAddr(%q, %v) error = %v, wantErr %v", tt.addr, tt.allowRemote, err, tt.wantErr)
			}
		})
	}
}

func TestValidateOrigin(t *testing.T) {
	tests := []struct {
		origin  string
		wantErr bool
	}{
		{"https://app.example.com", false},
		{"https://app.example.com:8443", false},
		{"http://localhost:5173", false},
		{"http://127.0.0.1:3000", false},
		{"http://app.example.com", true},
		{"https://app.example.com/path", true},
		{"https://app.example.com?x=1", true},
		{"https://user@app.example.com", true},
		{"ftp://app.example.com", true},
		{"https://", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			err := ValidateOrigin(tt.origin)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOrigin(%q) error = %v, wantErr %v", tt.origin, err, tt.wantErr)
			}
		})
	}
}

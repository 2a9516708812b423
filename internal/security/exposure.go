// Package security checks how far the session API is exposed: which
// addresses it may listen on and which browser origins may call it.
package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// IsPrivateIP checks if the given IP address is a private, localhost, or link-local address.
// Returns true for:
// - Private ranges: 10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16, fc00::/7
// - Localhost: 127.0.0.0/8, ::1
// - Link-local: 169.254.0.0/16, fe80::/10
// Returns false for public IPs and invalid IP strings.
func IsPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// IsLoopback checks if host only reaches the local machine.
// Accepts: "localhost", 127.x.x.x, "::1", "[::1]".
// The unspecified addresses 0.0.0.0 and :: are not loopback: listening on
// them binds every interface.
func IsLoopback(host string) bool {
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// ValidateListenAddr checks a host:port the session API will listen on.
//
// Parameters:
//   - addr: listen address such as "127.0.0.1:8787" or ":8787"
//   - allowRemote: permit addresses reachable from other machines
//
// Returns nil when addr is loopback, or when allowRemote is set and addr is
// not a public IP literal. Remote listening still never binds a public IP.
func ValidateListenAddr(addr string, allowRemote bool) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if IsLoopback(host) {
		return nil
	}
	if !allowRemote {
		if host == "" {
			return fmt.Errorf("listen address %q binds every interface; set api.allowRemote to permit it", addr)
		}
		return fmt.Errorf("listen address %q is not a loopback address; set api.allowRemote to permit it", addr)
	}
	if ip := net.ParseIP(host); ip != nil && !ip.IsUnspecified() && !IsPrivateIP(host) {
		return fmt.Errorf("listen address %q is a public IP address", addr)
	}
	return nil
}

// ValidateOrigin checks a browser origin allowed to call the API.
// It checks:
// - origin is scheme://host[:port] with no path, query, or fragment
// - scheme is http or https
// - http is only used for loopback hosts (local dev servers)
func ValidateOrigin(origin string) error {
	if origin == "" {
		return fmt.Errorf("origin is empty")
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported origin scheme: %q (only http and https are allowed)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid origin: missing host")
	}
	if (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" || parsed.User != nil {
		return fmt.Errorf("origin %q must not carry a path, query, or credentials", origin)
	}
	if scheme == "http" && !IsLoopback(parsed.Hostname()) {
		return fmt.Errorf("HTTPS is required for non-local origin %q", origin)
	}
	return nil
}

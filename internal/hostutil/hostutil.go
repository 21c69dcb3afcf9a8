// Package hostutil normalizes the media API address users configure.
package hostutil

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Normalize turns a bare host into a URL. Loopback hosts get http://, others
// https://. Values with a scheme pass through; empty stays empty. A trailing
// slash is dropped.
func Normalize(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		if IsLocalhost(host) {
			host = "http://" + host
		} else {
			host = "https://" + host
		}
	}
	return strings.TrimSuffix(host, "/")
}

// ParseAPIURL normalizes raw and checks it is safe to send a token to:
// http(s) with a host, and plain http only on loopback.
func ParseAPIURL(raw string) (string, error) {
	normalized := Normalize(raw)
	u, err := url.Parse(normalized)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%q is not a URL", raw)
	}
	switch u.Scheme {
	case "https":
	case "http":
		if !IsLocalhost(u.Host) {
			return "", fmt.Errorf("%q must use https", raw)
		}
	default:
		return "", fmt.Errorf("%q must be an http(s) URL", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("%q must not carry a query or fragment", raw)
	}
	return normalized, nil
}

// IsLocalhost reports whether host, with an optional port, is localhost, a
// .localhost subdomain, or a loopback IP.
func IsLocalhost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

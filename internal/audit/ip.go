// ip.go extracts the client IP for the audit actor, walking proxy headers in a
// fixed precedence order and validating every candidate before acceptance.
package audit

import (
	"net"
	"net/http"
	"strings"
)

// fallbackIP is recorded when no source yields a valid address.
const fallbackIP = "127.0.0.1"

// ClientIP resolves the caller's IP address with the precedence:
// X-Forwarded-For (first value) → X-Real-IP → CF-Connecting-IP → socket remote
// address → loopback. Invalid candidates are skipped to the next source, never
// surfaced as errors.
func ClientIP(headers http.Header, remoteAddr string) string {
	if xff := headers.Get("X-Forwarded-For"); xff != "" {
		// The first comma-separated value is the originating client; the rest
		// are intermediate proxies.
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if ip, ok := validIP(first); ok {
			return ip
		}
	}

	if xri := strings.TrimSpace(headers.Get("X-Real-IP")); xri != "" {
		if ip, ok := validIP(xri); ok {
			return ip
		}
	}

	if cf := strings.TrimSpace(headers.Get("CF-Connecting-IP")); cf != "" {
		if ip, ok := validIP(cf); ok {
			return ip
		}
	}

	if remoteAddr != "" {
		host := remoteAddr
		if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
			host = h
		}
		if ip, ok := validIP(host); ok {
			return ip
		}
	}

	return fallbackIP
}

// validIP reports whether a candidate parses as an IP address, normalizing
// IPv4-mapped-IPv6 forms to plain IPv4 and allowing loopback/localhost strings.
func validIP(candidate string) (string, bool) {
	if candidate == "" {
		return "", false
	}
	if candidate == "localhost" {
		return fallbackIP, true
	}
	if candidate == "::1" {
		return candidate, true
	}

	ip := net.ParseIP(candidate)
	if ip == nil {
		return "", false
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String(), true
	}
	return ip.String(), true
}

package middleware

import (
	"net"
	"net/http"
	"strings"

	apierrors "agentforge/internal/errors"
)

// HostMatcher decides whether a Host header names this service
type HostMatcher struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string
}

// NewHostMatcher builds a matcher from an allow list. "*" admits every host
// and "*.example.com" admits any subdomain of example.com.
func NewHostMatcher(allowed []string) *HostMatcher {
	m := &HostMatcher{exact: make(map[string]struct{}, len(allowed))}
	for _, pattern := range allowed {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		switch {
		case pattern == "":
		case pattern == "*":
			m.any = true
		case strings.HasPrefix(pattern, "*."):
			m.suffixes = append(m.suffixes, pattern[1:])
		default:
			m.exact[normalizeHost(pattern)] = struct{}{}
		}
	}
	return m
}

// Allowed reports whether host, with or without a port, is admitted
func (m *HostMatcher) Allowed(host string) bool {
	if m.any {
		return true
	}
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	if _, ok := m.exact[host]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
}

// TrustedHost rejects requests whose Host header is not on the allow list
func TrustedHost(allowed []string) func(http.Handler) http.Handler {
	matcher := NewHostMatcher(allowed)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !matcher.Allowed(r.Host) {
				apierrors.Write(w, r, apierrors.ErrInvalidHost)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

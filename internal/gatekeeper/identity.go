package gatekeeper

import (
	"net"
	"strings"

	"gatekeeper/internal/models"
)

// Identity key prefixes. Authenticated subjects and network origins live in
// separate namespaces so a client cannot collide one with the other.
const (
	subjectIdentityPrefix = "sub:"
	originIdentityPrefix  = "ip:"
)

// resolveIdentity derives the rate-limiting identity for a request. A
// verified credential subject is preferred because it is stable across
// proxies and address churn; otherwise the network origin is used. Identity
// resolution never fails.
func resolveIdentity(view models.RequestView, cred *models.Credential, trustedProxies []string) string {
	if cred != nil {
		return subjectIdentityPrefix + cred.Subject
	}
	return originIdentityPrefix + clientIP(view, trustedProxies)
}

// clientIP returns the network origin of the request. X-Forwarded-For is
// honored only when the direct peer is a trusted proxy; otherwise a client
// could spoof its identity with a single header.
func clientIP(view models.RequestView, trustedProxies []string) string {
	host, _, err := net.SplitHostPort(view.RemoteAddr)
	if err != nil {
		host = view.RemoteAddr
	}

	if view.ForwardedFor != "" && isTrustedProxy(host, trustedProxies) {
		parts := strings.Split(view.ForwardedFor, ",")
		if forwarded := strings.TrimSpace(parts[0]); forwarded != "" {
			return forwarded
		}
	}

	return host
}

func isTrustedProxy(host string, trustedProxies []string) bool {
	for _, proxy := range trustedProxies {
		if host == proxy {
			return true
		}
	}
	return false
}

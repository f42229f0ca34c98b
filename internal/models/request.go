package models

import (
	"net/http"
	"strings"
)

// RequestView is the normalized view of one inbound request handed to the
// gatekeeper by the HTTP/WebSocket layer. Bodies are deliberately absent;
// inspection is bounded to metadata to keep per-request cost flat.
type RequestView struct {
	Method          string
	Path            string
	RawQuery        string
	Headers         http.Header
	ClientSignature string // User-Agent or equivalent client self-identification
	ContentLength   int64  // declared, not measured
	RemoteAddr      string // direct network peer, host:port
	ForwardedFor    string // X-Forwarded-For, only trusted when the peer is a trusted proxy
	RawCredential   string // bearer token as presented, empty when absent
}

// NewRequestView builds a RequestView from an *http.Request.
func NewRequestView(r *http.Request) RequestView {
	view := RequestView{
		Method:          r.Method,
		Path:            r.URL.Path,
		RawQuery:        r.URL.RawQuery,
		Headers:         r.Header,
		ClientSignature: r.UserAgent(),
		ContentLength:   r.ContentLength,
		RemoteAddr:      r.RemoteAddr,
		ForwardedFor:    r.Header.Get("X-Forwarded-For"),
	}

	const prefix = "Bearer "
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, prefix) {
		view.RawCredential = auth[len(prefix):]
	}

	return view
}

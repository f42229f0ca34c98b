package gatekeeper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gatekeeper/internal/models"
)

func TestResolveIdentity_PrefersVerifiedSubject(t *testing.T) {
	view := models.RequestView{RemoteAddr: "203.0.113.9:51234"}
	cred := &models.Credential{TokenID: "tok", Subject: "user-42"}

	identity := resolveIdentity(view, cred, nil)
	assert.Equal(t, "sub:user-42", identity)
}

func TestResolveIdentity_FallsBackToOrigin(t *testing.T) {
	view := models.RequestView{RemoteAddr: "203.0.113.9:51234"}

	identity := resolveIdentity(view, nil, nil)
	assert.Equal(t, "ip:203.0.113.9", identity)
}

func TestResolveIdentity_RemoteAddrWithoutPort(t *testing.T) {
	view := models.RequestView{RemoteAddr: "203.0.113.9"}

	identity := resolveIdentity(view, nil, nil)
	assert.Equal(t, "ip:203.0.113.9", identity)
}

func TestClientIP_ForwardedForIgnoredFromUntrustedPeer(t *testing.T) {
	view := models.RequestView{
		RemoteAddr:   "198.51.100.7:443",
		ForwardedFor: "10.0.0.99",
	}

	// A client claiming a forwarded address gets judged by its real origin.
	assert.Equal(t, "198.51.100.7", clientIP(view, nil))
	assert.Equal(t, "198.51.100.7", clientIP(view, []string{"192.0.2.1"}))
}

func TestClientIP_ForwardedForHonoredFromTrustedProxy(t *testing.T) {
	view := models.RequestView{
		RemoteAddr:   "192.0.2.1:443",
		ForwardedFor: "203.0.113.9",
	}

	assert.Equal(t, "203.0.113.9", clientIP(view, []string{"192.0.2.1"}))
}

func TestClientIP_FirstForwardedEntryWins(t *testing.T) {
	view := models.RequestView{
		RemoteAddr:   "192.0.2.1:443",
		ForwardedFor: "203.0.113.9, 10.1.1.1, 192.0.2.1",
	}

	assert.Equal(t, "203.0.113.9", clientIP(view, []string{"192.0.2.1"}))
}

func TestClientIP_EmptyForwardedForFallsBack(t *testing.T) {
	view := models.RequestView{
		RemoteAddr:   "192.0.2.1:443",
		ForwardedFor: "",
	}

	assert.Equal(t, "192.0.2.1", clientIP(view, []string{"192.0.2.1"}))
}

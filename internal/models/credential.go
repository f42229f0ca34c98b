package models

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credential parsing and verification errors. The HTTP layer must surface all
// of these identically to callers so that forgery, expiry, and revocation are
// indistinguishable from outside; internal logs record the precise reason.
var (
	ErrMalformedCredential = errors.New("malformed credential")
	ErrBadSignature        = errors.New("credential signature mismatch")
	ErrExpiredCredential   = errors.New("credential expired")
)

// Credential is a self-verifying bearer token: an HMAC-SHA256 signed payload
// carrying a unique token ID, the subject, and a natural expiry. The
// gatekeeper validates and revokes credentials; it never mints them outside
// of tests and tooling.
type Credential struct {
	TokenID   string    `json:"tid"`
	Subject   string    `json:"sub"`
	ExpiresAt time.Time `json:"-"`
}

// credentialPayload is the wire form of the signed payload.
type credentialPayload struct {
	TokenID   string `json:"tid"`
	Subject   string `json:"sub"`
	ExpiresAt int64  `json:"exp"`
}

// ParseCredential decodes the payload half of a raw token and performs
// structural checks. It does not verify the signature; call Verify with the
// signing secret before trusting any field.
func ParseCredential(raw string) (*Credential, error) {
	payloadB64, _, ok := strings.Cut(raw, ".")
	if !ok {
		return nil, ErrMalformedCredential
	}

	data, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	var payload credentialPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	if payload.TokenID == "" || payload.Subject == "" || payload.ExpiresAt == 0 {
		return nil, ErrMalformedCredential
	}

	return &Credential{
		TokenID:   payload.TokenID,
		Subject:   payload.Subject,
		ExpiresAt: time.Unix(payload.ExpiresAt, 0).UTC(),
	}, nil
}

// Verify checks the raw token's HMAC signature against secret and the
// credential's natural expiry. Signature is checked first so that a forged
// token never learns anything from the expiry check.
func (c *Credential) Verify(raw string, secret []byte) error {
	payloadB64, sigB64, ok := strings.Cut(raw, ".")
	if !ok {
		return ErrMalformedCredential
	}

	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payloadB64))
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return ErrBadSignature
	}

	if time.Now().After(c.ExpiresAt) {
		return ErrExpiredCredential
	}

	return nil
}

// Remaining returns the credential's remaining validity at now, floored at zero.
func (c *Credential) Remaining(now time.Time) time.Duration {
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// EncodeCredential produces a signed raw token for the given subject and
// expiry. Used by tests and the seed tooling; production token issuance lives
// with the identity service, not here.
func EncodeCredential(subject string, expiresAt time.Time, secret []byte) (string, *Credential, error) {
	cred := &Credential{
		TokenID:   uuid.New().String(),
		Subject:   subject,
		ExpiresAt: expiresAt.UTC(),
	}

	data, err := json.Marshal(credentialPayload{
		TokenID:   cred.TokenID,
		Subject:   cred.Subject,
		ExpiresAt: cred.ExpiresAt.Unix(),
	})
	if err != nil {
		return "", nil, fmt.Errorf("encode credential: %w", err)
	}

	payloadB64 := base64.RawURLEncoding.EncodeToString(data)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payloadB64))
	sigB64 := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return payloadB64 + "." + sigB64, cred, nil
}

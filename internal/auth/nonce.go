package auth

import (
	"errors"
	"net/http"
	"time"
)

// DefaultNonceHeader is the request header the browser client sends the nonce in.
const DefaultNonceHeader = "X-WP-Nonce"

// ErrInvalidNonce is returned for a missing, unknown or expired nonce.
var ErrInvalidNonce = errors.New("invalid nonce")

// Nonces hands out per-page anti-forgery tokens.
type Nonces struct {
	Header string
	tokens *Registry
}

// NewNonces returns a nonce store whose values expire after ttl.
func NewNonces(ttl time.Duration, header string, opts ...Option) *Nonces {
	if header == "" {
		header = DefaultNonceHeader
	}
	return &Nonces{Header: header, tokens: NewRegistry(ttl, opts...)}
}

// Issue returns a fresh nonce value.
func (n *Nonces) Issue() string {
	return n.tokens.Issue().Value
}

// Check validates the nonce carried by r. Nonces stay valid until they expire
// so a visitor can retry after a failed submission.
func (n *Nonces) Check(r *http.Request) error {
	if n == nil {
		return nil
	}
	if !n.tokens.Validate(r.Header.Get(n.Header)) {
		return ErrInvalidNonce
	}
	return nil
}

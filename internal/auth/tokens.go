// Package auth issues the short-lived tokens used by the contact server: page
// nonces for the submission endpoint and bearer tokens for the admin listing.
package auth

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Token is an issued value and its expiry.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Registry tracks issued tokens until they expire.
type Registry struct {
	ttl   time.Duration
	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	tokens map[string]time.Time
}

// Option customises a Registry.
type Option func(*Registry)

// WithNow overrides the registry clock.
func WithNow(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithGenerator overrides how token values are minted.
func WithGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// NewRegistry returns a Registry whose tokens live for ttl.
func NewRegistry(ttl time.Duration, opts ...Option) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	r := &Registry{
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
		tokens: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue mints and records a new token. Expired entries are swept first.
func (r *Registry) Issue() Token {
	now := r.now()
	token := Token{Value: r.newID(), ExpiresAt: now.Add(r.ttl)}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(now)
	r.tokens[token.Value] = token.ExpiresAt
	return token
}

// Validate reports whether token was issued and has not expired.
func (r *Registry) Validate(token string) bool {
	if r == nil {
		return false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	expiry, ok := r.tokens[token]
	if !ok {
		return false
	}
	if r.now().After(expiry) {
		delete(r.tokens, token)
		return false
	}
	return true
}

// Revoke forgets token.
func (r *Registry) Revoke(token string) {
	r.mu.Lock()
	delete(r.tokens, strings.TrimSpace(token))
	r.mu.Unlock()
}

// Len returns how many unexpired tokens are tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked(r.now())
	return len(r.tokens)
}

func (r *Registry) sweepLocked(now time.Time) {
	for value, expiry := range r.tokens {
		if now.After(expiry) {
			delete(r.tokens, value)
		}
	}
}

package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidCredentials indicates that the provided email/password pair was rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates the caller lacks a valid admin token.
	ErrUnauthorized = errors.New("unauthorized")
)

// AdminConfig captures the credentials and TTL required to issue admin tokens.
type AdminConfig struct {
	Email    string
	Password string
	TokenTTL time.Duration
}

// Admin issues and validates bearer tokens for the single admin account.
type Admin struct {
	email    string
	password string
	tokens   *Registry
}

// NewAdmin returns nil when no credentials are configured, which disables
// the admin endpoints.
func NewAdmin(cfg AdminConfig, opts ...Option) *Admin {
	email := strings.ToLower(strings.TrimSpace(cfg.Email))
	if email == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil
	}
	return &Admin{
		email:    email,
		password: cfg.Password,
		tokens:   NewRegistry(cfg.TokenTTL, opts...),
	}
}

// Login validates the provided credentials and returns a bearer token.
func (a *Admin) Login(email, password string) (Token, error) {
	if a == nil {
		return Token{}, ErrUnauthorized
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Token{}, ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(a.email)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
	if !emailOK || !passOK {
		return Token{}, ErrInvalidCredentials
	}
	return a.tokens.Issue(), nil
}

// AuthorizeRequest validates the Authorization header on r.
func (a *Admin) AuthorizeRequest(r *http.Request) error {
	if a == nil {
		return ErrUnauthorized
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ErrUnauthorized
	}
	if !a.tokens.Validate(parts[1]) {
		return ErrUnauthorized
	}
	return nil
}

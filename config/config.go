package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"contact-form/internal/dom"
)

const (
	defaultAddr            = "127.0.0.1"
	defaultPort            = ":8880"
	defaultEndpoint        = "/contact/v1/submit"
	defaultNonceHeader     = "X-WP-Nonce"
	defaultRedirectURL     = "about:blank"
	defaultHoldMillis      = 5000
	defaultTimeoutMillis   = 14000
	defaultNonceTTLSeconds = 12 * 60 * 60
	defaultAdminTTLSeconds = 86400
	defaultSubmissionsPath = "data/submissions.json"
	defaultMaxUploadBytes  = 10 << 20
)

// ServerConfig configures the HTTP listener used by contact-server.
type ServerConfig struct {
	Addr string `json:"addr"`
	Port string `json:"port"`
}

// FormConfig is shared with the browser client through the page's embedded
// JSON block.
type FormConfig struct {
	Endpoint      string     `json:"endpoint"`
	NonceHeader   string     `json:"nonce_header"`
	Nonce         string     `json:"nonce,omitempty"`
	RedirectURL   string     `json:"redirect_url"`
	HoldMillis    int        `json:"hold_ms"`
	TimeoutMillis int        `json:"timeout_ms"`
	Debug         bool       `json:"debug"`
	Markup        dom.Markup `json:"markup"`
}

// Hold is how long result alerts stay visible.
func (f FormConfig) Hold() time.Duration {
	return time.Duration(f.HoldMillis) * time.Millisecond
}

// Timeout bounds the submission request.
func (f FormConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutMillis) * time.Millisecond
}

// WithDefaults fills unset fields.
func (f FormConfig) WithDefaults() FormConfig {
	if f.Endpoint == "" {
		f.Endpoint = defaultEndpoint
	}
	if f.NonceHeader == "" {
		f.NonceHeader = defaultNonceHeader
	}
	if f.RedirectURL == "" {
		f.RedirectURL = defaultRedirectURL
	}
	if f.HoldMillis <= 0 {
		f.HoldMillis = defaultHoldMillis
	}
	if f.TimeoutMillis <= 0 {
		f.TimeoutMillis = defaultTimeoutMillis
	}
	f.Markup = f.Markup.WithDefaults()
	return f
}

// AdminConfig holds the credentials for the submission log listing.
type AdminConfig struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	TokenTTLSeconds int    `json:"token_ttl_seconds"`
}

// SubmissionsConfig controls the on-disk submission log.
type SubmissionsConfig struct {
	Path           string `json:"path"`
	MaxUploadBytes int64  `json:"max_upload_bytes"`
}

// NonceConfig controls the anti-forgery tokens handed to the page.
type NonceConfig struct {
	TTLSeconds int `json:"ttl_seconds"`
}

// Config represents the combined runtime settings parsed from config.json.
type Config struct {
	Server      ServerConfig      `json:"server"`
	Form        FormConfig        `json:"form"`
	Admin       AdminConfig       `json:"admin"`
	Submissions SubmissionsConfig `json:"submissions"`
	Nonce       NonceConfig       `json:"nonce"`
}

// Load reads the JSON config at path, applies environment overrides and
// fills defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyEnv()
	return cfg.withDefaults(), nil
}

// Default returns the configuration used when no file is present.
func Default() Config {
	var cfg Config
	cfg.applyEnv()
	return cfg.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultAddr
	}
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	c.Form = c.Form.WithDefaults()
	if c.Admin.TokenTTLSeconds <= 0 {
		c.Admin.TokenTTLSeconds = defaultAdminTTLSeconds
	}
	if c.Submissions.Path == "" {
		c.Submissions.Path = defaultSubmissionsPath
	}
	if c.Submissions.MaxUploadBytes <= 0 {
		c.Submissions.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.Nonce.TTLSeconds <= 0 {
		c.Nonce.TTLSeconds = defaultNonceTTLSeconds
	}
	return c
}

func (c *Config) applyEnv() {
	c.Server.Addr = envOr("CONTACT_FORM_ADDR", c.Server.Addr)
	c.Server.Port = envOr("CONTACT_FORM_PORT", c.Server.Port)
	c.Form.Endpoint = envOr("CONTACT_FORM_ENDPOINT", c.Form.Endpoint)
	c.Form.Debug = envBoolOr("CONTACT_FORM_DEBUG", c.Form.Debug)
	c.Admin.Email = envOr("CONTACT_FORM_ADMIN_EMAIL", c.Admin.Email)
	c.Admin.Password = envOr("CONTACT_FORM_ADMIN_PASSWORD", c.Admin.Password)
	c.Submissions.Path = envOr("CONTACT_FORM_SUBMISSIONS_PATH", c.Submissions.Path)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

package v1

import (
	"encoding/json"
	"io"
	"net/http"

	"contact-form/internal/auth"
	"contact-form/internal/logging"
	"contact-form/internal/submissions"
)

// RuntimeInfo describes the pieces of server configuration that the UI exposes.
type RuntimeInfo struct {
	Name        string `json:"name"`
	Addr        string `json:"addr"`
	Port        string `json:"port"`
	ReadTimeout string `json:"readTimeout"`
	DataPath    string `json:"dataPath"`
}

// Options configures the HTTP router.
type Options struct {
	Logger         logging.Logger
	RuntimeInfo    RuntimeInfo
	Store          *submissions.Store
	Nonces         *auth.Nonces
	Admin          *auth.Admin
	SubmitPath     string
	HoneypotName   string
	FilesFieldName string
	MaxUploadBytes int64
	// UI serves everything not matched by an API route.
	UI http.Handler
}

// DefaultSubmitPath is where the browser client posts submissions.
const DefaultSubmitPath = "/contact/v1/submit"

// NewRouter constructs the HTTP router for the contact API and UI.
func NewRouter(opts Options) http.Handler {
	mux := http.NewServeMux()
	logger := opts.Logger
	submitPath := opts.SubmitPath
	if submitPath == "" {
		submitPath = DefaultSubmitPath
	}

	mux.Handle(submitPath, NewContactHandler(ContactHandlerOptions{
		Store:          opts.Store,
		Nonces:         opts.Nonces,
		HoneypotName:   opts.HoneypotName,
		FilesFieldName: opts.FilesFieldName,
		MaxUploadBytes: opts.MaxUploadBytes,
		Logger:         logger,
	}))
	mux.Handle("/contact/v1/admin/login", NewLoginHandler(opts.Admin))
	mux.Handle("/contact/v1/submissions", NewSubmissionsHandler(SubmissionsHandlerOptions{
		Admin:  opts.Admin,
		Store:  opts.Store,
		Logger: logger,
	}))

	mux.HandleFunc("/contact/v1/server/config", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, opts.RuntimeInfo)
	})

	if opts.UI != nil {
		mux.Handle("/", opts.UI)
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("UI assets not configured"))
		})
	}

	return logging.WithHTTPLogging(mux, logger)
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := encodeJSON(w, payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func encodeJSON(w io.Writer, payload any) error {
	return json.NewEncoder(w).Encode(payload)
}

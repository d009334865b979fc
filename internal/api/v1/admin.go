package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"contact-form/internal/auth"
	"contact-form/internal/logging"
	"contact-form/internal/submissions"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// NewLoginHandler exposes POST /contact/v1/admin/login.
func NewLoginHandler(admin *auth.Admin) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if admin == nil {
			http.Error(w, "admin auth disabled", http.StatusServiceUnavailable)
			return
		}

		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		token, err := admin.Login(req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}
			http.Error(w, "failed to authenticate", http.StatusInternalServerError)
			return
		}
		respondJSON(w, loginResponse{Token: token.Value, ExpiresAt: token.ExpiresAt.Format(time.RFC3339)})
	})
}

// SubmissionsHandlerOptions configures the admin submissions listing.
type SubmissionsHandlerOptions struct {
	Admin  *auth.Admin
	Store  *submissions.Store
	Logger logging.Logger
}

type submissionsHandler struct {
	opts SubmissionsHandlerOptions
}

// NewSubmissionsHandler serves GET (list) and DELETE (?id=) on the submission log.
func NewSubmissionsHandler(opts SubmissionsHandlerOptions) http.Handler {
	return submissionsHandler{opts: opts}
}

func (h submissionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.opts.Admin == nil || h.opts.Store == nil {
		http.Error(w, "admin submissions disabled", http.StatusServiceUnavailable)
		return
	}
	if err := h.opts.Admin.AuthorizeRequest(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.list(w)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodDelete)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h submissionsHandler) list(w http.ResponseWriter) {
	list, err := h.opts.Store.List()
	if err != nil {
		h.logf("list submissions: %v", err)
		http.Error(w, "failed to load submissions", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"submissions": list})
}

func (h submissionsHandler) remove(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	removed, err := h.opts.Store.Remove(id)
	if err != nil {
		if errors.Is(err, submissions.ErrNotFound) {
			http.Error(w, "submission not found", http.StatusNotFound)
			return
		}
		h.logf("remove submission %s: %v", id, err)
		http.Error(w, "failed to remove submission", http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"submission": removed})
}

func (h submissionsHandler) logf(format string, args ...any) {
	if h.opts.Logger != nil {
		h.opts.Logger.Printf(format, args...)
	}
}

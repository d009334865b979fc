package v1

import (
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"contact-form/internal/auth"
	"contact-form/internal/logging"
	"contact-form/internal/submissions"
	"contact-form/internal/upload"
)

const (
	defaultMaxUploadBytes = 10 << 20
	maxNameLength         = 100
	maxEmailLength        = 255
	maxMessageLength      = 4000

	msgSent           = "Thank you! Your message has been sent."
	msgExpired        = "Your session has expired. Please reload the page and try again."
	msgUnreadable     = "The submission could not be read."
	msgTooLarge       = "The attachments are too large."
	msgNameRequired   = "Please enter your name."
	msgNameTooLong    = "Your name is too long."
	msgEmailInvalid   = "Please enter a valid email address."
	msgMessageMissing = "Please enter a message."
	msgMessageTooLong = "Your message is too long."
	msgStoreFailed    = "We could not save your message. Please try again later."
	msgMethod         = "Method not allowed."
)

var (
	fieldPolicyOnce sync.Once
	fieldPolicy     *bluemonday.Policy
)

func fieldSanitizer() *bluemonday.Policy {
	fieldPolicyOnce.Do(func() {
		fieldPolicy = bluemonday.StrictPolicy()
	})
	return fieldPolicy
}

// ContactHandlerOptions configures the submission endpoint.
type ContactHandlerOptions struct {
	Store          *submissions.Store
	Nonces         *auth.Nonces
	HoneypotName   string
	FilesFieldName string
	MaxUploadBytes int64
	Logger         logging.Logger
}

type contactHandler struct {
	opts ContactHandlerOptions
}

// NewContactHandler returns the handler behind POST /contact/v1/submit.
func NewContactHandler(opts ContactHandlerOptions) http.Handler {
	if opts.HoneypotName == "" {
		opts.HoneypotName = "required_field"
	}
	if opts.FilesFieldName == "" {
		opts.FilesFieldName = "files[]"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return contactHandler{opts: opts}
}

func (h contactHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respondOutput(w, http.StatusMethodNotAllowed, msgMethod)
		return
	}
	if err := h.opts.Nonces.Check(r); err != nil {
		h.logf("rejected submission from %s: %v", r.RemoteAddr, err)
		respondOutput(w, http.StatusForbidden, msgExpired)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondOutput(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		h.logf("parse submission from %s: %v", r.RemoteAddr, err)
		respondOutput(w, http.StatusBadRequest, msgUnreadable)
		return
	}
	defer r.MultipartForm.RemoveAll()

	// Bots get a success response and nothing is stored.
	if strings.TrimSpace(r.FormValue(h.opts.HoneypotName)) != "" {
		h.logf("honeypot filled by %s, discarding", r.RemoteAddr)
		respondOutput(w, http.StatusOK, msgSent)
		return
	}

	sub := submissions.Submission{
		Name:       clean(r.FormValue("name")),
		Email:      strings.TrimSpace(r.FormValue("email")),
		Phone:      clean(r.FormValue("phone")),
		Message:    clean(r.FormValue("message")),
		RemoteAddr: remoteHost(r.RemoteAddr),
	}
	if problems := validate(sub); len(problems) > 0 {
		respondOutput(w, http.StatusUnprocessableEntity, problems...)
		return
	}

	files := r.MultipartForm.File[h.opts.FilesFieldName]
	names, rejected := classify(files)
	if len(rejected) > 0 {
		respondOutput(w, http.StatusUnsupportedMediaType, upload.RejectionMessage(rejected))
		return
	}
	sub.Files = names

	if h.opts.Store == nil {
		respondOutput(w, http.StatusServiceUnavailable, msgStoreFailed)
		return
	}
	saved, err := h.opts.Store.Append(sub)
	if err != nil {
		h.logf("store submission: %v", err)
		respondOutput(w, http.StatusInternalServerError, msgStoreFailed)
		return
	}
	h.logf("stored submission %s from %s (%d file(s))", saved.ID, saved.RemoteAddr, len(saved.Files))
	respondOutput(w, http.StatusOK, msgSent)
}

func (h contactHandler) logf(format string, args ...any) {
	if h.opts.Logger != nil {
		h.opts.Logger.Printf(format, args...)
	}
}

func clean(v string) string {
	return strings.TrimSpace(fieldSanitizer().Sanitize(v))
}

func validate(sub submissions.Submission) []string {
	var problems []string
	switch n := utf8.RuneCountInString(sub.Name); {
	case n == 0:
		problems = append(problems, msgNameRequired)
	case n > maxNameLength:
		problems = append(problems, msgNameTooLong)
	}
	if len(sub.Email) > maxEmailLength {
		problems = append(problems, msgEmailInvalid)
	} else if addr, err := mail.ParseAddress(sub.Email); err != nil || addr.Address != sub.Email {
		problems = append(problems, msgEmailInvalid)
	}
	switch n := utf8.RuneCountInString(sub.Message); {
	case n == 0:
		problems = append(problems, msgMessageMissing)
	case n > maxMessageLength:
		problems = append(problems, msgMessageTooLong)
	}
	return problems
}

// classify splits uploads into accepted names and rejected extensions,
// judging each part by its declared content type.
func classify(files []*multipart.FileHeader) (names, rejected []string) {
	for _, fh := range files {
		if upload.Allowed(fh.Header.Get("Content-Type")) {
			names = append(names, fh.Filename)
			continue
		}
		rejected = append(rejected, upload.Extension(fh.Filename))
	}
	return names, rejected
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

type outputResponse struct {
	Output any `json:"output"`
}

// respondOutput writes the {"output": ...} body the browser client expects:
// a string for one message, an array for several.
func respondOutput(w http.ResponseWriter, status int, messages ...string) {
	var body outputResponse
	if len(messages) == 1 {
		body.Output = messages[0]
	} else {
		body.Output = messages
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = encodeJSON(w, body)
}

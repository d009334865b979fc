package ui

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"contact-form/config"
	"contact-form/internal/auth"
	"contact-form/internal/dom/htmldom"
	"contact-form/internal/logging"
)

//go:embed dist/*
var content embed.FS

// ConfigElementID is the id of the JSON block the browser client reads.
const ConfigElementID = "contact-form-config"

// Options configures the UI handler.
type Options struct {
	Form   config.FormConfig
	Nonces *auth.Nonces
	Logger logging.Logger
}

// Handler serves the embedded UI assets. The index page carries the form
// configuration and a fresh nonce.
func Handler(opts Options) http.Handler {
	sub, err := fs.Sub(content, "dist")
	if err != nil {
		return http.NotFoundHandler()
	}
	opts.Form = opts.Form.WithDefaults()
	fsys := http.FS(sub)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean(r.URL.Path)
		if p == "/" || p == "." {
			p = "/index.html"
		}
		p = strings.TrimPrefix(p, "/")
		if p == "index.html" {
			serveIndex(w, sub, opts)
			return
		}
		file, err := fsys.Open(p)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer file.Close()
		info, err := file.Stat()
		if err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), file)
	})
}

func serveIndex(w http.ResponseWriter, fsys fs.FS, opts Options) {
	form := opts.Form
	if opts.Nonces != nil {
		form.Nonce = opts.Nonces.Issue()
		form.NonceHeader = opts.Nonces.Header
	}
	page, err := RenderIndex(fsys, form)
	if err != nil {
		if opts.Logger != nil {
			opts.Logger.Printf("render index: %v", err)
		}
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(page))
}

// RenderIndex returns index.html from fsys with form written into its
// configuration block.
func RenderIndex(fsys fs.FS, form config.FormConfig) (string, error) {
	raw, err := fs.ReadFile(fsys, "index.html")
	if err != nil {
		return "", fmt.Errorf("read index: %w", err)
	}
	doc, err := htmldom.Parse(string(raw))
	if err != nil {
		return "", err
	}
	block := doc.QuerySelector(`script[type="application/json"]#` + ConfigElementID)
	if block == nil {
		return "", fmt.Errorf("index has no #%s block", ConfigElementID)
	}
	data, err := json.Marshal(form)
	if err != nil {
		return "", fmt.Errorf("encode form config: %w", err)
	}
	block.SetText(string(data))
	return doc.HTML()
}

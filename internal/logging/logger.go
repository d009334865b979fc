// Package logging provides the contact server's Printf logger and the request
// logging middleware wrapped around the API router.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger represents the minimal logging interface used across the project.
type Logger interface {
	Printf(format string, v ...any)
}

type stdLogger struct {
	base *log.Logger
}

// entryWriter separates entries with a blank line so multi-line request dumps
// stay readable in the rotated log file.
type entryWriter struct {
	mu sync.Mutex
	w  io.Writer
}

var (
	defaultWriter   io.Writer = os.Stdout
	defaultWriterMu sync.RWMutex
)

// maxLoggedReply caps how much of a JSON reply is copied into the log.
const maxLoggedReply = 4096

// redactedHeaders never reach the log in clear text.
var redactedHeaders = map[string]bool{
	"authorization": true,
	"cookie":        true,
	"x-wp-nonce":    true,
}

// New returns a Logger that writes to the default writer.
func New() Logger {
	return NewWithWriter(getDefaultWriter())
}

// NewWithWriter builds a Logger writing timestamped entries to w.
func NewWithWriter(w io.Writer) Logger {
	if w == nil {
		w = os.Stdout
	}
	return &stdLogger{base: log.New(&entryWriter{w: w}, "", log.LstdFlags)}
}

// SetDefaultWriter overrides the writer used by New(). A nil writer restores stdout.
func SetDefaultWriter(w io.Writer) {
	defaultWriterMu.Lock()
	defer defaultWriterMu.Unlock()
	if w == nil {
		defaultWriter = os.Stdout
		return
	}
	defaultWriter = w
}

func getDefaultWriter() io.Writer {
	defaultWriterMu.RLock()
	defer defaultWriterMu.RUnlock()
	return defaultWriter
}

// AsStdLogger returns the *log.Logger behind logger, for http.Server.ErrorLog.
// Loggers not built by this package yield nil.
func AsStdLogger(logger Logger) *log.Logger {
	std, ok := logger.(*stdLogger)
	if !ok || std == nil {
		return nil
	}
	return std.base
}

func (l *stdLogger) Printf(format string, v ...any) {
	if l == nil || l.base == nil {
		return
	}
	l.base.Printf(format, v...)
}

func (w *entryWriter) Write(p []byte) (int, error) {
	if w == nil || w.w == nil {
		return len(p), nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(append([]byte("\n"), p...)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WithHTTPLogging logs every request and a summary of its reply. Multipart
// bodies carry uploads and are left out, credentials are redacted and only
// JSON replies are copied into the log.
func WithHTTPLogging(next http.Handler, logger Logger) http.Handler {
	if logger == nil || next == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dump, err := httputil.DumpRequest(r, !hasMediaPrefix(r.Header, "multipart/")); err == nil {
			logger.Printf("---- %s %s from %s ----\n%s", r.Method, r.URL.Path, r.RemoteAddr, redact(dump))
		} else {
			logger.Printf("failed to dump request from %s: %v", r.RemoteAddr, err)
		}

		rec := &replyRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)

		status := rec.code()
		logger.Printf("---- %s %s -> %d %s (%d bytes, %s) ----%s",
			r.Method, r.URL.Path, status, http.StatusText(status),
			rec.written, time.Since(start).Round(time.Millisecond), rec.excerpt())
	})
}

func hasMediaPrefix(h http.Header, prefix string) bool {
	mediaType, _, err := mime.ParseMediaType(h.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, prefix)
}

// redact masks the values of sensitive header lines in a request dump.
func redact(dump []byte) []byte {
	head, body, found := bytes.Cut(dump, []byte("\r\n\r\n"))
	lines := bytes.Split(head, []byte("\r\n"))
	for i, line := range lines {
		name, _, ok := bytes.Cut(line, []byte(":"))
		if ok && redactedHeaders[strings.ToLower(string(bytes.TrimSpace(name)))] {
			lines[i] = append(append([]byte{}, name...), ": [redacted]"...)
		}
	}
	out := bytes.Join(lines, []byte("\r\n"))
	if found {
		out = append(append(out, "\r\n\r\n"...), body...)
	}
	return out
}

// replyRecorder tracks the status and size of a reply and keeps the head of
// JSON bodies.
type replyRecorder struct {
	http.ResponseWriter
	status  int
	written int
	head    bytes.Buffer
}

func (rr *replyRecorder) WriteHeader(code int) {
	rr.status = code
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *replyRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	if room := maxLoggedReply - rr.head.Len(); room > 0 && hasMediaPrefix(rr.Header(), "application/json") {
		rr.head.Write(b[:min(room, len(b))])
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.written += n
	return n, err
}

func (rr *replyRecorder) code() int {
	if rr.status == 0 {
		return http.StatusOK
	}
	return rr.status
}

func (rr *replyRecorder) excerpt() string {
	if rr.head.Len() == 0 {
		return ""
	}
	body := strings.TrimSpace(rr.head.String())
	if rr.written > rr.head.Len() {
		return fmt.Sprintf("\n%s\n-- reply truncated after %d bytes --", body, maxLoggedReply)
	}
	return "\n" + body
}

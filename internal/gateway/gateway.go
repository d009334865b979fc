// Package gateway performs the form submission request and normalises every
// outcome into a Result.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"contact-form/internal/debug"
	"contact-form/internal/display"
	"contact-form/internal/dom"
	"contact-form/internal/logging"
)

const (
	// DefaultTimeout bounds the whole request, including reading the body.
	DefaultTimeout = 14 * time.Second
	// DefaultTokenHeader carries the per-session anti-forgery token.
	DefaultTokenHeader = "X-WP-Nonce"
	// ConnectionFailedMessage is shown for transport failures and timeouts.
	ConnectionFailedMessage = "Failed to establish a connection to the server."

	maxResponseBody = 1 << 20
)

// Result is the normalised submission outcome. Output is never nil. OK is
// derived from the HTTP status alone.
type Result struct {
	OK     bool     `json:"ok"`
	Output Messages `json:"output"`
}

// responseBody is the part of a reply body the client reads. Any "ok" field
// the server adds is ignored.
type responseBody struct {
	Output Messages `json:"output"`
}

// Messages decodes either a JSON string or an array of strings.
type Messages []string

// UnmarshalJSON accepts "text", ["a", "b"] and null.
func (m *Messages) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*m = Messages{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*m = Messages{s}
		return nil
	}
	var list []any
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return fmt.Errorf("output must be a string or array: %w", err)
	}
	out := make(Messages, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprint(item))
	}
	*m = out
	return nil
}

// Field is one named form value.
type Field struct {
	Name  string
	Value string
}

// Payload is the request body for Submit.
type Payload struct {
	Fields         []Field
	Files          []dom.File
	FilesFieldName string
}

// Submitter is what the orchestrator needs from the gateway.
type Submitter interface {
	Submit(ctx context.Context, payload Payload) Result
}

// Client posts submissions to a single endpoint.
type Client struct {
	HTTPClient  *http.Client
	Endpoint    string
	Token       string
	TokenHeader string
	Timeout     time.Duration
	Logger      logging.Logger
	Stopwatch   *debug.Stopwatch
}

// Submit encodes payload as multipart form data and posts it.
func (c *Client) Submit(ctx context.Context, payload Payload) Result {
	body, contentType, err := encodeMultipart(payload)
	if err != nil {
		c.logf("failed to encode submission: %v", err)
		return failure(ConnectionFailedMessage)
	}
	req, err := http.NewRequest(http.MethodPost, c.Endpoint, body)
	if err != nil {
		c.logf("failed to build submission request: %v", err)
		return failure(ConnectionFailedMessage)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		header := c.TokenHeader
		if header == "" {
			header = DefaultTokenHeader
		}
		req.Header.Set(header, c.Token)
	}
	return c.FetchJSON(ctx, req)
}

// FetchJSON sends req under the client timeout and converts the response.
// It never returns an error: transport failures, timeouts and non-2xx
// responses all come back as a Result with OK false.
func (c *Client) FetchJSON(ctx context.Context, req *http.Request) (result Result) {
	sw := debug.Or(c.Stopwatch)
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(ctx)

	sw.Logf(debug.PhaseStart, "fetch", "%s %s", req.Method, req.URL)
	defer func() {
		if r := recover(); r != nil {
			c.logf("fetch panicked: %v", r)
			result = failure(ConnectionFailedMessage)
		}
		if !result.OK {
			for _, msg := range result.Output {
				sw.Logf(debug.PhaseError, "fetch", "%s", display.Sanitize(msg))
			}
		}
		sw.Logf(debug.PhaseEnd, "fetch", "ok=%t messages=%d", result.OK, len(result.Output))
	}()

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.logf("submission to %s timed out after %s", req.URL, timeout)
		} else {
			c.logf("submission to %s failed: %v", req.URL, err)
		}
		return failure(ConnectionFailedMessage)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.logf("read submission response: %v", err)
		return failure(ConnectionFailedMessage)
	}

	var body responseBody
	if err := json.Unmarshal(data, &body); err != nil {
		c.logf("decode submission response (status %d): %v", resp.StatusCode, err)
		return failure(ConnectionFailedMessage)
	}
	parsed := Result{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Output: body.Output,
	}
	if parsed.Output == nil {
		parsed.Output = Messages{}
	}
	if !parsed.OK {
		if len(parsed.Output) == 0 {
			parsed.Output = Messages{ConnectionFailedMessage}
		}
		for _, msg := range parsed.Output {
			c.logf("submission rejected (status %d): %s", resp.StatusCode, display.Sanitize(msg))
		}
	}
	return parsed
}

func (c *Client) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

func failure(msg string) Result {
	return Result{OK: false, Output: Messages{msg}}
}

func encodeMultipart(payload Payload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range payload.Fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.Name, err)
		}
	}
	fieldName := payload.FilesFieldName
	if fieldName == "" {
		fieldName = "files[]"
	}
	for _, file := range payload.Files {
		if err := writeFilePart(w, fieldName, file); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func writeFilePart(w *multipart.Writer, fieldName string, file dom.File) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(fieldName), escapeQuotes(file.Name)))
	contentType := file.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create file part %s: %w", file.Name, err)
	}
	if file.Open == nil {
		return nil
	}
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer rc.Close()
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("copy %s: %w", file.Name, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

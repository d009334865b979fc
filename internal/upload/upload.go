// Package upload validates file input selections against the accepted MIME
// types and renders the removable file chips.
package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"contact-form/internal/alerts"
	"contact-form/internal/debug"
	"contact-form/internal/display"
	"contact-form/internal/dom"
	"contact-form/internal/logging"
)

// RejectionHold is how long the rejected-types alert stays visible.
const RejectionHold = 5 * time.Second

var allowedTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/heic":    true,
	"image/heif":    true,
	"image/avif":    true,
	"image/svg+xml": true,
	"text/plain":    true,
	"application/pdf":                         true,
	"application/vnd.oasis.opendocument.text": true,
	"application/vnd.oasis.opendocument.spreadsheet":                          true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true,
	"application/msword":           true,
	"application/vnd.ms-excel":     true,
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"application/vnd.rar":          true,
	"application/x-rar-compressed": true,
}

// Allowed reports whether mime is on the upload allow-list.
func Allowed(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return allowedTypes[mime]
}

// Extension returns the text after the last dot of name, or name itself.
func Extension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// RejectionMessage is the alert text for the rejected extensions.
func RejectionMessage(exts []string) string {
	return fmt.Sprintf("Files of type %s are not allowed.", strings.Join(exts, ", "))
}

// State records the outcome of the latest validation of a form's file input.
// Detected is true exactly when at least one extension was rejected.
type State struct {
	mu       sync.Mutex
	rejected []string
}

// Reset clears the state.
func (s *State) Reset() {
	s.mu.Lock()
	s.rejected = nil
	s.mu.Unlock()
}

func (s *State) reject(ext string) {
	s.mu.Lock()
	s.rejected = append(s.rejected, ext)
	s.mu.Unlock()
}

// Snapshot returns whether anything was rejected and a copy of the rejected
// extensions in selection order.
func (s *State) Snapshot() (bool, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.rejected))
	copy(out, s.rejected)
	return len(out) > 0, out
}

// Notifier shows a batch of alerts for wait without locking the form.
type Notifier interface {
	Notify(ctx context.Context, form dom.Element, list []alerts.Alert, wait time.Duration) error
}

// Validator handles change events on one file input.
type Validator struct {
	Document  dom.Document
	Form      dom.Element
	Input     dom.Element
	State     *State
	Alerts    Notifier
	Markup    dom.Markup
	Hold      time.Duration
	Logger    logging.Logger
	Stopwatch *debug.Stopwatch

	wg       sync.WaitGroup
	mu       sync.Mutex
	releases []func()
	notice   *notice
}

// notice is the rejection alert currently running in the background.
type notice struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Handle runs validation against the input's current selection.
func (v *Validator) Handle(ctx context.Context) {
	sw := debug.Or(v.Stopwatch)
	markup := v.Markup.WithDefaults()
	v.CancelNotice()
	v.clearChips()
	v.State.Reset()
	list := v.list()

	files := v.Input.Files()
	sw.Logf(debug.PhaseStart, "validate files", "count=%d", len(files))
	for _, f := range files {
		good := Allowed(f.Type)
		if !good {
			v.State.reject(Extension(f.Name))
		}
		if list != nil {
			v.renderChip(ctx, list, f, good, markup)
		}
	}

	detected, rejected := v.State.Snapshot()
	sw.Logf(debug.PhaseEnd, "validate files", "detected=%t rejected=%v", detected, rejected)
	if !detected {
		return
	}
	hold := v.Hold
	if hold <= 0 {
		hold = RejectionHold
	}
	msg := []alerts.Alert{alerts.New(alerts.Danger, RejectionMessage(rejected))}
	nctx, cancel := context.WithCancel(ctx)
	n := &notice{cancel: cancel, done: make(chan struct{})}
	v.mu.Lock()
	v.notice = n
	v.mu.Unlock()
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer close(n.done)
		defer cancel()
		err := v.Alerts.Notify(nctx, v.Form, msg, hold)
		if err != nil && !errors.Is(err, context.Canceled) && v.Logger != nil {
			v.Logger.Printf("file rejection alert: %v", err)
		}
	}()
}

// CancelNotice stops a rejection alert still on screen and waits for it to
// clear the output container. It is a no-op when none is pending.
func (v *Validator) CancelNotice() {
	v.mu.Lock()
	n := v.notice
	v.notice = nil
	v.mu.Unlock()
	if n == nil {
		return
	}
	n.cancel()
	<-n.done
}

// Wait blocks until background chip removals and rejection alerts finish.
func (v *Validator) Wait() {
	v.wg.Wait()
}

// Remove drops every selected file whose name equals name and revalidates.
func (v *Validator) Remove(ctx context.Context, name string) {
	files := v.Input.Files()
	kept := make([]dom.File, 0, len(files))
	for _, f := range files {
		if f.Name != name {
			kept = append(kept, f)
		}
	}
	v.Input.SetFiles(kept)
	v.Handle(ctx)
}

// Clear empties the selection, the chip list and the state.
func (v *Validator) Clear() {
	v.Input.SetFiles(nil)
	v.clearChips()
	v.State.Reset()
}

func (v *Validator) clearChips() {
	v.mu.Lock()
	releases := v.releases
	v.releases = nil
	v.mu.Unlock()
	for _, release := range releases {
		release()
	}
	if list := v.list(); list != nil {
		_, _ = display.RemoveAllChildren(list)
	}
}

func (v *Validator) list() dom.Element {
	if v.Form == nil {
		return nil
	}
	return v.Form.QuerySelector(v.Markup.WithDefaults().FileListSelector())
}

func (v *Validator) renderChip(ctx context.Context, list dom.Element, f dom.File, good bool, markup dom.Markup) {
	chip := v.Document.CreateElement("li")
	state := markup.ChipBadClass
	if good {
		state = markup.ChipGoodClass
	}
	chip.AddClass(markup.ChipClass, state)

	label := v.Document.CreateElement("span")
	label.SetText(f.Name)
	_ = chip.AppendChild(label)

	remove := v.Document.CreateElement("button")
	remove.SetAttr("type", "button")
	remove.SetAttr("aria-label", "Remove "+f.Name)
	remove.AddClass(markup.ChipRemoveClass)
	remove.SetText("×")
	name := f.Name
	release := remove.AddEventListener("click", func(ev dom.Event) {
		ev.PreventDefault()
		v.wg.Add(1)
		go func() {
			defer v.wg.Done()
			v.Remove(ctx, name)
		}()
	})
	v.mu.Lock()
	v.releases = append(v.releases, release)
	v.mu.Unlock()
	_ = chip.AppendChild(remove)

	if err := list.AppendChild(chip); err != nil && v.Logger != nil {
		v.Logger.Printf("render file chip %s: %v", f.Name, err)
	}
}

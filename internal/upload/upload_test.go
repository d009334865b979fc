package upload

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"contact-form/internal/alerts"
	"contact-form/internal/dom"
	"contact-form/internal/dom/htmldom"
)

const formMarkup = `<form class="contact-form">
  <input type="file" class="custom-file-upload" name="files[]" multiple>
  <ul class="file-list"></ul>
  <div class="popout-output" style="opacity: 0; display: none"></div>
  <button type="submit">Send</button>
</form>`

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][]alerts.Alert
	waits []time.Duration
}

func (r *recordingNotifier) Notify(ctx context.Context, form dom.Element, list []alerts.Alert, wait time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, list)
	r.waits = append(r.waits, wait)
	return nil
}

func (r *recordingNotifier) snapshot() [][]alerts.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]alerts.Alert(nil), r.calls...)
}

func newValidator(t *testing.T, notifier Notifier) (*htmldom.Document, *Validator) {
	t.Helper()
	doc := htmldom.MustParse(formMarkup)
	form := doc.QuerySelector("form")
	v := &Validator{
		Document: doc,
		Form:     form,
		Input:    form.QuerySelector(dom.DefaultMarkup().FileInputSelector()),
		State:    &State{},
		Alerts:   notifier,
	}
	return doc, v
}

func TestAllowed(t *testing.T) {
	for _, mime := range []string{"image/jpeg", "IMAGE/PNG", "application/pdf", "text/plain; charset=utf-8", "application/zip"} {
		if !Allowed(mime) {
			t.Fatalf("expected %q to be allowed", mime)
		}
	}
	for _, mime := range []string{"application/x-msdownload", "text/html", "", "application/javascript"} {
		if Allowed(mime) {
			t.Fatalf("expected %q to be rejected", mime)
		}
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{
		"setup.exe":      "exe",
		"archive.tar.gz": "gz",
		"README":         "README",
		".env":           "env",
	}
	for in, want := range cases {
		if got := Extension(in); got != want {
			t.Fatalf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHandleFlagsDisallowedTypes(t *testing.T) {
	notifier := &recordingNotifier{}
	_, v := newValidator(t, notifier)
	v.Input.SetFiles([]dom.File{
		{Name: "cv.pdf", Type: "application/pdf"},
		{Name: "setup.exe", Type: "application/x-msdownload"},
	})

	v.Handle(context.Background())
	v.Wait()

	detected, rejected := v.State.Snapshot()
	if !detected {
		t.Fatalf("expected detection")
	}
	if diff := cmp.Diff([]string{"exe"}, rejected); diff != "" {
		t.Fatalf("unexpected rejected extensions (-want +got):\n%s", diff)
	}

	chips := v.Form.QuerySelectorAll(".file-list .file-chip")
	if len(chips) != 2 {
		t.Fatalf("expected 2 chips, got %d", len(chips))
	}
	if !chips[0].HasClass("file-chip--good") || !chips[1].HasClass("file-chip--bad") {
		t.Fatalf("expected good then bad chip classes")
	}

	calls := notifier.snapshot()
	want := [][]alerts.Alert{{alerts.New(alerts.Danger, "Files of type exe are not allowed.")}}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("unexpected alerts (-want +got):\n%s", diff)
	}
	if notifier.waits[0] != RejectionHold {
		t.Fatalf("expected default hold, got %s", notifier.waits[0])
	}
}

func TestHandleOverwritesPreviousState(t *testing.T) {
	_, v := newValidator(t, &recordingNotifier{})
	v.Input.SetFiles([]dom.File{{Name: "a.exe", Type: "application/x-msdownload"}})
	v.Handle(context.Background())

	v.Input.SetFiles([]dom.File{{Name: "photo.png", Type: "image/png"}})
	v.Handle(context.Background())
	v.Wait()

	if detected, rejected := v.State.Snapshot(); detected || len(rejected) != 0 {
		t.Fatalf("expected clean state, got detected=%t rejected=%v", detected, rejected)
	}
	if n := len(v.Form.QuerySelectorAll(".file-chip")); n != 1 {
		t.Fatalf("expected chip list rebuilt with 1 chip, got %d", n)
	}
}

func TestRemoveButtonRevalidates(t *testing.T) {
	notifier := &recordingNotifier{}
	doc, v := newValidator(t, notifier)
	v.Input.SetFiles([]dom.File{
		{Name: "notes.txt", Type: "text/plain"},
		{Name: "virus.bat", Type: "application/x-bat"},
	})
	v.Handle(context.Background())

	bad := v.Form.QuerySelector(".file-chip--bad .file-chip__remove")
	if bad == nil {
		t.Fatalf("expected remove control on bad chip")
	}
	doc.Dispatch(bad, "click")
	v.Wait()

	files := v.Input.Files()
	if len(files) != 1 || files[0].Name != "notes.txt" {
		t.Fatalf("expected only notes.txt to remain, got %+v", files)
	}
	if detected, _ := v.State.Snapshot(); detected {
		t.Fatalf("expected state cleared after removal")
	}
	if n := len(v.Form.QuerySelectorAll(".file-chip")); n != 1 {
		t.Fatalf("expected 1 chip after removal, got %d", n)
	}
	if n := len(notifier.snapshot()); n != 1 {
		t.Fatalf("expected a single rejection alert, got %d", n)
	}
}

func TestClearResetsSelection(t *testing.T) {
	_, v := newValidator(t, &recordingNotifier{})
	v.Input.SetFiles([]dom.File{{Name: "x.exe", Type: "application/x-msdownload"}})
	v.Handle(context.Background())
	v.Wait()

	v.Clear()
	if len(v.Input.Files()) != 0 {
		t.Fatalf("expected empty selection")
	}
	if detected, _ := v.State.Snapshot(); detected {
		t.Fatalf("expected state reset")
	}
	if n := len(v.Form.QuerySelectorAll(".file-chip")); n != 0 {
		t.Fatalf("expected chips removed, got %d", n)
	}
}

func TestRejectionAlertDoesNotLockForm(t *testing.T) {
	doc := htmldom.MustParse(formMarkup)
	form := doc.QuerySelector("form")
	presenter := alerts.NewPresenter(doc, dom.DefaultMarkup(), nil)
	presenter.PollInterval = time.Millisecond
	v := &Validator{
		Document: doc,
		Form:     form,
		Input:    form.QuerySelector(dom.DefaultMarkup().FileInputSelector()),
		State:    &State{},
		Alerts:   presenter,
		Hold:     20 * time.Millisecond,
	}
	v.Input.SetFiles([]dom.File{{Name: "x.exe", Type: "application/x-msdownload"}})
	v.Handle(context.Background())
	if form.HasClass("is-locked") || v.Input.Disabled() {
		t.Fatalf("expected file input to stay usable while the alert shows")
	}
	v.Wait()
	if n := len(form.QuerySelector(".popout-output").Children()); n != 0 {
		t.Fatalf("expected alert hidden after hold, got %d children", n)
	}
}

func TestCancelNoticeClearsPendingAlert(t *testing.T) {
	doc := htmldom.MustParse(formMarkup)
	form := doc.QuerySelector("form")
	presenter := alerts.NewPresenter(doc, dom.DefaultMarkup(), nil)
	presenter.PollInterval = time.Millisecond
	v := &Validator{
		Document: doc,
		Form:     form,
		Input:    form.QuerySelector(dom.DefaultMarkup().FileInputSelector()),
		State:    &State{},
		Alerts:   presenter,
		Hold:     time.Hour,
	}
	output := form.QuerySelector(".popout-output")
	v.Input.SetFiles([]dom.File{{Name: "x.exe", Type: "application/x-msdownload"}})
	v.Handle(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for len(output.Children()) != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for rejection alert")
		}
		time.Sleep(time.Millisecond)
	}

	v.CancelNotice()
	if n := len(output.Children()); n != 0 {
		t.Fatalf("expected alert cleared on cancel, got %d children", n)
	}
	v.Wait()
	v.CancelNotice()
}

package submit

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"contact-form/internal/alerts"
	"contact-form/internal/dom"
	"contact-form/internal/dom/htmldom"
	"contact-form/internal/gateway"
	"contact-form/internal/logging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const page = `<!doctype html><html><body>
<main class="site">
<form class="contact-form">
  <input type="text" name="required_field" value="" style="display:none">
  <input type="text" name="name" value="Ada">
  <input type="email" name="email" value="ada@example.com">
  <textarea name="message">Hello there</textarea>
  <input type="file" class="custom-file-upload" name="files[]" multiple>
  <ul class="file-list"></ul>
  <div class="popout-output" style="opacity: 0; display: none"></div>
  <button type="submit">Send</button>
</form>
</main>
</body></html>`

type fakeGateway struct {
	mu       sync.Mutex
	calls    int
	payloads []gateway.Payload
	result   gateway.Result
	block    chan struct{}
	panicMsg string
}

func (f *fakeGateway) Submit(ctx context.Context, payload gateway.Payload) gateway.Result {
	f.mu.Lock()
	f.calls++
	f.payloads = append(f.payloads, payload)
	block := f.block
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if block != nil {
		<-block
	}
	return f.result
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	doc  *htmldom.Document
	form dom.Element
	gw   *fakeGateway
	ctl  *Controller
	logs *bytes.Buffer
}

func newFixture(t *testing.T, gw *fakeGateway) *fixture {
	t.Helper()
	doc := htmldom.MustParse(page, htmldom.WithTransition(5*time.Millisecond, "opacity"))
	form := doc.QuerySelector("form.contact-form")
	var logs bytes.Buffer
	presenter := alerts.NewPresenter(doc, dom.DefaultMarkup(), nil)
	presenter.PollInterval = time.Millisecond
	ctl, err := New(Options{
		Document:  doc,
		Form:      form,
		Gateway:   gw,
		Presenter: presenter,
		Hold:      80 * time.Millisecond,
		Logger:    logging.NewWithWriter(&logs),
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return &fixture{doc: doc, form: form, gw: gw, ctl: ctl, logs: &logs}
}

func (f *fixture) output() dom.Element {
	return f.form.QuerySelector(".popout-output")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func alertTexts(el dom.Element) []string {
	var out []string
	for _, child := range el.Children() {
		out = append(out, child.Text())
	}
	return out
}

func assertIdle(t *testing.T, f *fixture) {
	t.Helper()
	if n := len(f.output().Children()); n != 0 {
		t.Fatalf("expected empty output container, got %d children", n)
	}
	if f.form.HasClass("is-locked") {
		t.Fatalf("expected form unlocked")
	}
	for _, el := range f.form.QuerySelectorAll("input, textarea, button") {
		if el.Disabled() {
			t.Fatalf("expected %s enabled", el.TagName())
		}
	}
}

func TestSubmitSuccessShowsAlertThenClearsForm(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{OK: true, Output: gateway.Messages{"Message sent successfully."}}}
	f := newFixture(t, gw)

	done := make(chan Outcome, 1)
	go func() { done <- f.ctl.Submit(context.Background()) }()

	waitFor(t, "success alert", func() bool {
		children := f.output().Children()
		return len(children) == 1 && children[0].HasClass("popout-alert--success")
	})
	if diff := cmp.Diff([]string{"Message sent successfully."}, alertTexts(f.output())); diff != "" {
		t.Fatalf("unexpected alerts (-want +got):\n%s", diff)
	}
	if !f.form.HasClass("is-locked") {
		t.Fatalf("expected form locked while result is shown")
	}

	if got := <-done; got != OutcomeSent {
		t.Fatalf("expected sent outcome, got %s", got)
	}
	assertIdle(t, f)
	for _, el := range f.form.QuerySelectorAll(`input[name="name"], input[name="email"], textarea`) {
		if el.Value() != "" {
			t.Fatalf("expected %s cleared, got %q", el.TagName(), el.Value())
		}
	}

	wantFields := []gateway.Field{
		{Name: "name", Value: "Ada"},
		{Name: "email", Value: "ada@example.com"},
		{Name: "message", Value: "Hello there"},
	}
	if diff := cmp.Diff(wantFields, gw.payloads[0].Fields); diff != "" {
		t.Fatalf("unexpected payload (-want +got):\n%s", diff)
	}
}

func TestSubmitFailureShowsDangerAlertsAndKeepsInput(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{OK: false, Output: gateway.Messages{"Please enter a name.", "Please enter an email."}}}
	f := newFixture(t, gw)

	done := make(chan Outcome, 1)
	go func() { done <- f.ctl.Submit(context.Background()) }()

	waitFor(t, "danger alerts", func() bool {
		children := f.output().Children()
		return len(children) == 2 && children[0].HasClass("popout-alert--danger") && children[1].HasClass("popout-alert--danger")
	})
	if got := <-done; got != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", got)
	}
	assertIdle(t, f)
	if v := f.form.QuerySelector("textarea").Value(); v != "Hello there" {
		t.Fatalf("expected message kept on failure, got %q", v)
	}
}

func TestSubmitShowsConnectingWhileRequestInFlight(t *testing.T) {
	gw := &fakeGateway{
		block:  make(chan struct{}),
		result: gateway.Result{OK: true, Output: gateway.Messages{"ok"}},
	}
	f := newFixture(t, gw)

	done := make(chan Outcome, 1)
	go func() { done <- f.ctl.Submit(context.Background()) }()

	waitFor(t, "connecting alert", func() bool {
		texts := alertTexts(f.output())
		return len(texts) == 1 && texts[0] == ConnectingText && f.output().ComputedStyle("opacity") == "1"
	})
	if !f.form.HasClass("is-locked") {
		t.Fatalf("expected form locked while connecting")
	}
	if got := f.ctl.Submit(context.Background()); got != OutcomeIgnored {
		t.Fatalf("expected concurrent submit to be ignored, got %s", got)
	}
	if got := alertTexts(f.output()); len(got) != 1 || got[0] != ConnectingText {
		t.Fatalf("result must not appear before the request settles, got %v", got)
	}

	close(gw.block)
	if got := <-done; got != OutcomeSent {
		t.Fatalf("expected sent outcome, got %s", got)
	}
	if n := gw.callCount(); n != 1 {
		t.Fatalf("expected exactly one request, got %d", n)
	}
}

func TestSubmitHoneypotAbandonsPageSilently(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{OK: true, Output: gateway.Messages{"ok"}}}
	f := newFixture(t, gw)
	f.form.QuerySelector(`[name="required_field"]`).SetValue("http://spam.example")
	out := f.output()

	if got := f.ctl.Submit(context.Background()); got != OutcomeBot {
		t.Fatalf("expected bot outcome, got %s", got)
	}
	if n := gw.callCount(); n != 0 {
		t.Fatalf("expected no request, got %d", n)
	}
	if n := len(out.Children()); n != 0 {
		t.Fatalf("expected no alerts, got %d", n)
	}
	if n := len(f.doc.Body().Children()); n != 0 {
		t.Fatalf("expected page torn down, body has %d children", n)
	}
	if diff := cmp.Diff([]string{DefaultRedirectURL}, f.doc.Navigated()); diff != "" {
		t.Fatalf("unexpected navigation (-want +got):\n%s", diff)
	}
}

func TestSubmitBlockedByRejectedFiles(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{OK: true, Output: gateway.Messages{"ok"}}}
	f := newFixture(t, gw)
	release := f.ctl.Bind(context.Background())
	defer release()

	input := f.form.QuerySelector(".custom-file-upload")
	input.SetFiles([]dom.File{
		{Name: "brief.pdf", Type: "application/pdf"},
		{Name: "tool.exe", Type: "application/x-msdownload"},
	})
	f.doc.Dispatch(input, "change")
	f.ctl.Wait()

	detected, rejected := f.ctl.State().Snapshot()
	if !detected {
		t.Fatalf("expected rejected files to be detected")
	}
	if diff := cmp.Diff([]string{"exe"}, rejected); diff != "" {
		t.Fatalf("unexpected rejected (-want +got):\n%s", diff)
	}

	if !f.doc.Dispatch(f.form, "submit") {
		t.Fatalf("expected submit default prevented")
	}
	waitFor(t, "rejection alert", func() bool {
		texts := alertTexts(f.output())
		return len(texts) == 1 && texts[0] == "Files of type exe are not allowed."
	})
	f.ctl.Wait()

	if n := gw.callCount(); n != 0 {
		t.Fatalf("expected no request while files are rejected, got %d", n)
	}
	assertIdle(t, f)
}

func TestSubmitSendsAcceptedFiles(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{OK: true, Output: gateway.Messages{"ok"}}}
	f := newFixture(t, gw)
	input := f.form.QuerySelector(".custom-file-upload")
	input.SetFiles([]dom.File{{Name: "brief.pdf", Type: "application/pdf"}})
	f.ctl.Uploads().Handle(context.Background())

	if got := f.ctl.Submit(context.Background()); got != OutcomeSent {
		t.Fatalf("expected sent outcome, got %s", got)
	}
	files := gw.payloads[0].Files
	if len(files) != 1 || files[0].Name != "brief.pdf" {
		t.Fatalf("expected file in payload, got %+v", files)
	}
	if gw.payloads[0].FilesFieldName != "files[]" {
		t.Fatalf("unexpected files field %q", gw.payloads[0].FilesFieldName)
	}
	if len(input.Files()) != 0 || len(f.form.QuerySelectorAll(".file-chip")) != 0 {
		t.Fatalf("expected file selection and chips cleared after success")
	}
}

func TestSubmitRecoversFromGatewayPanic(t *testing.T) {
	gw := &fakeGateway{panicMsg: "boom"}
	f := newFixture(t, gw)

	if got := f.ctl.Submit(context.Background()); got != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", got)
	}
	assertIdle(t, f)
	if !bytes.Contains(f.logs.Bytes(), []byte("gateway panicked: boom")) {
		t.Fatalf("expected panic to be logged, got %q", f.logs.String())
	}
}

type throwingDocument struct {
	dom.Document
}

func (throwingDocument) CreateElement(string) dom.Element {
	panic("createElement threw")
}

func TestSubmitRecoversFromAlertRenderingPanic(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{OK: true, Output: gateway.Messages{"ok"}}}
	f := newFixture(t, gw)
	f.ctl.opts.Presenter.Document = throwingDocument{f.doc}

	if got := f.ctl.Submit(context.Background()); got != OutcomeFailed {
		t.Fatalf("expected failed outcome, got %s", got)
	}
	assertIdle(t, f)
	if !bytes.Contains(f.logs.Bytes(), []byte("createElement threw")) {
		t.Fatalf("expected panic to be logged, got %q", f.logs.String())
	}
	if v := f.form.QuerySelector("textarea").Value(); v != "Hello there" {
		t.Fatalf("expected message kept after a rendering failure, got %q", v)
	}
}

func TestSubmitCancelsPendingRejectionNotice(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{OK: true, Output: gateway.Messages{"Message sent successfully."}}}
	f := newFixture(t, gw)
	f.ctl.Uploads().Hold = time.Hour

	input := f.form.QuerySelector(".custom-file-upload")
	input.SetFiles([]dom.File{{Name: "tool.exe", Type: "application/x-msdownload"}})
	f.ctl.Uploads().Handle(context.Background())
	waitFor(t, "rejection notice", func() bool {
		texts := alertTexts(f.output())
		return len(texts) == 1 && texts[0] == "Files of type exe are not allowed."
	})

	input.SetFiles(nil)
	f.ctl.State().Reset()
	done := make(chan Outcome, 1)
	go func() { done <- f.ctl.Submit(context.Background()) }()

	waitFor(t, "success alert", func() bool {
		children := f.output().Children()
		return len(children) == 1 && children[0].HasClass("popout-alert--success")
	})
	if got := <-done; got != OutcomeSent {
		t.Fatalf("expected sent outcome, got %s", got)
	}
	f.ctl.Wait()
	assertIdle(t, f)
}

func TestSubmitWithoutOutputContainerStillUnlocks(t *testing.T) {
	doc := htmldom.MustParse(`<form class="contact-form"><input type="text" name="name" value="x"><button type="submit">Go</button></form>`)
	form := doc.QuerySelector("form")
	var calls atomic.Int32
	gw := gatewayFunc(func(context.Context, gateway.Payload) gateway.Result {
		calls.Add(1)
		return gateway.Result{OK: true, Output: gateway.Messages{"ok"}}
	})
	var logs bytes.Buffer
	ctl, err := New(Options{Document: doc, Form: form, Gateway: gw, Logger: logging.NewWithWriter(&logs)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := ctl.Submit(context.Background()); got != OutcomeSent {
		t.Fatalf("expected sent outcome, got %s", got)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one request")
	}
	if form.HasClass("is-locked") {
		t.Fatalf("expected form unlocked")
	}
	if !bytes.Contains(logs.Bytes(), []byte("output container")) {
		t.Fatalf("expected missing container to be logged, got %q", logs.String())
	}
}

func TestNewValidatesOptions(t *testing.T) {
	doc := htmldom.MustParse(page)
	form := doc.QuerySelector("form")
	gw := &fakeGateway{}
	cases := map[string]Options{
		"document": {Form: form, Gateway: gw},
		"form":     {Document: doc, Gateway: gw},
		"gateway":  {Document: doc, Form: form},
	}
	for name, opts := range cases {
		if _, err := New(opts); err == nil {
			t.Fatalf("expected error when %s is missing", name)
		}
	}
}

type gatewayFunc func(context.Context, gateway.Payload) gateway.Result

func (f gatewayFunc) Submit(ctx context.Context, p gateway.Payload) gateway.Result {
	return f(ctx, p)
}

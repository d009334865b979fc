// Package submit coordinates a contact form's submission: bot check, file
// gate, the timeout-guarded request and the alert sequence around it.
package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"contact-form/internal/alerts"
	"contact-form/internal/debug"
	"contact-form/internal/display"
	"contact-form/internal/dom"
	"contact-form/internal/gateway"
	"contact-form/internal/logging"
	"contact-form/internal/upload"
)

const (
	// DefaultHold is how long result alerts stay on screen.
	DefaultHold = 5 * time.Second
	// DefaultRedirectURL is where a detected bot is sent.
	DefaultRedirectURL = "about:blank"
	// ConnectingText is shown while the request is in flight.
	ConnectingText = "Connecting..."
)

// Outcome describes how a submission ended.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeBot
	OutcomeRejectedFiles
	OutcomeSent
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeBot:
		return "bot"
	case OutcomeRejectedFiles:
		return "rejected-files"
	case OutcomeSent:
		return "sent"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Options configures a Controller.
type Options struct {
	Document    dom.Document
	Form        dom.Element
	Gateway     gateway.Submitter
	Presenter   *alerts.Presenter
	Markup      dom.Markup
	Hold        time.Duration
	RedirectURL string
	Logger      logging.Logger
	Stopwatch   *debug.Stopwatch
}

func (o Options) withDefaults() Options {
	o.Markup = o.Markup.WithDefaults()
	if o.Hold <= 0 {
		o.Hold = DefaultHold
	}
	if o.RedirectURL == "" {
		o.RedirectURL = DefaultRedirectURL
	}
	if o.Logger == nil {
		o.Logger = logging.New()
	}
	o.Stopwatch = debug.Or(o.Stopwatch)
	if o.Presenter == nil && o.Document != nil {
		o.Presenter = alerts.NewPresenter(o.Document, o.Markup, o.Stopwatch)
	}
	return o
}

// Controller owns the submission lifecycle of one form.
type Controller struct {
	opts    Options
	state   *upload.State
	uploads *upload.Validator
	busy    atomic.Bool
	wg      sync.WaitGroup
}

// New builds a Controller for opts.Form.
func New(opts Options) (*Controller, error) {
	if opts.Document == nil {
		return nil, errors.New("submit: document is required")
	}
	if opts.Form == nil {
		return nil, errors.New("submit: form is required")
	}
	if opts.Gateway == nil {
		return nil, errors.New("submit: gateway is required")
	}
	opts = opts.withDefaults()

	c := &Controller{opts: opts, state: &upload.State{}}
	if input := opts.Form.QuerySelector(opts.Markup.FileInputSelector()); input != nil {
		c.uploads = &upload.Validator{
			Document:  opts.Document,
			Form:      opts.Form,
			Input:     input,
			State:     c.state,
			Alerts:    opts.Presenter,
			Markup:    opts.Markup,
			Hold:      opts.Hold,
			Logger:    opts.Logger,
			Stopwatch: opts.Stopwatch,
		}
	}
	return c, nil
}

// State exposes the file validation state shared with the upload validator.
func (c *Controller) State() *upload.State {
	return c.state
}

// Uploads returns the file validator, or nil when the form has no file input.
func (c *Controller) Uploads() *upload.Validator {
	return c.uploads
}

// Bind attaches the submit and file change listeners. Handlers run on their
// own goroutines derived from ctx. The returned func detaches them.
func (c *Controller) Bind(ctx context.Context) func() {
	releases := []func(){
		c.opts.Form.AddEventListener("submit", func(ev dom.Event) {
			ev.PreventDefault()
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.Submit(ctx)
			}()
		}),
	}
	if c.uploads != nil {
		releases = append(releases, c.uploads.Input.AddEventListener("change", func(dom.Event) {
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.uploads.Handle(ctx)
			}()
		}))
	}
	return func() {
		for _, release := range releases {
			release()
		}
	}
}

// Wait blocks until every handler started by Bind has returned.
func (c *Controller) Wait() {
	c.wg.Wait()
	if c.uploads != nil {
		c.uploads.Wait()
	}
}

// Submit runs one submission. A call made while another is in flight
// returns OutcomeIgnored. Panics are recovered and the form is left unlocked.
func (c *Controller) Submit(ctx context.Context) (outcome Outcome) {
	if !c.busy.CompareAndSwap(false, true) {
		c.opts.Stopwatch.Logf(debug.PhaseInfo, "submit", "ignored: submission already in flight")
		return OutcomeIgnored
	}
	defer c.busy.Store(false)

	sw := c.opts.Stopwatch
	sw.MarkStart()
	sw.Logf(debug.PhaseStart, "submit", "form submission started")
	defer func() {
		if r := recover(); r != nil {
			c.opts.Logger.Printf("contact form submission failed: %v", r)
			c.opts.Presenter.Locker.Unlock(c.opts.Form)
			outcome = OutcomeFailed
		}
		sw.Logf(debug.PhaseEnd, "submit", "outcome=%s", outcome)
	}()

	form := c.opts.Form
	if c.uploads != nil {
		c.uploads.CancelNotice()
	}
	if c.honeypotTripped() {
		c.abandon()
		return OutcomeBot
	}

	if detected, rejected := c.state.Snapshot(); detected {
		msg := []alerts.Alert{alerts.New(alerts.Danger, upload.RejectionMessage(rejected))}
		if err := c.opts.Presenter.ShowThenHide(ctx, form, msg, c.opts.Hold); err != nil {
			c.opts.Logger.Printf("file rejection alert: %v", err)
		}
		return OutcomeRejectedFiles
	}

	payload := c.payload()
	var result gateway.Result
	var g errgroup.Group
	g.Go(alerts.Guard(func() error {
		result = c.send(ctx, payload)
		return nil
	}))
	g.Go(alerts.Guard(func() error {
		return c.opts.Presenter.Show(ctx, form, []alerts.Alert{alerts.New(alerts.Info, ConnectingText)})
	}))
	if err := g.Wait(); err != nil {
		c.opts.Logger.Printf("connecting alert: %v", err)
		if errors.Is(err, alerts.ErrPanicked) {
			c.opts.Presenter.Clear(form)
			c.opts.Presenter.Locker.Unlock(form)
			return OutcomeFailed
		}
	}

	if err := c.opts.Presenter.ShowThenHide(ctx, form, resultAlerts(result), c.opts.Hold); err != nil {
		c.opts.Logger.Printf("result alert: %v", err)
		if errors.Is(err, alerts.ErrPanicked) {
			return OutcomeFailed
		}
	}
	if !result.OK {
		return OutcomeFailed
	}
	c.reset()
	return OutcomeSent
}

func (c *Controller) send(ctx context.Context, payload gateway.Payload) (result gateway.Result) {
	defer func() {
		if r := recover(); r != nil {
			c.opts.Logger.Printf("gateway panicked: %v", r)
			result = gateway.Result{Output: gateway.Messages{gateway.ConnectionFailedMessage}}
		}
		if result.Output == nil {
			result.Output = gateway.Messages{}
		}
	}()
	return c.opts.Gateway.Submit(ctx, payload)
}

func resultAlerts(result gateway.Result) []alerts.Alert {
	t := alerts.Danger
	if result.OK {
		t = alerts.Success
	}
	out := make([]alerts.Alert, 0, len(result.Output))
	for _, msg := range result.Output {
		out = append(out, alerts.New(t, msg))
	}
	return out
}

func (c *Controller) honeypotTripped() bool {
	trap := c.opts.Form.QuerySelector(c.opts.Markup.HoneypotSelector())
	return trap != nil && trap.Value() != ""
}

// abandon tears the page down and navigates away. Nothing is shown to the bot.
func (c *Controller) abandon() {
	c.opts.Stopwatch.Logf(debug.PhaseInfo, "submit", "honeypot filled, abandoning page")
	if body := c.opts.Document.Body(); body != nil {
		if _, err := display.RemoveAllChildren(body); err != nil {
			c.opts.Logger.Printf("tear down page: %v", err)
		}
	}
	c.opts.Document.Navigate(c.opts.RedirectURL)
}

func (c *Controller) fields() []dom.Element {
	var out []dom.Element
	for _, el := range c.opts.Form.QuerySelectorAll(c.opts.Markup.FieldSelector) {
		if name, _ := el.Attr("name"); name == c.opts.Markup.HoneypotName {
			continue
		}
		out = append(out, el)
	}
	return out
}

func (c *Controller) payload() gateway.Payload {
	p := gateway.Payload{FilesFieldName: c.opts.Markup.FilesFieldName}
	for _, el := range c.fields() {
		name, _ := el.Attr("name")
		p.Fields = append(p.Fields, gateway.Field{Name: name, Value: el.Value()})
	}
	if c.uploads != nil {
		p.Files = c.uploads.Input.Files()
	}
	return p
}

func (c *Controller) reset() {
	for _, el := range c.fields() {
		el.SetValue("")
	}
	if c.uploads != nil {
		c.uploads.Clear()
	}
}

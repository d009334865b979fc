// Package alerts renders popout alerts into a form's output container and
// sequences their fade transitions.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"contact-form/internal/debug"
	"contact-form/internal/display"
	"contact-form/internal/dom"
	"contact-form/internal/formlock"
)

// Type selects the alert style modifier.
type Type string

const (
	Danger  Type = "danger"
	Success Type = "success"
	Info    Type = "info"
	Warning Type = "warning"
)

// DefaultPollInterval is how often computed styles are sampled during a transition.
const DefaultPollInterval = 10 * time.Millisecond

var (
	// ErrNoOutput is returned when the form has no output container.
	ErrNoOutput = errors.New("alerts: form has no output container")
	// ErrPanicked wraps a panic recovered while rendering alerts.
	ErrPanicked = errors.New("alerts: recovered from panic")
)

// Guard wraps fn so a panic is returned as an error wrapping ErrPanicked.
func Guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrPanicked, r)
			}
		}()
		return fn()
	}
}

// Alert is one message shown in the output container.
type Alert struct {
	Text string `json:"text"`
	Type Type   `json:"type"`
}

// New returns an Alert of the given type.
func New(t Type, text string) Alert {
	return Alert{Text: text, Type: t}
}

// Presenter owns the alert paragraphs it creates inside output containers.
type Presenter struct {
	Document     dom.Document
	Markup       dom.Markup
	Locker       *formlock.Locker
	PollInterval time.Duration
	Stopwatch    *debug.Stopwatch

	// mu keeps clear-and-insert atomic so batches never interleave.
	mu sync.Mutex
}

// NewPresenter wires a Presenter with defaults filled in.
func NewPresenter(doc dom.Document, markup dom.Markup, sw *debug.Stopwatch) *Presenter {
	markup = markup.WithDefaults()
	return &Presenter{
		Document:     doc,
		Markup:       markup,
		Locker:       formlock.New(markup, sw),
		PollInterval: DefaultPollInterval,
		Stopwatch:    debug.Or(sw),
	}
}

// Show locks form and fades in one paragraph per alert. The form stays locked.
func (p *Presenter) Show(ctx context.Context, form dom.Element, alerts []Alert) error {
	return p.show(ctx, form, alerts, true)
}

func (p *Presenter) show(ctx context.Context, form dom.Element, alerts []Alert, lock bool) error {
	sw := debug.Or(p.Stopwatch)
	sw.Logf(debug.PhaseStart, "show alerts", "count=%d lock=%t", len(alerts), lock)
	if lock {
		p.Locker.Lock(form)
	}

	output, err := p.output(form)
	if err != nil {
		return err
	}
	prop := p.Markup.TransitionProperty

	output.SetStyle("display", p.Markup.VisibleDisplay)
	if err := p.Transition(ctx, []dom.Element{output}, prop, "0"); err != nil {
		return fmt.Errorf("fade out previous alerts: %w", err)
	}
	nodes, err := p.replace(output, alerts)
	if err != nil {
		return err
	}

	if err := p.Transition(ctx, nodes, prop, "1"); err != nil {
		return fmt.Errorf("fade in alerts: %w", err)
	}
	sw.Logf(debug.PhaseEnd, "show alerts", "count=%d", len(alerts))
	return nil
}

// ShowThenHide shows alerts, holds them for wait, then clears and hides the
// container. The form is unlocked on return, whatever happened in between.
func (p *Presenter) ShowThenHide(ctx context.Context, form dom.Element, alerts []Alert, wait time.Duration) (err error) {
	sw := debug.Or(p.Stopwatch)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
		if err != nil {
			p.clear(form)
		}
		p.Locker.Unlock(form)
		sw.Logf(debug.PhaseEnd, "show then hide", "err=%v", err)
	}()

	if err := p.Show(ctx, form, alerts); err != nil {
		return err
	}
	if err := Pause(ctx, wait); err != nil {
		return err
	}
	return p.Hide(ctx, form)
}

// Notify runs the show, hold and hide sequence without locking the form, so
// the user can keep editing while the alerts are visible.
func (p *Presenter) Notify(ctx context.Context, form dom.Element, alerts []Alert, wait time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanicked, r)
		}
		if err != nil {
			p.clear(form)
		}
	}()

	if err := p.show(ctx, form, alerts, false); err != nil {
		return err
	}
	if err := Pause(ctx, wait); err != nil {
		return err
	}
	return p.Hide(ctx, form)
}

// Hide fades the output container out, removes its alerts and hides it.
func (p *Presenter) Hide(ctx context.Context, form dom.Element) error {
	output, err := p.output(form)
	if err != nil {
		return err
	}
	if err := p.Transition(ctx, []dom.Element{output}, p.Markup.TransitionProperty, "0"); err != nil {
		return fmt.Errorf("fade out alerts: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := display.RemoveAllChildren(output); err != nil {
		return err
	}
	output.SetStyle("display", p.Markup.HiddenDisplay)
	return nil
}

// Transition sets prop to value on every node and waits until each node's
// computed style reports value. Nodes settle concurrently. A node without a
// configured CSS transition on prop settles immediately; a rendering engine
// that never reaches value blocks until ctx ends.
func (p *Presenter) Transition(ctx context.Context, nodes []dom.Element, prop, value string) error {
	interval := p.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, node := range nodes {
		if node == nil {
			continue
		}
		node := node
		g.Go(Guard(func() error {
			node.SetStyle(prop, value)
			return waitForStyle(gctx, node, prop, value, interval)
		}))
	}
	return g.Wait()
}

func waitForStyle(ctx context.Context, node dom.Element, prop, value string, interval time.Duration) error {
	if node.ComputedStyle(prop) == value {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if node.ComputedStyle(prop) == value {
				return nil
			}
		}
	}
}

// Pause blocks for d or until ctx ends.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Presenter) replace(output dom.Element, alerts []Alert) ([]dom.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := display.RemoveAllChildren(output); err != nil {
		return nil, err
	}
	prop := p.Markup.TransitionProperty
	nodes := []dom.Element{output}
	for _, a := range alerts {
		el := p.Document.CreateElement("p")
		el.AddClass(p.Markup.AlertClass, p.Markup.AlertClass+"--"+string(a.Type))
		el.SetText(display.Sanitize(a.Text))
		el.SetStyle(prop, "0")
		if err := output.AppendChild(el); err != nil {
			return nil, fmt.Errorf("insert alert: %w", err)
		}
		nodes = append(nodes, el)
	}
	return nodes, nil
}

// Clear empties and hides the container without waiting on transitions.
func (p *Presenter) Clear(form dom.Element) {
	p.clear(form)
}

func (p *Presenter) clear(form dom.Element) {
	defer func() { _ = recover() }()
	output, err := p.output(form)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = display.RemoveAllChildren(output)
	output.SetStyle(p.Markup.TransitionProperty, "0")
	output.SetStyle("display", p.Markup.HiddenDisplay)
}

func (p *Presenter) output(form dom.Element) (dom.Element, error) {
	if form == nil {
		return nil, ErrNoOutput
	}
	matches := form.QuerySelectorAll(p.Markup.OutputSelector())
	if len(matches) != 1 {
		return nil, fmt.Errorf("%w (found %d)", ErrNoOutput, len(matches))
	}
	return matches[0], nil
}

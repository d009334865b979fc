// Package htmldom is a headless implementation of the dom interfaces backed by
// golang.org/x/net/html with goquery selectors. CSS transitions are simulated:
// a transitioning property reports its previous computed value until the
// configured duration has elapsed.
package htmldom

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"contact-form/internal/dom"
)

// ErrForeignNode is returned when a node from another document (or adapter) is
// passed to a tree mutation.
var ErrForeignNode = errors.New("htmldom: node does not belong to this document")

// Option customises a Document.
type Option func(*Document)

// WithTransition makes the listed properties transition over d.
func WithTransition(d time.Duration, props ...string) Option {
	return func(doc *Document) {
		doc.transition = d
		for _, p := range props {
			doc.transitioning[strings.ToLower(p)] = true
		}
	}
}

// WithClock overrides the time source used for transitions.
func WithClock(now func() time.Time) Option {
	return func(doc *Document) {
		if now != nil {
			doc.now = now
		}
	}
}

// Document is a parsed, mutable HTML document.
type Document struct {
	mu            sync.Mutex
	root          *html.Node
	body          *html.Node
	state         map[*html.Node]*nodeState
	transition    time.Duration
	transitioning map[string]bool
	now           func() time.Time
	navigated     []string
	nextListener  int
}

type styleValue struct {
	from  string
	to    string
	setAt time.Time
}

type listenerEntry struct {
	id int
	fn dom.Listener
}

type nodeState struct {
	value     *string
	styles    map[string]styleValue
	files     []dom.File
	listeners map[string][]listenerEntry
}

// Parse builds a Document from markup.
func Parse(markup string, opts ...Option) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	doc := &Document{
		root:          root,
		state:         make(map[*html.Node]*nodeState),
		transitioning: make(map[string]bool),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(doc)
	}
	doc.body = goquery.NewDocumentFromNode(root).Find("body").Get(0)
	return doc, nil
}

// MustParse is Parse for fixtures that are known to be valid.
func MustParse(markup string, opts ...Option) *Document {
	doc, err := Parse(markup, opts...)
	if err != nil {
		panic(err)
	}
	return doc
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string) dom.Element {
	tag = strings.ToLower(tag)
	node := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	return &element{doc: d, node: node}
}

// Body returns the document body.
func (d *Document) Body() dom.Element {
	if d.body == nil {
		return nil
	}
	return &element{doc: d, node: d.body}
}

// Navigate records the navigation request.
func (d *Document) Navigate(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigated = append(d.navigated, url)
}

// Navigated lists every URL passed to Navigate.
func (d *Document) Navigated() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.navigated))
	copy(out, d.navigated)
	return out
}

// QuerySelector searches the whole document.
func (d *Document) QuerySelector(selector string) dom.Element {
	return (&element{doc: d, node: d.root}).QuerySelector(selector)
}

// QuerySelectorAll searches the whole document.
func (d *Document) QuerySelectorAll(selector string) []dom.Element {
	return (&element{doc: d, node: d.root}).QuerySelectorAll(selector)
}

// Dispatch fires an event of the given type on el and reports whether a
// listener prevented the default action.
func (d *Document) Dispatch(el dom.Element, eventType string) bool {
	e, ok := el.(*element)
	if !ok || e.doc != d {
		return false
	}
	d.mu.Lock()
	var fns []dom.Listener
	if st := d.state[e.node]; st != nil {
		for _, l := range st.listeners[eventType] {
			fns = append(fns, l.fn)
		}
	}
	d.mu.Unlock()

	ev := &event{typ: eventType}
	for _, fn := range fns {
		fn(ev)
	}
	return ev.Prevented()
}

// HTML renders the document.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if err := html.Render(&b, d.root); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (d *Document) stateFor(n *html.Node) *nodeState {
	st := d.state[n]
	if st == nil {
		st = &nodeState{
			styles:    make(map[string]styleValue),
			listeners: make(map[string][]listenerEntry),
		}
		d.state[n] = st
	}
	return st
}

type event struct {
	mu        sync.Mutex
	typ       string
	prevented bool
}

func (e *event) Type() string { return e.typ }

func (e *event) PreventDefault() {
	e.mu.Lock()
	e.prevented = true
	e.mu.Unlock()
}

func (e *event) Prevented() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prevented
}

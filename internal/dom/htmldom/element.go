package htmldom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"contact-form/internal/dom"
)

var defaultComputed = map[string]string{
	"opacity": "1",
	"display": "block",
}

type element struct {
	doc  *Document
	node *html.Node
}

// Unwrap exposes the underlying node of an element created by this package.
func Unwrap(el dom.Element) (*html.Node, bool) {
	e, ok := el.(*element)
	if !ok || e == nil {
		return nil, false
	}
	return e.node, true
}

func (e *element) TagName() string {
	return strings.ToUpper(e.node.Data)
}

func (e *element) Attr(name string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return getAttr(e.node, name)
}

func (e *element) SetAttr(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setAttr(e.node, name, value)
}

func (e *element) RemoveAttr(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	removeAttr(e.node, name)
}

func (e *element) HasClass(name string) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for _, c := range classList(e.node) {
		if c == name {
			return true
		}
	}
	return false
}

func (e *element) AddClass(names ...string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	classes := classList(e.node)
	for _, name := range names {
		found := false
		for _, c := range classes {
			if c == name {
				found = true
				break
			}
		}
		if !found && name != "" {
			classes = append(classes, name)
		}
	}
	setAttr(e.node, "class", strings.Join(classes, " "))
}

func (e *element) RemoveClass(names ...string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	classes := classList(e.node)
	kept := classes[:0]
	for _, c := range classes {
		drop := false
		for _, name := range names {
			if c == name {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, c)
		}
	}
	setAttr(e.node, "class", strings.Join(kept, " "))
}

func (e *element) Value() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if st := e.doc.state[e.node]; st != nil && st.value != nil {
		return *st.value
	}
	if e.node.Data == "textarea" {
		return textOf(e.node)
	}
	v, _ := getAttr(e.node, "value")
	return v
}

func (e *element) SetValue(v string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.stateFor(e.node).value = &v
}

func (e *element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return textOf(e.node)
}

func (e *element) SetText(text string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for c := e.node.FirstChild; c != nil; c = e.node.FirstChild {
		e.node.RemoveChild(c)
	}
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func (e *element) SetDisabled(disabled bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if disabled {
		setAttr(e.node, "disabled", "")
		return
	}
	removeAttr(e.node, "disabled")
}

func (e *element) Disabled() bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	_, ok := getAttr(e.node, "disabled")
	return ok
}

func (e *element) SetStyle(prop, value string) {
	prop = strings.ToLower(prop)
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	st := e.doc.stateFor(e.node)
	now := e.doc.now()
	current := e.computedLocked(st, prop)
	sv := styleValue{from: current, to: value, setAt: now}
	if !e.doc.transitioning[prop] || e.doc.transition <= 0 {
		sv.from = value
	}
	st.styles[prop] = sv
}

func (e *element) ComputedStyle(prop string) string {
	prop = strings.ToLower(prop)
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return e.computedLocked(e.doc.stateFor(e.node), prop)
}

func (e *element) computedLocked(st *nodeState, prop string) string {
	if sv, ok := st.styles[prop]; ok {
		if e.doc.now().Sub(sv.setAt) >= e.doc.transition {
			return sv.to
		}
		return sv.from
	}
	if v, ok := inlineStyle(e.node)[prop]; ok {
		return v
	}
	return defaultComputed[prop]
}

func (e *element) Children() []dom.Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var out []dom.Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &element{doc: e.doc, node: c})
		}
	}
	return out
}

func (e *element) AppendChild(child dom.Element) error {
	c, ok := child.(*element)
	if !ok || c.doc != e.doc {
		return ErrForeignNode
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if c.node.Parent != nil {
		c.node.Parent.RemoveChild(c.node)
	}
	e.node.AppendChild(c.node)
	return nil
}

func (e *element) RemoveChild(child dom.Element) error {
	c, ok := child.(*element)
	if !ok || c.doc != e.doc {
		return ErrForeignNode
	}
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if c.node.Parent != e.node {
		return ErrForeignNode
	}
	e.node.RemoveChild(c.node)
	return nil
}

func (e *element) QuerySelector(selector string) dom.Element {
	all := e.find(selector, true)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

func (e *element) QuerySelectorAll(selector string) []dom.Element {
	return e.find(selector, false)
}

func (e *element) find(selector string, first bool) []dom.Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	sel := goquery.NewDocumentFromNode(e.node).Find(selector)
	if first {
		sel = sel.First()
	}
	out := make([]dom.Element, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, &element{doc: e.doc, node: n})
	}
	return out
}

func (e *element) Files() []dom.File {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	st := e.doc.state[e.node]
	if st == nil {
		return nil
	}
	out := make([]dom.File, len(st.files))
	copy(out, st.files)
	return out
}

func (e *element) SetFiles(files []dom.File) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	cp := make([]dom.File, len(files))
	copy(cp, files)
	e.doc.stateFor(e.node).files = cp
}

func (e *element) AddEventListener(eventType string, fn dom.Listener) func() {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	e.doc.nextListener++
	id := e.doc.nextListener
	st := e.doc.stateFor(e.node)
	st.listeners[eventType] = append(st.listeners[eventType], listenerEntry{id: id, fn: fn})
	return func() {
		e.doc.mu.Lock()
		defer e.doc.mu.Unlock()
		entries := st.listeners[eventType]
		for i, l := range entries {
			if l.id == id {
				st.listeners[eventType] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

func getAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func classList(n *html.Node) []string {
	v, _ := getAttr(n, "class")
	return strings.Fields(v)
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func inlineStyle(n *html.Node) map[string]string {
	raw, ok := getAttr(n, "style")
	if !ok {
		return nil
	}
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(prop))] = strings.TrimSpace(val)
	}
	return out
}

//go:build js && wasm

// Package jsdom adapts the browser document exposed through syscall/js to the
// dom interfaces.
package jsdom

import (
	"errors"
	"syscall/js"

	"contact-form/internal/dom"
)

// ErrForeignNode is returned when an element from another adapter is passed
// to AppendChild or RemoveChild.
var ErrForeignNode = errors.New("jsdom: element does not belong to the browser document")

// Document wraps window.document.
type Document struct {
	window js.Value
	doc    js.Value
}

// New binds the global document.
func New() *Document {
	window := js.Global()
	return &Document{window: window, doc: window.Get("document")}
}

func (d *Document) CreateElement(tag string) dom.Element {
	return wrap(d.window, d.doc.Call("createElement", tag))
}

func (d *Document) Body() dom.Element {
	return wrap(d.window, d.doc.Get("body"))
}

// Navigate replaces the current page.
func (d *Document) Navigate(url string) {
	d.window.Get("location").Set("href", url)
}

// Location returns the page URL.
func (d *Document) Location() string {
	return d.window.Get("location").Get("href").String()
}

func (d *Document) QuerySelector(selector string) dom.Element {
	return wrap(d.window, d.doc.Call("querySelector", selector))
}

func (d *Document) QuerySelectorAll(selector string) []dom.Element {
	return wrapList(d.window, d.doc.Call("querySelectorAll", selector))
}

// Ready runs fn once the document has been parsed.
func (d *Document) Ready(fn func()) {
	if d.doc.Get("readyState").String() != "loading" {
		fn()
		return
	}
	var cb js.Func
	cb = js.FuncOf(func(js.Value, []js.Value) any {
		cb.Release()
		go fn()
		return nil
	})
	d.doc.Call("addEventListener", "DOMContentLoaded", cb)
}

type event struct {
	v js.Value
}

func (e event) Type() string {
	return e.v.Get("type").String()
}

func (e event) PreventDefault() {
	e.v.Call("preventDefault")
}

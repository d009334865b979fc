// Package dom describes the slice of the browser document model the contact
// form core relies on. The browser adapter (jsdom) and the headless
// implementation (htmldom) both satisfy these interfaces.
package dom

import "io"

// Listener receives dispatched events.
type Listener func(Event)

// Event is the minimal event surface the form controllers need.
type Event interface {
	Type() string
	PreventDefault()
}

// File is a single entry of a file input's selection.
type File struct {
	Name string
	Type string
	Size int64
	// Open returns the file contents. It may be nil for placeholder files.
	Open func() (io.ReadCloser, error)
	// Source is the adapter's native handle, used to rebuild selections.
	Source any
}

// Element is a DOM element node.
type Element interface {
	TagName() string

	Attr(name string) (string, bool)
	SetAttr(name, value string)
	RemoveAttr(name string)

	HasClass(name string) bool
	AddClass(names ...string)
	RemoveClass(names ...string)

	Value() string
	SetValue(v string)
	SetText(text string)
	Text() string
	SetDisabled(disabled bool)
	Disabled() bool

	// SetStyle assigns an inline style property.
	SetStyle(prop, value string)
	// ComputedStyle reports the value the rendering engine currently applies,
	// which lags SetStyle while a transition runs.
	ComputedStyle(prop string) string

	Children() []Element
	AppendChild(child Element) error
	RemoveChild(child Element) error

	QuerySelector(selector string) Element
	QuerySelectorAll(selector string) []Element

	Files() []File
	SetFiles(files []File)

	// AddEventListener registers fn and returns a func that removes it.
	AddEventListener(event string, fn Listener) func()
}

// Document creates elements and controls page-level navigation.
type Document interface {
	CreateElement(tag string) Element
	Body() Element
	Navigate(url string)
}

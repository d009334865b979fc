//go:build js && wasm

package jsdom

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"syscall/js"

	"contact-form/internal/dom"
)

type element struct {
	window js.Value
	v      js.Value
}

func wrap(window, v js.Value) dom.Element {
	if v.IsNull() || v.IsUndefined() {
		return nil
	}
	return &element{window: window, v: v}
}

func wrapList(window, list js.Value) []dom.Element {
	if list.IsNull() || list.IsUndefined() {
		return nil
	}
	n := list.Length()
	out := make([]dom.Element, 0, n)
	for i := 0; i < n; i++ {
		if el := wrap(window, list.Index(i)); el != nil {
			out = append(out, el)
		}
	}
	return out
}

// Unwrap returns the js.Value behind an element created by this package.
func Unwrap(el dom.Element) (js.Value, bool) {
	e, ok := el.(*element)
	if !ok || e == nil {
		return js.Undefined(), false
	}
	return e.v, true
}

func (e *element) TagName() string {
	return e.v.Get("tagName").String()
}

func (e *element) Attr(name string) (string, bool) {
	if !e.v.Call("hasAttribute", name).Bool() {
		return "", false
	}
	return e.v.Call("getAttribute", name).String(), true
}

func (e *element) SetAttr(name, value string) {
	e.v.Call("setAttribute", name, value)
}

func (e *element) RemoveAttr(name string) {
	e.v.Call("removeAttribute", name)
}

func (e *element) HasClass(name string) bool {
	return e.v.Get("classList").Call("contains", name).Bool()
}

func (e *element) AddClass(names ...string) {
	list := e.v.Get("classList")
	for _, name := range names {
		if name != "" {
			list.Call("add", name)
		}
	}
}

func (e *element) RemoveClass(names ...string) {
	list := e.v.Get("classList")
	for _, name := range names {
		if name != "" {
			list.Call("remove", name)
		}
	}
}

func (e *element) Value() string {
	v := e.v.Get("value")
	if v.Type() != js.TypeString {
		return ""
	}
	return v.String()
}

func (e *element) SetValue(v string) {
	e.v.Set("value", v)
}

func (e *element) SetText(text string) {
	e.v.Set("textContent", text)
}

func (e *element) Text() string {
	return e.v.Get("textContent").String()
}

func (e *element) SetDisabled(disabled bool) {
	e.v.Set("disabled", disabled)
}

func (e *element) Disabled() bool {
	return e.v.Get("disabled").Truthy()
}

func (e *element) SetStyle(prop, value string) {
	e.v.Get("style").Call("setProperty", prop, value)
}

func (e *element) ComputedStyle(prop string) string {
	return e.window.Call("getComputedStyle", e.v).Call("getPropertyValue", prop).String()
}

func (e *element) Children() []dom.Element {
	return wrapList(e.window, e.v.Get("children"))
}

func (e *element) AppendChild(child dom.Element) error {
	c, ok := Unwrap(child)
	if !ok {
		return ErrForeignNode
	}
	e.v.Call("appendChild", c)
	return nil
}

func (e *element) RemoveChild(child dom.Element) (err error) {
	c, ok := Unwrap(child)
	if !ok {
		return ErrForeignNode
	}
	defer func() {
		if r := recover(); r != nil {
			err = jsError(r)
		}
	}()
	e.v.Call("removeChild", c)
	return nil
}

func (e *element) QuerySelector(selector string) dom.Element {
	return wrap(e.window, e.v.Call("querySelector", selector))
}

func (e *element) QuerySelectorAll(selector string) []dom.Element {
	return wrapList(e.window, e.v.Call("querySelectorAll", selector))
}

func (e *element) Files() []dom.File {
	list := e.v.Get("files")
	if list.IsNull() || list.IsUndefined() {
		return nil
	}
	n := list.Length()
	out := make([]dom.File, 0, n)
	for i := 0; i < n; i++ {
		f := list.Index(i)
		out = append(out, dom.File{
			Name:   f.Get("name").String(),
			Type:   f.Get("type").String(),
			Size:   int64(f.Get("size").Float()),
			Open:   opener(f),
			Source: f,
		})
	}
	return out
}

// SetFiles rebuilds the input's FileList through a DataTransfer. Entries
// without a browser File handle are skipped.
func (e *element) SetFiles(files []dom.File) {
	if len(files) == 0 {
		e.v.Set("value", "")
		return
	}
	ctor := e.window.Get("DataTransfer")
	if ctor.IsUndefined() {
		return
	}
	dt := ctor.New()
	items := dt.Get("items")
	for _, f := range files {
		if src, ok := f.Source.(js.Value); ok && src.Truthy() {
			items.Call("add", src)
		}
	}
	e.v.Set("files", dt.Get("files"))
}

// AddEventListener runs fn synchronously inside the browser callback, so fn
// must not block.
func (e *element) AddEventListener(eventType string, fn dom.Listener) func() {
	cb := js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) > 0 {
			fn(event{v: args[0]})
		}
		return nil
	})
	e.v.Call("addEventListener", eventType, cb)
	var once sync.Once
	return func() {
		once.Do(func() {
			e.v.Call("removeEventListener", eventType, cb)
			cb.Release()
		})
	}
}

func opener(file js.Value) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		buf, err := await(file.Call("arrayBuffer"))
		if err != nil {
			return nil, err
		}
		arr := js.Global().Get("Uint8Array").New(buf)
		data := make([]byte, arr.Get("length").Int())
		js.CopyBytesToGo(data, arr)
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

// await blocks the calling goroutine until promise settles. It must not be
// called from inside a js.Func callback.
func await(promise js.Value) (js.Value, error) {
	type settled struct {
		v   js.Value
		err error
	}
	ch := make(chan settled, 1)
	var onOK, onErr js.Func
	onOK = js.FuncOf(func(this js.Value, args []js.Value) any {
		ch <- settled{v: first(args)}
		return nil
	})
	onErr = js.FuncOf(func(this js.Value, args []js.Value) any {
		ch <- settled{err: jsError(first(args))}
		return nil
	})
	defer onOK.Release()
	defer onErr.Release()
	promise.Call("then", onOK, onErr)
	res := <-ch
	return res.v, res.err
}

func first(args []js.Value) js.Value {
	if len(args) == 0 {
		return js.Undefined()
	}
	return args[0]
}

func jsError(v any) error {
	switch x := v.(type) {
	case js.Value:
		if x.Truthy() && x.Get("message").Type() == js.TypeString {
			return errors.New(x.Get("message").String())
		}
		return errors.New(x.String())
	case error:
		return x
	default:
		return errors.New("jsdom: javascript error")
	}
}

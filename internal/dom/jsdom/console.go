//go:build js && wasm

package jsdom

import (
	"strings"
	"syscall/js"
)

// Console is an io.Writer that forwards each write to console.log.
type Console struct{}

func (Console) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if msg != "" {
		js.Global().Get("console").Call("log", msg)
	}
	return len(p), nil
}

// Package formlock toggles the interactive state of a managed form.
package formlock

import (
	"contact-form/internal/debug"
	"contact-form/internal/dom"
)

// Locker applies lock state using the markup contract.
type Locker struct {
	Markup    dom.Markup
	Stopwatch *debug.Stopwatch
}

// New returns a Locker for markup.
func New(markup dom.Markup, sw *debug.Stopwatch) *Locker {
	return &Locker{Markup: markup.WithDefaults(), Stopwatch: debug.Or(sw)}
}

// Set locks or unlocks form. Repeating the same call is a no-op.
func (l *Locker) Set(form dom.Element, locked bool) {
	if form == nil {
		return
	}
	if locked {
		form.AddClass(l.Markup.LockedClass)
	} else {
		form.RemoveClass(l.Markup.LockedClass)
	}
	controls := form.QuerySelectorAll("input, textarea")
	controls = append(controls, form.QuerySelectorAll(l.Markup.SubmitSelector)...)
	for _, el := range controls {
		el.SetDisabled(locked)
	}
	debug.Or(l.Stopwatch).Logf(debug.PhaseInfo, "form lock", "locked=%t controls=%d", locked, len(controls))
}

// Lock disables form.
func (l *Locker) Lock(form dom.Element) { l.Set(form, true) }

// Unlock re-enables form.
func (l *Locker) Unlock(form dom.Element) { l.Set(form, false) }

// Locked reports whether form carries the locked state class.
func (l *Locker) Locked(form dom.Element) bool {
	return form != nil && form.HasClass(l.Markup.LockedClass)
}

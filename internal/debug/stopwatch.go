// Package debug provides the diagnostic stopwatch shared by the form
// components. Output is advisory and never affects control flow.
package debug

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"contact-form/internal/logging"
)

// Phases written in diagnostic lines.
const (
	PhaseStart = "START"
	PhaseEnd   = "END"
	PhaseInfo  = "INFO"
	PhaseError = "ERROR"
)

// Stopwatch measures elapsed time since MarkStart and writes diagnostic lines
// when enabled.
type Stopwatch struct {
	mu      sync.Mutex
	enabled bool
	start   time.Time
	logger  logging.Logger
	now     func() time.Time
}

// Default is the process-wide stopwatch.
var Default = New(nil)

// New returns a disabled Stopwatch writing to logger (or logging.New()).
func New(logger logging.Logger) *Stopwatch {
	if logger == nil {
		logger = logging.New()
	}
	return &Stopwatch{logger: logger, now: time.Now, start: time.Now()}
}

// Or returns s, or Default when s is nil.
func Or(s *Stopwatch) *Stopwatch {
	if s == nil {
		return Default
	}
	return s
}

// SetEnabled toggles diagnostic output.
func (s *Stopwatch) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

// Enabled reports whether diagnostic output is on.
func (s *Stopwatch) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetLogger redirects diagnostic output.
func (s *Stopwatch) SetLogger(logger logging.Logger) {
	if logger == nil {
		return
	}
	s.mu.Lock()
	s.logger = logger
	s.mu.Unlock()
}

// MarkStart resets the reference point for Elapsed.
func (s *Stopwatch) MarkStart() {
	s.mu.Lock()
	s.start = s.now()
	s.mu.Unlock()
}

// Elapsed returns the milliseconds since MarkStart, zero-padded to 5 digits.
func (s *Stopwatch) Elapsed() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Stopwatch) elapsedLocked() string {
	ms := s.now().Sub(s.start).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return fmt.Sprintf("%05d", ms)
}

// Logf writes "<elapsed> |<PHASE>| <operation> | <context>" when enabled.
func (s *Stopwatch) Logf(phase, operation, format string, args ...any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		return
	}
	elapsed := s.elapsedLocked()
	logger := s.logger
	s.mu.Unlock()

	context := format
	if len(args) > 0 {
		context = fmt.Sprintf(format, args...)
	}
	logger.Printf("%s |%s| %s | %s", elapsed, strings.ToUpper(phase), operation, context)
}

// SetEnabled toggles the Default stopwatch.
func SetEnabled(enabled bool) { Default.SetEnabled(enabled) }

// MarkStart resets the Default stopwatch.
func MarkStart() { Default.MarkStart() }

// Elapsed reads the Default stopwatch.
func Elapsed() string { return Default.Elapsed() }

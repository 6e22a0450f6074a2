// Package diagnostic implements the accumulating diagnostics sink the
// Module Assembler reports input-model errors through (spec §6, §7):
// severity-keyed messages anchored to a method reference rather than
// source position, since there is no source text at this stage of the
// pipeline — only a linked class universe.
//
// Shape is carried over from the teacher's own internal/diagnostic
// (Severity enum, an accumulating Diagnostics/Sink, a line-per-entry
// Format): lines, columns and hints are replaced by a method/class
// Location and the {{m<i>}}/{{c<i>}} placeholder convention (spec §6)
// the controller's diagnostics contract uses in place of source spans.
package diagnostic

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity represents the severity level of a diagnostic message.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	default:
		return "unknown"
	}
}

// Location anchors a diagnostic to the method whose body the core was
// processing when the condition was detected, matching the
// CallLocation contract of the controller's diagnostics sink (spec
// §6).
type Location struct {
	ClassName  string
	MethodName string
}

func (l Location) String() string {
	if l.MethodName == "" {
		return l.ClassName
	}
	return l.ClassName + "." + l.MethodName
}

// Diagnostic is a single reported message.
type Diagnostic struct {
	Severity Severity
	Location Location
	Message  string
}

// Sink accumulates diagnostics for one emit invocation. It never
// throws; only Fatal (see below) unwinds the pipeline.
type Sink struct {
	items []Diagnostic
}

// New returns an empty sink.
func New() *Sink {
	return &Sink{}
}

// Error records an input-model error at location. format may
// reference args positionally using the {{m<i>}} / {{c<i>}}
// convention from spec §6 — see Expand.
func (s *Sink) Error(location Location, format string, args ...interface{}) {
	s.items = append(s.items, Diagnostic{Severity: Error, Location: location, Message: Expand(format, args...)})
}

// Warningf records a warning at location.
func (s *Sink) Warningf(location Location, format string, args ...interface{}) {
	s.items = append(s.items, Diagnostic{Severity: Warning, Location: location, Message: Expand(format, args...)})
}

// Infof records an informational note at location.
func (s *Sink) Infof(location Location, format string, args ...interface{}) {
	s.items = append(s.items, Diagnostic{Severity: Info, Location: location, Message: Expand(format, args...)})
}

// HasErrors reports whether any Error-severity diagnostic was recorded.
func (s *Sink) HasErrors() bool {
	for _, item := range s.items {
		if item.Severity == Error {
			return true
		}
	}
	return false
}

// All returns every recorded diagnostic, in reporting order.
func (s *Sink) All() []Diagnostic {
	return s.items
}

// Count returns the total number of diagnostics recorded.
func (s *Sink) Count() int {
	return len(s.items)
}

// Format renders every diagnostic as one line per entry, e.g.:
//
//	error[Foo.bar]: method Foo.bar is native but has no org.teavm.interop.Import annotation on it
func (s *Sink) Format() string {
	if len(s.items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, item := range s.items {
		b.WriteString(fmt.Sprintf("%s[%s]: %s", item.Severity.String(), item.Location.String(), item.Message))
		if i < len(s.items)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

var placeholderPattern = regexp.MustCompile(`\{\{[mc](\d+)\}\}`)

// Expand renders format, substituting each "{{m<i>}}" or "{{c<i>}}"
// placeholder with the positional arg it names — args are method or
// class references, rendered with fmt's default verb, matching the
// controller diagnostics convention from spec §6. The letter (m vs c)
// is documentation only; the numeric index alone selects the
// argument, so a caller must keep its own m/c labeling consistent with
// which args it actually passes.
func Expand(format string, args ...interface{}) string {
	return placeholderPattern.ReplaceAllStringFunc(format, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		idx := 0
		fmt.Sscanf(sub[1], "%d", &idx)
		if idx < 0 || idx >= len(args) {
			return match
		}
		return fmt.Sprintf("%v", args[idx])
	})
}

// Fatal is an invariant-violation error (spec §7): a mangling
// collision, an unknown virtual-dispatch target absent from the
// vtable provider, or a request for the class pointer of an unknown
// class. These are bugs in the core or contract violations by a
// collaborator, never user-input-driven — the Module Assembler does
// not catch them, it lets them unwind the build.
type Fatal struct {
	Reason string
}

func (f *Fatal) Error() string {
	return "invariant violation: " + f.Reason
}

// NewFatal constructs a Fatal with a formatted reason.
func NewFatal(format string, args ...interface{}) *Fatal {
	return &Fatal{Reason: fmt.Sprintf(format, args...)}
}

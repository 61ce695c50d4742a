package diag

import (
	"fmt"
	"strings"
)

// Kind classifies a compile-time diagnostic.
type Kind int

const (
	Scan Kind = iota
	Parse
	Resolve
)

func (k Kind) String() string {
	switch k {
	case Scan:
		return "scan error"
	case Parse:
		return "parse error"
	case Resolve:
		return "resolve error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Diagnostic is a single compile-time error anchored to a span.
type Diagnostic struct {
	Kind    Kind
	Span    Span
	Message string
}

// Report collects diagnostics across the scan/parse/resolve phases — they
// all "collect all errors before returning" (panic-mode recovery) and are
// rendered together once, per spec.
type Report struct {
	File        string
	Diagnostics []Diagnostic
}

func (r *Report) Add(kind Kind, span Span, format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{
		Kind:    kind,
		Span:    span,
		Message: fmt.Sprintf(format, args...),
	})
}

func (r *Report) HasErrors() bool {
	return len(r.Diagnostics) > 0
}

// Render formats every diagnostic as file, line:column, a caret under the
// offending span, and the message — per spec.md §7 "User-visible format".
func (r *Report) Render(src string) string {
	var b strings.Builder
	for _, d := range r.Diagnostics {
		pos := PositionOf(src, d.Span.Offset)
		line := LineText(src, d.Span.Offset)
		fmt.Fprintf(&b, "%s:%d:%d: %s: %s\n", r.File, pos.Line, pos.Column, d.Kind, d.Message)
		fmt.Fprintf(&b, "  %s\n", line)
		fmt.Fprintf(&b, "  %s%s\n", strings.Repeat(" ", pos.Column-1), caret(d.Span.Length))
	}
	return b.String()
}

func caret(length int) string {
	if length < 1 {
		length = 1
	}
	return strings.Repeat("^", length)
}

// Frame is one entry of a runtime call-stack snapshot, attached to a
// RuntimeError when a backend aborts on an error.
type Frame struct {
	Name string // function/method name; "" for the top level, rendered as "script"
	Line int
}

// RuntimeError is the error type both the tree-walk evaluator and the
// bytecode VM return on any §7 runtime-error condition. It always carries
// the source line of the failing operation and, optionally, a call-stack
// snapshot for the BACKTRACE env var.
type RuntimeError struct {
	Line    int
	Message string
	Frames  []Frame // innermost first
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Render formats a runtime error as spec.md §7 requires:
//
//	Error: line N: MESSAGE
//	  i: NAME()    [line N]   (only when backtrace is requested)
func (e *RuntimeError) Render(withBacktrace bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: line %d: %s\n", e.Line, e.Message)
	if withBacktrace {
		for i, f := range e.Frames {
			name := f.Name
			if name == "" {
				name = "script"
			}
			fmt.Fprintf(&b, "  %d: %s()    [line %d]\n", i, name, f.Line)
		}
	}
	return b.String()
}

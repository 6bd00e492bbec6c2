// Package invariant provides contract assertions for the pseudocode engine.
//
// Assertions guard the engine's own logic: a violated contract means a bug in
// the lexer, parser, validator or interpreter, never a mistake in the user's
// program. User mistakes are reported as diagnostics or runtime errors.
//
// All functions panic on violation. The executor recovers these panics at its
// boundary and reports them as internal faults, separate from language errors.
package invariant

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Violation is the panic value raised by a failed assertion.
type Violation struct {
	Kind    string // PRECONDITION, POSTCONDITION or INVARIANT
	Message string
	At      string // file:line of the failing assertion
}

func (v Violation) Error() string {
	var b strings.Builder
	b.WriteString(v.Kind)
	b.WriteString(" VIOLATION: ")
	b.WriteString(v.Message)
	if v.At != "" {
		b.WriteString("\n  at ")
		b.WriteString(v.At)
	}
	return b.String()
}

// Precondition checks an input contract at function entry.
//
// Example:
//
//	func Tokenize(source string) []Token {
//	    invariant.Precondition(utf8.ValidString(source), "source must be UTF-8")
//	    // ...
//	}
func Precondition(condition bool, format string, args ...any) {
	if !condition {
		fail("PRECONDITION", format, args...)
	}
}

// Postcondition checks an output contract before function return.
//
// Example:
//
//	invariant.Postcondition(tokens[len(tokens)-1].Type == EOF, "token stream must end with EOF")
func Postcondition(condition bool, format string, args ...any) {
	if !condition {
		fail("POSTCONDITION", format, args...)
	}
}

// Invariant checks internal consistency during execution, such as parser
// progress or scope balance.
//
// Example:
//
//	prev := p.pos
//	p.statement()
//	invariant.Invariant(p.pos > prev, "parser must advance")
func Invariant(condition bool, format string, args ...any) {
	if !condition {
		fail("INVARIANT", format, args...)
	}
}

// NotNil panics if value is nil, including typed nils such as (*Program)(nil).
func NotNil(value any, name string) {
	if isNilValue(value) {
		fail("PRECONDITION", "%s must not be nil", name)
	}
}

func isNilValue(value any) bool {
	if value == nil {
		return true
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return v.IsNil()
	default:
		return false
	}
}

// InRange panics if value is outside [minVal, maxVal].
func InRange(value, minVal, maxVal int, name string) {
	if value < minVal || value > maxVal {
		fail("PRECONDITION", "%s must be in range [%d, %d], got %d",
			name, minVal, maxVal, value)
	}
}

// fail panics with a Violation carrying the caller's location.
func fail(kind, format string, args ...any) {
	pc := make([]uintptr, 10)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])

	v := Violation{Kind: kind, Message: fmt.Sprintf(format, args...)}
	if frame, ok := frames.Next(); ok {
		v.At = fmt.Sprintf("%s:%d", frame.File, frame.Line)
	}

	panic(v)
}

package executor

import (
	"fmt"

	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/types"
)

// RuntimeError is a program fault that halts the run.
type RuntimeError struct {
	Line    int
	Code    diag.Code
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("Line %d: Runtime Error - %s", e.Line, e.Message)
}

// Diagnostic converts e for callers that report every phase uniformly.
func (e *RuntimeError) Diagnostic() diag.Diagnostic {
	return diag.Diagnostic{
		Line:     e.Line,
		Message:  e.Error(),
		Code:     e.Code,
		Severity: diag.SeverityError,
	}
}

// errorf builds a runtime error at the current statement's line.
func (in *interpreter) errorf(code diag.Code, format string, args ...any) *RuntimeError {
	return &RuntimeError{Line: in.line, Code: code, Message: fmt.Sprintf(format, args...)}
}

func (in *interpreter) mismatch(format string, args ...any) *RuntimeError {
	return in.errorf(diag.CodeTypeMismatch, format, args...)
}

// typeName names v's type for messages.
func typeName(v types.Value) string {
	if v == nil {
		return types.TypeNull.String()
	}
	return v.Type().String()
}

type completionKind int

const (
	completeNormal completionKind = iota
	completeReturn
	completeBreak
	completeContinue
)

func (k completionKind) String() string {
	switch k {
	case completeReturn:
		return "RETURN"
	case completeBreak:
		return "BREAK"
	case completeContinue:
		return "CONTINUE"
	}
	return "normal"
}

// completion is how a statement finished. Control flow travels up the
// tree as a value; err is set when the statement failed.
type completion struct {
	kind  completionKind
	value types.Value // RETURN value
	err   error
}

var normal = completion{}

func failed(err error) completion {
	return completion{err: err}
}

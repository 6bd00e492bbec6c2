// Package diag holds the diagnostic values shared by the lexer, parser,
// validator and interpreter, plus helpers for rendering them against source.
package diag

import (
	"fmt"
	"sort"
)

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Code is a machine-readable diagnostic identifier.
type Code string

// Lexical codes.
const (
	CodeUnterminatedString Code = "UNTERMINATED_STRING"
	CodeInvalidCharacter   Code = "INVALID_CHARACTER"
	CodeInvalidChar        Code = "INVALID_CHAR_LITERAL"
)

// Syntax codes.
const (
	CodeSyntax              Code = "SYNTAX_ERROR"
	CodeMissingTerminator   Code = "MISSING_TERMINATOR"
	CodeUnbalancedDelimiter Code = "UNBALANCED_DELIMITER"
)

// Semantic codes.
const (
	CodeUndeclaredVariable    Code = "UNDECLARED_VARIABLE"
	CodeRedeclaration         Code = "REDECLARATION"
	CodeTypeMismatch          Code = "TYPE_MISMATCH"
	CodeConstantAssignment    Code = "CONSTANT_ASSIGNMENT"
	CodeUndeclaredRoutine     Code = "UNDECLARED_ROUTINE"
	CodeArgumentCount         Code = "ARGUMENT_COUNT"
	CodeReturnOutsideRoutine  Code = "RETURN_OUTSIDE_ROUTINE"
	CodeInvalidCall           Code = "INVALID_CALL"
	CodeByRefArgument         Code = "BYREF_ARGUMENT"
	CodeLoopControlOutside    Code = "LOOP_CONTROL_OUTSIDE_LOOP"
	CodeIncompleteNode        Code = "INCOMPLETE_NODE"
	CodeUnreachableCode       Code = "UNREACHABLE_CODE"
	CodeUnusedVariable        Code = "UNUSED_VARIABLE"
	CodeTypeUncertain         Code = "TYPE_UNCERTAIN"
	CodeMissingReturn         Code = "MISSING_RETURN"
	CodeRoutineNotTopLevel    Code = "ROUTINE_NOT_TOP_LEVEL"
	CodeInvalidArrayBounds    Code = "INVALID_ARRAY_BOUNDS"
	CodeUnsupportedExpression Code = "UNSUPPORTED_EXPRESSION"
	CodeInfiniteRecursion     Code = "INFINITE_RECURSION"
)

// Runtime codes, carried by interpreter errors.
const (
	CodeDivisionByZero    Code = "DIVISION_BY_ZERO"
	CodeIndexOutOfBounds  Code = "INDEX_OUT_OF_BOUNDS"
	CodeIntegerOverflow   Code = "INTEGER_OVERFLOW"
	CodeInvalidStep       Code = "INVALID_STEP"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInputExhausted    Code = "INPUT_EXHAUSTED"
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeArrayTooLarge     Code = "ARRAY_TOO_LARGE"
	CodeExecutionTimeout  Code = "EXECUTION_TIMEOUT"
	CodeStackOverflow     Code = "STACK_OVERFLOW"
	CodeExecutionCanceled Code = "EXECUTION_CANCELLED"
)

// Diagnostic is a line-numbered error or warning. Message always carries the
// "Line <N>:" prefix so it can be shown verbatim in an editor gutter.
type Diagnostic struct {
	Line     int      `json:"lineNumber" cbor:"1,keyasint"`
	Column   int      `json:"column,omitempty" cbor:"2,keyasint,omitempty"`
	Message  string   `json:"message" cbor:"3,keyasint"`
	Code     Code     `json:"code" cbor:"4,keyasint"`
	Severity Severity `json:"severity" cbor:"5,keyasint"`
	Hint     string   `json:"hint,omitempty" cbor:"6,keyasint,omitempty"`
}

func (d Diagnostic) Error() string {
	return d.Message
}

// IsError reports whether d blocks execution.
func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

// WithHint returns a copy of d carrying hint.
func (d Diagnostic) WithHint(hint string) Diagnostic {
	d.Hint = hint
	return d
}

// Lexical builds a lexical error.
func Lexical(line, column int, code Code, format string, args ...any) Diagnostic {
	return Diagnostic{
		Line:     line,
		Column:   column,
		Message:  fmt.Sprintf("Line %d: Lexical Error - %s", line, fmt.Sprintf(format, args...)),
		Code:     code,
		Severity: SeverityError,
	}
}

// Syntax builds a syntax error.
func Syntax(line, column int, code Code, format string, args ...any) Diagnostic {
	return Diagnostic{
		Line:     line,
		Column:   column,
		Message:  fmt.Sprintf("Line %d: Syntax Error - %s", line, fmt.Sprintf(format, args...)),
		Code:     code,
		Severity: SeverityError,
	}
}

// Semantic builds a validation diagnostic of the given severity.
func Semantic(line, column int, sev Severity, code Code, format string, args ...any) Diagnostic {
	return Diagnostic{
		Line:     line,
		Column:   column,
		Message:  fmt.Sprintf("Line %d: %s", line, fmt.Sprintf(format, args...)),
		Code:     code,
		Severity: sev,
	}
}

// SortByPosition orders diagnostics by line then column, keeping the
// discovery order of diagnostics at the same position.
func SortByPosition(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].Line != ds[j].Line {
			return ds[i].Line < ds[j].Line
		}
		return ds[i].Column < ds[j].Column
	})
}

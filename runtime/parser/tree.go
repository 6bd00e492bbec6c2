package parser

import (
	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/runtime/lexer"
)

// ParseTree represents the result of parsing. Program is always non-nil;
// when Errors is non-empty it is a partial tree with BadStmt and BadExpr
// placeholders where parsing failed.
type ParseTree struct {
	Source      string            // Original source (for reference)
	Tokens      []lexer.Token     // Tokens from lexer, INVALID included
	Program     *ast.Program      // Syntax tree
	LexErrors   []diag.Diagnostic // Lexical diagnostics
	Errors      []ParseError      // Syntax errors
	Telemetry   *ParseTelemetry   // Performance metrics (nil if disabled)
	DebugEvents []DebugEvent      // Debug events (nil if disabled)
}

// HasErrors reports whether lexing or parsing failed anywhere.
func (t *ParseTree) HasErrors() bool {
	return len(t.LexErrors) > 0 || len(t.Errors) > 0
}

// Diagnostics returns lexical and syntax errors ordered by position.
func (t *ParseTree) Diagnostics() []diag.Diagnostic {
	out := make([]diag.Diagnostic, 0, len(t.LexErrors)+len(t.Errors))
	out = append(out, t.LexErrors...)
	for _, e := range t.Errors {
		out = append(out, e.Diagnostic())
	}
	diag.SortByPosition(out)
	return out
}

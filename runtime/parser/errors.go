package parser

import (
	"fmt"

	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/runtime/lexer"
)

// ParseError represents a parse error with context for user-friendly messages
type ParseError struct {
	Position lexer.Position // Line, column, offset
	Code     diag.Code      // SYNTAX_ERROR, MISSING_TERMINATOR or UNBALANCED_DELIMITER

	Message string // Full sentence: "Expected 'ENDIF' after IF statement"
	Context string // What we were parsing: "IF statement"

	Expected []lexer.TokenType // What tokens would be valid
	Got      lexer.TokenType   // What we found instead

	Suggestion string // Actionable fix: "did you mean 'ENDIF'?"
}

// Error implements error.
func (e ParseError) Error() string {
	return e.Diagnostic().Message
}

// Diagnostic converts the error into the shared diagnostic form.
func (e ParseError) Diagnostic() diag.Diagnostic {
	return diag.Syntax(e.Position.Line, e.Position.Column, e.Code, "%s", e.Message).WithHint(e.Suggestion)
}

// BracketTracker tracks open parentheses and brackets within one
// expression so imbalance is reported against the opening delimiter.
type BracketTracker struct {
	stack []BracketInfo
}

// BracketInfo records an opening delimiter.
type BracketInfo struct {
	Type  lexer.TokenType // LPAREN or LSQUARE
	Token lexer.Token
}

// Push adds an opening bracket to the tracker
func (bt *BracketTracker) Push(tok lexer.Token) {
	bt.stack = append(bt.stack, BracketInfo{Type: tok.Type, Token: tok})
}

// Pop removes the innermost opening bracket.
func (bt *BracketTracker) Pop() (BracketInfo, bool) {
	if len(bt.stack) == 0 {
		return BracketInfo{}, false
	}
	top := bt.stack[len(bt.stack)-1]
	bt.stack = bt.stack[:len(bt.stack)-1]
	return top, true
}

// Depth returns the number of unclosed delimiters.
func (bt *BracketTracker) Depth() int {
	return len(bt.stack)
}

// Reset forgets all open delimiters.
func (bt *BracketTracker) Reset() {
	bt.stack = bt.stack[:0]
}

func closerOf(open lexer.TokenType) lexer.TokenType {
	if open == lexer.LSQUARE {
		return lexer.RSQUARE
	}
	return lexer.RPAREN
}

// report records err unless another non-terminator error was already
// reported on the same line. One error per line keeps a single mistake
// from cascading.
func (p *parser) report(err ParseError) {
	if p.aborted {
		return
	}
	if err.Code != diag.CodeMissingTerminator && p.lastErrLine == err.Position.Line {
		return
	}
	p.lastErrLine = err.Position.Line
	p.errors = append(p.errors, err)
	if p.config.logger != nil {
		p.config.logger.Debug("syntax error", "line", err.Position.Line, "code", string(err.Code), "message", err.Message)
	}
	if p.config.debug > DebugOff {
		p.recordDebugEvent("error", err.Message)
	}
}

// errorAt reports a syntax error at tok.
func (p *parser) errorAt(tok lexer.Token, code diag.Code, format string, args ...any) {
	p.report(ParseError{
		Position: tok.Position,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Got:      tok.Type,
	})
}

// expect consumes a token of type expected or reports that it is missing.
func (p *parser) expect(expected lexer.TokenType, context string) bool {
	if p.at(expected) {
		p.advance()
		return true
	}
	p.errorExpected(expected, context)
	return false
}

// errorExpected reports a missing token. When the current token already
// sits on a later line the error points just past the previous token,
// which is where the missing token belonged.
func (p *parser) errorExpected(expected lexer.TokenType, context string) {
	cur := p.current()
	pos := cur.Position
	if prev, ok := p.previous(); ok && (cur.Type == lexer.EOF || cur.Position.Line > prev.Position.Line) {
		pos = endOf(prev)
	}

	err := ParseError{
		Position: pos,
		Code:     diag.CodeSyntax,
		Message:  fmt.Sprintf("Expected '%s' after %s", expected, context),
		Context:  context,
		Expected: []lexer.TokenType{expected},
		Got:      cur.Type,
	}
	if cur.Type == lexer.IDENTIFIER {
		err.Suggestion = diag.DidYouMean(cur.Text, lexer.Keywords())
	}
	p.report(err)
}

// errorMissingTerminator reports an unclosed block at the offending token,
// or at the last consumed token when input ran out.
func (p *parser) errorMissingTerminator(terminator lexer.TokenType, context string, opened lexer.Token) {
	cur := p.current()
	pos := cur.Position
	if cur.Type == lexer.EOF {
		if prev, ok := p.previous(); ok {
			pos = prev.Position
		}
	}

	err := ParseError{
		Position:   pos,
		Code:       diag.CodeMissingTerminator,
		Message:    fmt.Sprintf("Expected '%s' after %s", terminator, context),
		Context:    context,
		Expected:   []lexer.TokenType{terminator},
		Got:        cur.Type,
		Suggestion: fmt.Sprintf("add '%s' to close the %s opened on line %d", terminator, context, opened.Position.Line),
	}
	p.report(err)
}

// errorUnexpected reports a token that cannot appear here.
func (p *parser) errorUnexpected(context string) {
	cur := p.current()
	err := ParseError{
		Position: cur.Position,
		Code:     diag.CodeSyntax,
		Context:  context,
		Got:      cur.Type,
	}

	switch {
	case cur.Type == lexer.EOF:
		err.Message = "Unexpected end of input in " + context
	case cur.Type == lexer.RPAREN || cur.Type == lexer.RSQUARE:
		err.Code = diag.CodeUnbalancedDelimiter
		err.Message = fmt.Sprintf("Unbalanced delimiter: unmatched '%s'", cur.Text)
	default:
		err.Message = fmt.Sprintf("Unexpected '%s' in %s", cur.Text, context)
	}
	if cur.Type == lexer.IDENTIFIER {
		err.Suggestion = keywordHint(cur.Text)
	}
	p.report(err)
}

// recover skips the rest of the line holding the last error, stopping
// early at anything that can begin a statement or close a block.
func (p *parser) recover() {
	for !p.at(lexer.EOF) && p.current().Position.Line == p.lastErrLine {
		t := p.current().Type
		if t.IsStatementStart() || (t.IsBlockEnd() && p.awaited(t)) {
			return
		}
		p.advance()
	}
}

// keywordHint suggests the keyword a mistyped or lower-case word was
// probably meant to be.
func keywordHint(word string) string {
	return diag.DidYouMean(word, lexer.Keywords())
}

func endOf(tok lexer.Token) lexer.Position {
	pos := tok.Position
	pos.Column += len([]rune(tok.Text))
	pos.Offset += len(tok.Text)
	return pos
}

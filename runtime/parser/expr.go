package parser

import (
	"fmt"
	"strconv"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/types"
	"github.com/opal-lang/pseudo/runtime/lexer"
)

// expression parses a complete expression with fresh delimiter tracking.
func (p *parser) expression() ast.Expr {
	p.brackets.Reset()
	return p.binaryExpr(ast.PrecOr)
}

// subExpression parses an expression nested inside open delimiters.
func (p *parser) subExpression() ast.Expr {
	return p.binaryExpr(ast.PrecOr)
}

// binaryExpr parses binary expressions by precedence climbing. Operators
// must sit on the same line as their left operand.
func (p *parser) binaryExpr(minPrec int) ast.Expr {
	left := p.unary()

	for {
		opTok := p.current()
		op := binaryOp(opTok.Type)
		if op == ast.OpInvalid || op.Precedence() < minPrec {
			break
		}
		if prev, ok := p.previous(); ok && prev.Position.Line != opTok.Position.Line && p.brackets.Depth() == 0 {
			break
		}
		p.advance()

		// Left-associative: the right side binds strictly tighter.
		right := p.binaryExpr(op.Precedence() + 1)
		left = &ast.BinaryExpr{Pos: posOf(opTok), Op: op, Left: left, Right: right}
	}

	return left
}

// unary parses NOT and unary minus. NOT sits below comparison, so its
// operand is a whole comparison: NOT a = b is NOT (a = b).
func (p *parser) unary() ast.Expr {
	tok := p.current()
	if !p.enter() {
		p.leave()
		return &ast.BadExpr{Pos: posOf(tok)}
	}
	defer p.leave()

	// An operand on a new line only continues the expression inside open
	// delimiters or straight after an operator.
	lineStart := p.lineStart
	p.lineStart = false
	if prev, ok := p.previous(); ok && !lineStart && tok.Position.Line != prev.Position.Line &&
		p.brackets.Depth() == 0 && prev.Type.Kind() != lexer.KindOperator {
		p.report(ParseError{
			Position: endOf(prev),
			Code:     diag.CodeSyntax,
			Message:  fmt.Sprintf("Expected expression after '%s'", prev.Text),
			Context:  "expression",
			Got:      tok.Type,
		})
		return &ast.BadExpr{Pos: posOf(prev)}
	}

	switch tok.Type {
	case lexer.NOT:
		p.advance()
		return &ast.UnaryExpr{Pos: posOf(tok), Op: ast.OpNot, Operand: p.binaryExpr(ast.PrecCompare)}
	case lexer.MINUS:
		p.advance()
		return &ast.UnaryExpr{Pos: posOf(tok), Op: ast.OpNeg, Operand: p.unary()}
	}
	return p.primary()
}

// primary parses literals, names, calls, indexing and parentheses.
func (p *parser) primary() ast.Expr {
	tok := p.current()

	switch tok.Type {
	case lexer.INT_LIT:
		p.advance()
		n, err := strconv.ParseInt(tok.Text, 10, 64)
		if err != nil {
			p.errorAt(tok, diag.CodeSyntax, "Integer literal %s is out of range", tok.Text)
		}
		return &ast.Literal{Pos: posOf(tok), Value: types.Integer(n), Raw: tok.Text}

	case lexer.REAL_LIT:
		p.advance()
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			p.errorAt(tok, diag.CodeSyntax, "Real literal %s is out of range", tok.Text)
		}
		return &ast.Literal{Pos: posOf(tok), Value: types.Real(f), Raw: tok.Text}

	case lexer.STRING_LIT:
		p.advance()
		return &ast.Literal{Pos: posOf(tok), Value: types.String(tok.Value), Raw: tok.Text}

	case lexer.CHAR_LIT:
		p.advance()
		return &ast.Literal{Pos: posOf(tok), Value: types.Char([]rune(tok.Value)[0]), Raw: tok.Text}

	case lexer.TRUE, lexer.FALSE:
		p.advance()
		return &ast.Literal{Pos: posOf(tok), Value: types.Boolean(tok.Type == lexer.TRUE), Raw: tok.Text}

	case lexer.NULL:
		p.advance()
		return &ast.Literal{Pos: posOf(tok), Value: types.Null{}, Raw: tok.Text}

	case lexer.IDENTIFIER:
		p.advance()
		switch p.current().Type {
		case lexer.LPAREN:
			return p.callTail(tok)
		case lexer.LSQUARE:
			return p.indexTail(tok)
		}
		return &ast.Identifier{Pos: posOf(tok), Name: tok.Text}

	case lexer.LPAREN:
		open := p.advance()
		p.brackets.Push(open)
		inner := p.subExpression()
		p.closeDelimiter(open)
		return inner
	}

	p.errorUnexpected("expression")
	return &ast.BadExpr{Pos: posOf(tok)}
}

// callTail parses "(args)" after a routine name.
func (p *parser) callTail(name lexer.Token) *ast.CallExpr {
	call := &ast.CallExpr{Pos: posOf(name), Callee: name.Text, Args: []ast.Expr{}}
	open := p.advance()
	p.brackets.Push(open)
	if !p.at(lexer.RPAREN) {
		for {
			call.Args = append(call.Args, p.subExpression())
			if !p.at(lexer.COMMA) {
				break
			}
			p.advance()
		}
	}
	p.closeDelimiter(open)
	return call
}

// indexTail parses "[i, j]" after an array name.
func (p *parser) indexTail(name lexer.Token) *ast.ArrayAccess {
	access := &ast.ArrayAccess{Pos: posOf(name), Name: name.Text}
	open := p.advance()
	p.brackets.Push(open)
	for {
		access.Indices = append(access.Indices, p.subExpression())
		if !p.at(lexer.COMMA) {
			break
		}
		p.advance()
	}
	p.closeDelimiter(open)
	return access
}

// closeDelimiter consumes the closer matching open or reports imbalance.
func (p *parser) closeDelimiter(open lexer.Token) bool {
	closer := closerOf(open.Type)
	p.brackets.Pop()
	if p.at(closer) {
		p.advance()
		return true
	}

	cur := p.current()
	pos := cur.Position
	if prev, ok := p.previous(); ok && (cur.Type == lexer.EOF || cur.Position.Line > prev.Position.Line) {
		pos = endOf(prev)
	}
	p.report(ParseError{
		Position:   pos,
		Code:       diag.CodeUnbalancedDelimiter,
		Message:    fmt.Sprintf("Unbalanced delimiter: '%s' opened at column %d is never closed", open.Text, open.Position.Column),
		Context:    "expression",
		Expected:   []lexer.TokenType{closer},
		Got:        cur.Type,
		Suggestion: fmt.Sprintf("add '%s'", closer),
	})
	return false
}

// canStartExpr reports whether the current token can begin an expression.
func (p *parser) canStartExpr() bool {
	switch p.current().Type {
	case lexer.INT_LIT, lexer.REAL_LIT, lexer.STRING_LIT, lexer.CHAR_LIT,
		lexer.TRUE, lexer.FALSE, lexer.NULL, lexer.IDENTIFIER,
		lexer.LPAREN, lexer.MINUS, lexer.NOT:
		return true
	}
	return false
}

// binaryOp maps a token to its binary operator, or OpInvalid.
func binaryOp(t lexer.TokenType) ast.Operator {
	switch t {
	case lexer.OR:
		return ast.OpOr
	case lexer.AND:
		return ast.OpAnd
	case lexer.EQ:
		return ast.OpEq
	case lexer.NOT_EQ:
		return ast.OpNotEq
	case lexer.LT:
		return ast.OpLt
	case lexer.LT_EQ:
		return ast.OpLtEq
	case lexer.GT:
		return ast.OpGt
	case lexer.GT_EQ:
		return ast.OpGtEq
	case lexer.PLUS:
		return ast.OpAdd
	case lexer.MINUS:
		return ast.OpSub
	case lexer.AMPERSAND:
		return ast.OpConcat
	case lexer.MULTIPLY:
		return ast.OpMul
	case lexer.DIVIDE:
		return ast.OpDiv
	case lexer.DIV:
		return ast.OpIntDiv
	case lexer.MOD:
		return ast.OpMod
	}
	return ast.OpInvalid
}

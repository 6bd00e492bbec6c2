package parser

import (
	"fmt"
	"time"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/invariant"
	"github.com/opal-lang/pseudo/core/types"
	"github.com/opal-lang/pseudo/runtime/lexer"
)

// Parse lexes and parses source. It never fails outright: the returned
// tree always carries a Program, partial when Errors is non-empty.
func Parse(source string, opts ...ParserOpt) *ParseTree {
	config := &ParserConfig{maxNesting: DefaultMaxNesting}
	for _, opt := range opts {
		opt(config)
	}
	invariant.Precondition(config.maxNesting > 0, "max nesting must be positive, got %d", config.maxNesting)

	var telemetry *ParseTelemetry
	var debugEvents []DebugEvent
	var startTotal time.Time

	if config.telemetry >= TelemetryBasic {
		telemetry = &ParseTelemetry{}
		if config.telemetry >= TelemetryTiming {
			startTotal = time.Now()
		}
	}

	if config.debug > DebugOff {
		debugEvents = make([]DebugEvent, 0, 100)
	}

	var startLex time.Time
	if config.telemetry >= TelemetryTiming {
		startLex = time.Now()
	}

	var lexOpts []lexer.LexerOpt
	if config.logger != nil {
		lexOpts = append(lexOpts, lexer.WithLogger(config.logger))
	}
	tokens, lexErrs := lexer.Tokenize(source, lexOpts...)

	if config.telemetry >= TelemetryBasic {
		telemetry.TokenCount = len(tokens)
		if config.telemetry >= TelemetryTiming {
			telemetry.LexTime = time.Since(startLex)
		}
	}

	p := &parser{
		tokens:      significant(tokens),
		config:      config,
		debugEvents: debugEvents,
	}

	var startParse time.Time
	if config.telemetry >= TelemetryTiming {
		startParse = time.Now()
	}

	prog := p.program()

	if config.telemetry >= TelemetryBasic {
		telemetry.StatementCount = p.statements
		telemetry.ErrorCount = len(p.errors) + len(lexErrs)
		if config.telemetry >= TelemetryTiming {
			telemetry.ParseTime = time.Since(startParse)
			telemetry.TotalTime = time.Since(startTotal)
		}
	}

	invariant.Postcondition(prog != nil, "parser must always return a program")
	return &ParseTree{
		Source:      source,
		Tokens:      tokens,
		Program:     prog,
		LexErrors:   lexErrs,
		Errors:      p.errors,
		Telemetry:   telemetry,
		DebugEvents: p.debugEvents,
	}
}

// significant drops INVALID tokens; the lexer has already reported them.
func significant(tokens []lexer.Token) []lexer.Token {
	out := make([]lexer.Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Type != lexer.INVALID {
			out = append(out, t)
		}
	}
	return out
}

// parser is the internal parser state
type parser struct {
	tokens   []lexer.Token
	pos      int
	errors   []ParseError
	brackets BracketTracker

	lastErrLine int               // line of the last reported error
	lineStart   bool              // next operand may begin a new line
	closers     []lexer.TokenType // block terminators enclosing blocks are waiting for
	nesting     int
	aborted     bool
	statements  int

	config      *ParserConfig
	debugEvents []DebugEvent
}

// recordDebugEvent records debug events when debug tracing is enabled
func (p *parser) recordDebugEvent(event, context string) {
	if p.config.debug == DebugOff || p.debugEvents == nil {
		return
	}

	p.debugEvents = append(p.debugEvents, DebugEvent{
		Timestamp: time.Now(),
		Event:     event,
		TokenPos:  p.pos,
		Context:   context,
	})
}

// program parses the top-level statement list.
func (p *parser) program() *ast.Program {
	if p.config.debug > DebugOff {
		p.recordDebugEvent("enter_program", "parsing source")
	}

	prog := &ast.Program{Body: []ast.Stmt{}}
	for !p.at(lexer.EOF) {
		before, errs := p.pos, len(p.errors)
		prog.Body = p.appendStatement(prog.Body)
		p.settle(before, errs)
	}

	if p.config.debug > DebugOff {
		p.recordDebugEvent("exit_program", fmt.Sprintf("%d statements", len(prog.Body)))
	}
	return prog
}

// block parses statements until EOF or a terminator some enclosing
// construct is waiting for.
func (p *parser) block(closers ...lexer.TokenType) []ast.Stmt {
	return p.blockUntil(nil, closers...)
}

// blockUntil is block with an extra stop condition checked before each
// statement.
func (p *parser) blockUntil(stop func() bool, closers ...lexer.TokenType) []ast.Stmt {
	p.closers = append(p.closers, closers...)
	defer func() { p.closers = p.closers[:len(p.closers)-len(closers)] }()

	body := []ast.Stmt{}
	for {
		t := p.current().Type
		if t == lexer.EOF || (t.IsBlockEnd() && p.awaited(t)) || (stop != nil && stop()) {
			return body
		}
		before, errs := p.pos, len(p.errors)
		body = p.appendStatement(body)
		p.settle(before, errs)
	}
}

// settle resynchronises after a statement that reported errors and
// guarantees forward progress.
func (p *parser) settle(before, errs int) {
	if len(p.errors) > errs {
		p.recover()
	}
	if p.pos == before && !p.at(lexer.EOF) {
		p.advance()
	}
}

func (p *parser) awaited(t lexer.TokenType) bool {
	for _, c := range p.closers {
		if c == t {
			return true
		}
	}
	return false
}

// appendStatement parses one statement and appends the nodes it yields.
// DECLARE with several names yields one node per name.
func (p *parser) appendStatement(body []ast.Stmt) []ast.Stmt {
	tok := p.current()
	if !p.enter() {
		p.leave()
		return append(body, &ast.BadStmt{Pos: posOf(tok), Text: tok.Text})
	}
	defer p.leave()

	if p.config.debug > DebugOff {
		p.recordDebugEvent("enter_statement", tok.Text)
	}
	p.statements++

	switch tok.Type {
	case lexer.DECLARE:
		return p.declareStmt(body)
	case lexer.CONSTANT:
		return append(body, p.constStmt())
	case lexer.IF:
		return append(body, p.ifStmt())
	case lexer.WHILE:
		return append(body, p.whileStmt())
	case lexer.FOR:
		return append(body, p.forStmt())
	case lexer.REPEAT:
		return append(body, p.repeatStmt())
	case lexer.CASE:
		return append(body, p.caseStmt())
	case lexer.FUNCTION:
		return append(body, p.functionDecl())
	case lexer.PROCEDURE:
		return append(body, p.procedureDecl())
	case lexer.RETURN:
		return append(body, p.returnStmt())
	case lexer.CALL:
		return append(body, p.callStmt())
	case lexer.OUTPUT:
		return append(body, p.outputStmt())
	case lexer.INPUT:
		return append(body, p.inputStmt())
	case lexer.BREAK:
		p.advance()
		return append(body, &ast.BreakStmt{Pos: posOf(tok)})
	case lexer.CONTINUE:
		p.advance()
		return append(body, &ast.ContinueStmt{Pos: posOf(tok)})
	case lexer.IDENTIFIER:
		return append(body, p.identStmt())
	}

	p.errorUnexpected("statement")
	p.advance()
	return append(body, &ast.BadStmt{Pos: posOf(tok), Text: tok.Text})
}

// identStmt parses a statement that starts with a name: an assignment,
// or a mistake worth a targeted message.
func (p *parser) identStmt() ast.Stmt {
	tok := p.current()
	switch p.peek(1).Type {
	case lexer.ASSIGN, lexer.EQ, lexer.LSQUARE:
		return p.assignment()
	case lexer.LPAREN:
		p.advance()
		call := p.callTail(tok)
		p.report(ParseError{
			Position:   tok.Position,
			Code:       diag.CodeSyntax,
			Message:    fmt.Sprintf("Procedure call '%s' must start with CALL", tok.Text),
			Context:    "statement",
			Got:        lexer.IDENTIFIER,
			Suggestion: fmt.Sprintf("write 'CALL %s(...)'", tok.Text),
		})
		return &ast.CallStmt{Pos: posOf(tok), Call: call}
	}

	if keywordHint(tok.Text) != "" {
		p.errorUnexpected("statement")
		p.advance()
		return &ast.BadStmt{Pos: posOf(tok), Text: tok.Text}
	}

	p.advance()
	p.errorExpected(lexer.ASSIGN, "'"+tok.Text+"'")
	return &ast.BadStmt{Pos: posOf(tok), Text: tok.Text}
}

func (p *parser) assignment() ast.Stmt {
	target := p.target()
	if p.at(lexer.ASSIGN) || p.at(lexer.EQ) {
		p.advance()
	} else {
		p.errorExpected(lexer.ASSIGN, "assignment target")
	}
	value := p.expression()
	return &ast.Assignment{Pos: target.Position(), Target: target, Value: value}
}

// target parses name or name[index, ...].
func (p *parser) target() ast.Expr {
	name, ok := p.identifier("assignment")
	if !ok {
		return &ast.BadExpr{Pos: posOf(p.current())}
	}
	if p.at(lexer.LSQUARE) {
		p.brackets.Reset()
		return p.indexTail(name)
	}
	return &ast.Identifier{Pos: posOf(name), Name: name.Text}
}

func (p *parser) declareStmt(body []ast.Stmt) []ast.Stmt {
	kw := p.advance()

	var names []lexer.Token
	for {
		name, ok := p.identifier("DECLARE")
		if !ok {
			return append(body, &ast.BadStmt{Pos: posOf(kw), Text: kw.Text})
		}
		names = append(names, name)
		if !p.at(lexer.COMMA) {
			break
		}
		p.advance()
	}

	if !p.expect(lexer.COLON, "variable name") {
		return append(body, &ast.BadStmt{Pos: posOf(kw), Text: kw.Text})
	}

	if p.at(lexer.ARRAY) {
		dims, elem := p.arrayType()
		for _, n := range names {
			body = append(body, &ast.ArrayDecl{Pos: posOf(n), Name: n.Text, Dims: dims, Elem: elem})
		}
		return body
	}

	typ, _ := p.scalarType("':'")
	for _, n := range names {
		body = append(body, &ast.VarDecl{Pos: posOf(n), Name: n.Text, Type: typ})
	}
	return body
}

// arrayType parses ARRAY[l:u, ...] OF TYPE. A single bound n means 1:n.
func (p *parser) arrayType() ([]ast.Dim, types.DataType) {
	p.advance() // ARRAY
	var dims []ast.Dim

	if p.at(lexer.LSQUARE) {
		p.brackets.Reset()
		open := p.advance()
		p.brackets.Push(open)
		for {
			lower := p.subExpression()
			upper := lower
			if p.at(lexer.COLON) {
				p.advance()
				upper = p.subExpression()
			} else {
				lower = &ast.Literal{Pos: upper.Position(), Value: types.Integer(1)}
			}
			dims = append(dims, ast.Dim{Lower: lower, Upper: upper})
			if !p.at(lexer.COMMA) {
				break
			}
			p.advance()
		}
		p.closeDelimiter(open)
	} else {
		p.errorExpected(lexer.LSQUARE, "ARRAY")
	}

	elem := types.TypeUnknown
	if p.expect(lexer.OF, "array bounds") {
		elem, _ = p.scalarType("OF")
	}
	return dims, elem
}

// scalarType parses one of the five scalar type names.
func (p *parser) scalarType(after string) (types.DataType, bool) {
	tok := p.current()
	if tok.Type.Kind() == lexer.KindTypeName && tok.Type != lexer.ARRAY {
		p.advance()
		t, ok := types.ParseDataType(tok.Text)
		invariant.Invariant(ok, "type keyword %q has no data type", tok.Text)
		return t, true
	}

	err := ParseError{
		Position: tok.Position,
		Code:     diag.CodeSyntax,
		Message:  "Expected type name after " + after,
		Context:  "type",
		Got:      tok.Type,
	}
	if prev, ok := p.previous(); ok && (tok.Type == lexer.EOF || tok.Position.Line > prev.Position.Line) {
		err.Position = endOf(prev)
	}
	if tok.Type == lexer.IDENTIFIER {
		err.Suggestion = diag.DidYouMean(tok.Text, []string{"INTEGER", "REAL", "STRING", "BOOLEAN", "CHAR"})
		p.advance()
	}
	p.report(err)
	return types.TypeUnknown, false
}

func (p *parser) constStmt() ast.Stmt {
	kw := p.advance()
	name, ok := p.identifier("CONSTANT")
	if !ok {
		return &ast.BadStmt{Pos: posOf(kw), Text: kw.Text}
	}
	if p.at(lexer.EQ) || p.at(lexer.ASSIGN) {
		p.advance()
	} else {
		p.errorExpected(lexer.EQ, "constant name")
	}
	return &ast.ConstDecl{Pos: posOf(kw), Name: name.Text, Value: p.expression()}
}

func (p *parser) ifStmt() ast.Stmt {
	kw := p.advance()
	stmt := &ast.IfStmt{Pos: posOf(kw)}
	stmt.Cond = p.expression()
	p.expect(lexer.THEN, "IF condition")
	stmt.Then = p.block(lexer.ELSE, lexer.ENDIF)
	if p.at(lexer.ELSE) {
		p.advance()
		stmt.Else = p.block(lexer.ENDIF)
	}
	p.closeBlock(lexer.ENDIF, "IF statement", kw)
	return stmt
}

func (p *parser) whileStmt() ast.Stmt {
	kw := p.advance()
	stmt := &ast.WhileStmt{Pos: posOf(kw)}
	stmt.Cond = p.expression()
	if p.at(lexer.DO) {
		p.advance()
	}
	stmt.Body = p.block(lexer.ENDWHILE)
	p.closeBlock(lexer.ENDWHILE, "WHILE loop", kw)
	return stmt
}

func (p *parser) forStmt() ast.Stmt {
	kw := p.advance()
	stmt := &ast.ForStmt{Pos: posOf(kw)}

	name, ok := p.identifier("FOR")
	if !ok {
		return &ast.BadStmt{Pos: posOf(kw), Text: kw.Text}
	}
	stmt.Var = name.Text

	if p.at(lexer.ASSIGN) || p.at(lexer.EQ) {
		p.advance()
	} else {
		p.errorExpected(lexer.ASSIGN, "FOR loop variable")
	}
	stmt.Start = p.expression()
	p.expect(lexer.TO, "FOR start value")
	stmt.End = p.expression()
	if p.at(lexer.STEP) {
		p.advance()
		stmt.Step = p.expression()
	}

	stmt.Body = p.block(lexer.NEXT, lexer.ENDFOR)

	switch {
	case p.at(lexer.NEXT):
		next := p.advance()
		if p.at(lexer.IDENTIFIER) && p.current().Position.Line == next.Position.Line {
			v := p.advance()
			if v.Text != stmt.Var {
				p.errorAt(v, diag.CodeSyntax, "NEXT %s does not match FOR variable %s", v.Text, stmt.Var)
			}
		}
	case p.at(lexer.ENDFOR):
		p.advance()
	default:
		p.errorMissingTerminator(lexer.NEXT, "FOR loop", kw)
	}
	return stmt
}

func (p *parser) repeatStmt() ast.Stmt {
	kw := p.advance()
	stmt := &ast.RepeatUntilStmt{Pos: posOf(kw)}
	stmt.Body = p.block(lexer.UNTIL)
	if p.closeBlock(lexer.UNTIL, "REPEAT loop", kw) {
		stmt.Cond = p.expression()
	} else {
		stmt.Cond = &ast.BadExpr{Pos: posOf(p.current())}
	}
	return stmt
}

func (p *parser) caseStmt() ast.Stmt {
	kw := p.advance()
	if p.at(lexer.OF) {
		p.advance()
	} else {
		p.errorExpected(lexer.OF, "CASE")
	}
	stmt := &ast.CaseStmt{Pos: posOf(kw), Subject: p.expression()}

	p.closers = append(p.closers, lexer.OTHERWISE, lexer.ENDCASE)
	for {
		t := p.current().Type
		if t == lexer.EOF || t == lexer.OTHERWISE || t == lexer.ENDCASE || (t.IsBlockEnd() && p.awaited(t)) {
			break
		}
		before, errs := p.pos, len(p.errors)

		branch := ast.CaseBranch{Pos: posOf(p.current())}
		p.lineStart = true
		for {
			label := ast.CaseLabel{Value: p.expression()}
			if p.at(lexer.TO) {
				p.advance()
				label.Upper = p.expression()
			}
			branch.Labels = append(branch.Labels, label)
			if !p.at(lexer.COMMA) {
				break
			}
			p.advance()
		}
		p.expect(lexer.COLON, "CASE label")
		branch.Body = p.blockUntil(p.atCaseLabel)
		stmt.Branches = append(stmt.Branches, branch)

		p.settle(before, errs)
	}
	p.closers = p.closers[:len(p.closers)-2]

	if p.at(lexer.OTHERWISE) {
		p.advance()
		if p.at(lexer.COLON) {
			p.advance()
		}
		stmt.Otherwise = p.block(lexer.ENDCASE)
	}
	p.closeBlock(lexer.ENDCASE, "CASE statement", kw)
	return stmt
}

// atCaseLabel reports whether the current line looks like "label :",
// which is what ends the previous branch body. DECLARE lines also hold a
// colon but start with a statement keyword.
func (p *parser) atCaseLabel() bool {
	tok := p.current()
	if tok.Type == lexer.EOF || tok.Type.IsStatementStart() || tok.Type.IsBlockEnd() {
		return false
	}
	line, depth := tok.Position.Line, 0
	for i := p.pos; i < len(p.tokens) && p.tokens[i].Position.Line == line; i++ {
		switch p.tokens[i].Type {
		case lexer.LPAREN, lexer.LSQUARE:
			depth++
		case lexer.RPAREN, lexer.RSQUARE:
			depth--
		case lexer.ASSIGN:
			return false
		case lexer.COLON:
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

func (p *parser) functionDecl() ast.Stmt {
	kw := p.advance()
	name, ok := p.identifier("FUNCTION")
	if !ok {
		return &ast.BadStmt{Pos: posOf(kw), Text: kw.Text}
	}
	fn := &ast.FunctionDecl{Pos: posOf(kw), Name: name.Text}
	fn.Params = p.params()
	if p.expect(lexer.RETURNS, "FUNCTION parameters") {
		fn.Returns, _ = p.scalarType("RETURNS")
	}
	fn.Body = p.block(lexer.ENDFUNCTION)
	p.closeBlock(lexer.ENDFUNCTION, "FUNCTION declaration", kw)
	return fn
}

func (p *parser) procedureDecl() ast.Stmt {
	kw := p.advance()
	name, ok := p.identifier("PROCEDURE")
	if !ok {
		return &ast.BadStmt{Pos: posOf(kw), Text: kw.Text}
	}
	proc := &ast.ProcedureDecl{Pos: posOf(kw), Name: name.Text}
	proc.Params = p.params()
	proc.Body = p.block(lexer.ENDPROCEDURE)
	p.closeBlock(lexer.ENDPROCEDURE, "PROCEDURE declaration", kw)
	return proc
}

// params parses an optional parenthesised parameter list.
func (p *parser) params() []ast.Param {
	if !p.at(lexer.LPAREN) {
		return nil
	}
	p.brackets.Reset()
	open := p.advance()
	p.brackets.Push(open)

	var params []ast.Param
	if !p.at(lexer.RPAREN) {
		for {
			prm, ok := p.param()
			if !ok {
				break
			}
			params = append(params, prm)
			if !p.at(lexer.COMMA) {
				break
			}
			p.advance()
		}
	}
	p.closeDelimiter(open)
	return params
}

func (p *parser) param() (ast.Param, bool) {
	start := p.current()
	prm := ast.Param{Pos: posOf(start)}
	switch {
	case p.at(lexer.BYREF):
		p.advance()
		prm.ByRef = true
	case p.at(lexer.BYVAL):
		p.advance()
	}

	name, ok := p.identifier("parameter list")
	if !ok {
		return prm, false
	}
	prm.Name = name.Text
	if !p.expect(lexer.COLON, "parameter name") {
		return prm, false
	}

	if p.at(lexer.ARRAY) {
		p.advance()
		if p.at(lexer.LSQUARE) {
			// Bounds on a parameter are informational; the argument's own
			// bounds win.
			open := p.advance()
			p.brackets.Push(open)
			for !p.at(lexer.RSQUARE) && !p.at(lexer.EOF) && !p.at(lexer.RPAREN) {
				p.advance()
			}
			p.closeDelimiter(open)
		}
		prm.Type = types.TypeArray
		if p.expect(lexer.OF, "ARRAY") {
			prm.Elem, _ = p.scalarType("OF")
		}
		return prm, true
	}

	prm.Type, ok = p.scalarType("':'")
	return prm, ok
}

func (p *parser) returnStmt() ast.Stmt {
	kw := p.advance()
	stmt := &ast.ReturnStmt{Pos: posOf(kw)}
	if p.canStartExpr() && p.current().Position.Line == kw.Position.Line {
		stmt.Value = p.expression()
	}
	return stmt
}

func (p *parser) callStmt() ast.Stmt {
	kw := p.advance()
	name, ok := p.identifier("CALL")
	if !ok {
		return &ast.BadStmt{Pos: posOf(kw), Text: kw.Text}
	}
	call := &ast.CallExpr{Pos: posOf(name), Callee: name.Text}
	if p.at(lexer.LPAREN) && p.current().Position.Line == name.Position.Line {
		call = p.callTail(name)
	}
	return &ast.CallStmt{Pos: posOf(kw), Call: call}
}

func (p *parser) outputStmt() ast.Stmt {
	kw := p.advance()
	stmt := &ast.OutputStmt{Pos: posOf(kw)}
	for {
		stmt.Values = append(stmt.Values, p.expression())
		if !p.at(lexer.COMMA) {
			break
		}
		p.advance()
	}
	return stmt
}

func (p *parser) inputStmt() ast.Stmt {
	kw := p.advance()
	return &ast.InputStmt{Pos: posOf(kw), Target: p.target()}
}

// closeBlock consumes a block terminator or reports it missing.
func (p *parser) closeBlock(terminator lexer.TokenType, context string, opened lexer.Token) bool {
	if p.at(terminator) {
		p.advance()
		return true
	}
	p.errorMissingTerminator(terminator, context, opened)
	return false
}

// identifier consumes a name.
func (p *parser) identifier(context string) (lexer.Token, bool) {
	tok := p.current()
	if tok.Type == lexer.IDENTIFIER {
		p.advance()
		return tok, true
	}
	if k := tok.Type.Kind(); k == lexer.KindKeyword || k == lexer.KindTypeName || k == lexer.KindConstant {
		p.errorAt(tok, diag.CodeSyntax, "'%s' is a reserved word and cannot be used as a name", tok.Text)
		return tok, false
	}
	p.errorExpected(lexer.IDENTIFIER, context)
	return tok, false
}

// enter guards recursion depth. Past the limit the parser reports once,
// jumps to EOF and lets every open construct unwind quietly.
func (p *parser) enter() bool {
	p.nesting++
	if p.nesting <= p.config.maxNesting {
		return true
	}
	if !p.aborted {
		p.errorAt(p.current(), diag.CodeSyntax, "Program is nested too deeply (limit %d)", p.config.maxNesting)
		p.aborted = true
	}
	p.pos = len(p.tokens) - 1
	return false
}

func (p *parser) leave() {
	p.nesting--
}

// at checks if current token is of given type
func (p *parser) at(typ lexer.TokenType) bool {
	return p.current().Type == typ
}

// current returns the current token
func (p *parser) current() lexer.Token {
	return p.peek(0)
}

// peek returns the token n places ahead, or EOF past the end.
func (p *parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

// previous returns the last consumed token.
func (p *parser) previous() (lexer.Token, bool) {
	if p.pos == 0 {
		return lexer.Token{}, false
	}
	return p.tokens[p.pos-1], true
}

// advance consumes and returns the current token
func (p *parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	if p.config.debug >= DebugDetailed {
		p.recordDebugEvent("consume", tok.Text)
	}
	return tok
}

func posOf(tok lexer.Token) ast.Pos {
	return ast.Pos{Line: tok.Position.Line, Column: tok.Position.Column}
}

package lexer

import (
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/opal-lang/pseudo/core/diag"
)

const bom = '\uFEFF'

// Lexer converts pseudocode source into tokens. Lexing never fails: bad
// input becomes an INVALID token plus a diagnostic, and scanning resumes
// on the next line.
type Lexer struct {
	// Core lexing state
	input    string
	position int // byte offset of the current rune
	line     int
	column   int

	tokens      []Token
	tokenIndex  int
	diagnostics []diag.Diagnostic
	done        bool

	logger *slog.Logger

	// Telemetry (nil when disabled for zero allocation)
	telemetryMode  TelemetryMode
	tokenTelemetry map[TokenType]*TokenTelemetry

	// Debug (nil when disabled for zero allocation)
	debugLevel  DebugLevel
	debugEvents []DebugEvent
}

// NewLexer creates a new lexer instance with optional configuration
func NewLexer(input string, opts ...LexerOpt) *Lexer {
	config := &LexerConfig{}
	for _, opt := range opts {
		opt(config)
	}

	lexer := &Lexer{
		telemetryMode: config.telemetry,
		debugLevel:    config.debug,
		logger:        config.logger,
	}

	if config.telemetry > TelemetryOff {
		lexer.tokenTelemetry = make(map[TokenType]*TokenTelemetry)
	}
	if config.debug > DebugOff {
		lexer.debugEvents = make([]DebugEvent, 0, 256)
	}

	lexer.Init(input)
	return lexer
}

// Tokenize lexes source in one call and returns the full token stream,
// always terminated by EOF, together with any lexical diagnostics.
func Tokenize(source string, opts ...LexerOpt) ([]Token, []diag.Diagnostic) {
	l := NewLexer(source, opts...)
	tokens := l.GetTokens()
	return tokens, l.Diagnostics()
}

// Init resets the lexer with new input (following Go scanner pattern)
func (l *Lexer) Init(input string) {
	l.input = input
	l.position = 0
	l.line = 1
	l.column = 1
	l.tokens = l.tokens[:0]
	l.tokenIndex = 0
	l.diagnostics = nil
	l.done = false

	if r, size := utf8.DecodeRuneInString(input); r == bom {
		l.position = size
	}

	for k := range l.tokenTelemetry {
		delete(l.tokenTelemetry, k)
	}
	if l.debugEvents != nil {
		l.debugEvents = l.debugEvents[:0]
	}
}

// Diagnostics returns the lexical diagnostics found so far.
func (l *Lexer) Diagnostics() []diag.Diagnostic {
	out := make([]diag.Diagnostic, len(l.diagnostics))
	copy(out, l.diagnostics)
	return out
}

// GetTokenTelemetry returns per-token type telemetry (production safe)
func (l *Lexer) GetTokenTelemetry() map[TokenType]*TokenTelemetry {
	if l.telemetryMode == TelemetryOff || l.tokenTelemetry == nil {
		return nil
	}

	result := make(map[TokenType]*TokenTelemetry, len(l.tokenTelemetry))
	for k, v := range l.tokenTelemetry {
		telemetryCopy := *v
		result[k] = &telemetryCopy
	}
	return result
}

// GetDebugEvents returns debug events (development only)
func (l *Lexer) GetDebugEvents() []DebugEvent {
	if l.debugLevel == DebugOff || l.debugEvents == nil {
		return nil
	}

	result := make([]DebugEvent, len(l.debugEvents))
	copy(result, l.debugEvents)
	return result
}

// NextToken returns the next token using streaming interface. Once EOF
// has been returned every further call returns EOF again.
func (l *Lexer) NextToken() Token {
	if l.tokenIndex < len(l.tokens) {
		token := l.tokens[l.tokenIndex]
		l.tokenIndex++
		return token
	}
	if l.done {
		return l.tokens[len(l.tokens)-1]
	}

	token := l.nextToken()
	l.tokens = append(l.tokens, token)
	l.tokenIndex++
	if token.Type == EOF {
		l.done = true
	}
	return token
}

// GetTokens returns all tokens using batch interface, including any
// already consumed through NextToken.
func (l *Lexer) GetTokens() []Token {
	for !l.done {
		l.NextToken()
	}
	l.tokenIndex = len(l.tokens)

	out := make([]Token, len(l.tokens))
	copy(out, l.tokens)
	return out
}

// nextToken returns the next token from the input (internal implementation)
func (l *Lexer) nextToken() Token {
	var start time.Time
	if l.telemetryMode >= TelemetryTiming {
		start = time.Now()
	}

	token := l.lexToken()

	if l.telemetryMode > TelemetryOff {
		var elapsed time.Duration
		if l.telemetryMode >= TelemetryTiming {
			elapsed = time.Since(start)
		}
		l.recordTokenTelemetry(token.Type, elapsed)
	}

	return token
}

// recordTokenTelemetry records per-token type telemetry (production safe)
func (l *Lexer) recordTokenTelemetry(tokenType TokenType, elapsed time.Duration) {
	telemetry, exists := l.tokenTelemetry[tokenType]
	if !exists {
		telemetry = &TokenTelemetry{Type: tokenType, MinTime: elapsed, MaxTime: elapsed}
		l.tokenTelemetry[tokenType] = telemetry
	}

	telemetry.Count++

	if l.telemetryMode >= TelemetryTiming {
		telemetry.TotalTime += elapsed
		telemetry.AvgTime = telemetry.TotalTime / time.Duration(telemetry.Count)
		if elapsed < telemetry.MinTime {
			telemetry.MinTime = elapsed
		}
		if elapsed > telemetry.MaxTime {
			telemetry.MaxTime = elapsed
		}
	}
}

// recordDebugEvent records debug events when debug tracing is enabled
func (l *Lexer) recordDebugEvent(event, context string) {
	if l.debugLevel == DebugOff || l.debugEvents == nil {
		return
	}

	l.debugEvents = append(l.debugEvents, DebugEvent{
		Timestamp: time.Now(),
		Event:     event,
		Position:  l.pos(),
		Context:   context,
	})
}

// lexToken performs the actual tokenization work
func (l *Lexer) lexToken() Token {
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("enter_lexToken", "starting tokenization")
	}

	l.skipTrivia()

	start := l.pos()
	if l.position >= len(l.input) {
		if l.debugLevel > DebugOff {
			l.recordDebugEvent("found_EOF", "end of input")
		}
		return Token{Type: EOF, Position: start}
	}

	ch := l.current()
	if l.debugLevel >= DebugDetailed {
		l.recordDebugEvent("current_char", string(ch))
	}

	switch {
	case isIdentStart(ch):
		return l.lexIdentifier(start)
	case isDigit(ch):
		return l.lexNumber(start)
	case ch == '"':
		return l.lexString(start)
	case ch == '\'':
		return l.lexChar(start)
	}

	return l.lexSymbol(start, ch)
}

// skipTrivia skips whitespace, newlines and comments.
func (l *Lexer) skipTrivia() {
	for l.position < len(l.input) {
		ch := l.current()
		switch {
		case ch == '\n' || ch == ' ' || ch == '\t' || ch == '\r' || unicode.IsSpace(ch):
			l.advance()
		case ch == '#':
			l.skipToEOL()
		case ch == '/' && l.peek() == '/':
			l.skipToEOL()
		default:
			return
		}
	}
}

func (l *Lexer) lexIdentifier(start Position) Token {
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("enter_lexIdentifier", "")
	}

	begin := l.position
	for l.position < len(l.input) && isIdentPart(l.current()) {
		l.advance()
	}
	text := l.input[begin:l.position]

	return Token{Type: LookupKeyword(text), Text: text, Position: start}
}

// lexNumber reads digits with an optional fractional part. A trailing
// dot not followed by a digit is left for the next token.
func (l *Lexer) lexNumber(start Position) Token {
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("enter_lexNumber", "")
	}

	begin := l.position
	l.readDigits()

	typ := INT_LIT
	if l.position < len(l.input) && l.current() == '.' && isDigit(l.peek()) {
		typ = REAL_LIT
		l.advance()
		l.readDigits()
	}

	return Token{Type: typ, Text: l.input[begin:l.position], Position: start}
}

func (l *Lexer) readDigits() {
	for l.position < len(l.input) && isDigit(l.current()) {
		l.advance()
	}
}

// lexString reads a double-quoted string. Strings may not span lines.
func (l *Lexer) lexString(start Position) Token {
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("enter_lexString", "")
	}

	begin := l.position
	l.advance() // opening quote

	var value strings.Builder
	for l.position < len(l.input) {
		ch := l.current()
		switch ch {
		case '"':
			l.advance()
			return Token{Type: STRING_LIT, Text: l.input[begin:l.position], Value: value.String(), Position: start}
		case '\n':
			return l.invalid(start, begin, diag.CodeUnterminatedString, "Unterminated string literal")
		case '\\':
			l.advance()
			if l.position >= len(l.input) || l.current() == '\n' {
				return l.invalid(start, begin, diag.CodeUnterminatedString, "Unterminated string literal")
			}
			value.WriteRune(unescape(l.current()))
			l.advance()
		default:
			value.WriteRune(ch)
			l.advance()
		}
	}

	return l.invalid(start, begin, diag.CodeUnterminatedString, "Unterminated string literal")
}

// lexChar reads a single-quoted character literal holding exactly one
// character or escape.
func (l *Lexer) lexChar(start Position) Token {
	begin := l.position
	l.advance() // opening quote

	if l.position >= len(l.input) || l.current() == '\n' || l.current() == '\'' {
		return l.invalid(start, begin, diag.CodeInvalidChar, "Character literal must contain exactly one character")
	}

	ch := l.current()
	l.advance()
	if ch == '\\' && l.position < len(l.input) && l.current() != '\n' {
		ch = unescape(l.current())
		l.advance()
	}

	if l.position >= len(l.input) || l.current() != '\'' {
		return l.invalid(start, begin, diag.CodeInvalidChar, "Character literal must contain exactly one character")
	}
	l.advance()

	return Token{Type: CHAR_LIT, Text: l.input[begin:l.position], Value: string(ch), Position: start}
}

func unescape(ch rune) rune {
	switch ch {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	default:
		return ch // \" \\ \' and anything else map to themselves
	}
}

func (l *Lexer) lexSymbol(start Position, ch rune) Token {
	begin := l.position
	l.advance()
	next := rune(0)
	if l.position < len(l.input) {
		next = l.current()
	}

	typ := INVALID
	switch ch {
	case '←':
		typ = ASSIGN
	case '≠':
		typ = NOT_EQ
	case '≤':
		typ = LT_EQ
	case '≥':
		typ = GT_EQ
	case '=':
		typ = EQ
	case '<':
		switch next {
		case '-':
			l.advance()
			typ = ASSIGN
		case '=':
			l.advance()
			typ = LT_EQ
		case '>':
			l.advance()
			typ = NOT_EQ
		default:
			typ = LT
		}
	case '>':
		typ = GT
		if next == '=' {
			l.advance()
			typ = GT_EQ
		}
	case '+':
		typ = PLUS
	case '-':
		typ = MINUS
	case '*':
		typ = MULTIPLY
	case '/':
		typ = DIVIDE
	case '&':
		typ = AMPERSAND
	case '(':
		typ = LPAREN
	case ')':
		typ = RPAREN
	case '[':
		typ = LSQUARE
	case ']':
		typ = RSQUARE
	case ',':
		typ = COMMA
	case ':':
		typ = COLON
	}

	if typ == INVALID {
		return l.invalid(start, begin, diag.CodeInvalidCharacter, "Invalid character '%c'", ch)
	}
	return Token{Type: typ, Text: l.input[begin:l.position], Position: start}
}

// invalid records a lexical diagnostic, consumes the rest of the line
// and returns an INVALID token covering the offending text.
func (l *Lexer) invalid(start Position, begin int, code diag.Code, format string, args ...any) Token {
	d := diag.Lexical(start.Line, start.Column, code, format, args...)
	l.diagnostics = append(l.diagnostics, d)
	if l.logger != nil {
		l.logger.Debug("lexical error", "line", start.Line, "column", start.Column, "code", string(code))
	}
	if l.debugLevel > DebugOff {
		l.recordDebugEvent("invalid_token", string(code))
	}

	l.skipToEOL()
	text := strings.TrimRight(l.input[begin:l.position], "\r")
	return Token{Type: INVALID, Text: text, Position: start}
}

func (l *Lexer) skipToEOL() {
	for l.position < len(l.input) && l.current() != '\n' {
		l.advance()
	}
}

func (l *Lexer) pos() Position {
	return Position{Line: l.line, Column: l.column, Offset: l.position}
}

func (l *Lexer) current() rune {
	r, _ := utf8.DecodeRuneInString(l.input[l.position:])
	return r
}

func (l *Lexer) peek() rune {
	_, size := utf8.DecodeRuneInString(l.input[l.position:])
	if l.position+size >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.position+size:])
	return r
}

// advance moves past the current rune, keeping line and column in step.
func (l *Lexer) advance() {
	r, size := utf8.DecodeRuneInString(l.input[l.position:])
	l.position += size
	if r == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

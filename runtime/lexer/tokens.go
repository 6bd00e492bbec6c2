package lexer

import "sort"

// TokenType identifies a lexical token.
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	INVALID

	// Literals
	IDENTIFIER // total, LENGTH, Average
	INT_LIT    // 42
	REAL_LIT   // 3.14
	STRING_LIT // "text"
	CHAR_LIT   // 'A'

	// Constants
	TRUE
	FALSE
	NULL

	// Type names
	TYPE_INTEGER
	TYPE_REAL
	TYPE_STRING
	TYPE_BOOLEAN
	TYPE_CHAR
	ARRAY

	// Declarations
	DECLARE
	CONSTANT
	OF

	// Control flow
	IF
	THEN
	ELSE
	ENDIF
	WHILE
	DO
	ENDWHILE
	FOR
	TO
	STEP
	NEXT
	ENDFOR
	REPEAT
	UNTIL
	CASE
	OTHERWISE
	ENDCASE
	BREAK
	CONTINUE

	// Routines
	FUNCTION
	RETURNS
	ENDFUNCTION
	PROCEDURE
	ENDPROCEDURE
	CALL
	BYREF
	BYVAL
	RETURN

	// I/O
	OUTPUT
	INPUT

	// Word operators
	AND
	OR
	NOT
	MOD
	DIV

	// Symbols
	ASSIGN    // ← or <-
	EQ        // =
	NOT_EQ    // ≠ or <>
	LT        // <
	LT_EQ     // ≤ or <=
	GT        // >
	GT_EQ     // ≥ or >=
	PLUS      // +
	MINUS     // -
	MULTIPLY  // *
	DIVIDE    // /
	AMPERSAND // &
	LPAREN    // (
	RPAREN    // )
	LSQUARE   // [
	RSQUARE   // ]
	COMMA     // ,
	COLON     // :

	tokenTypeCount
)

// Kind groups token types into the categories editors colour by.
type Kind int

const (
	KindEOF Kind = iota
	KindInvalid
	KindIdentifier
	KindKeyword
	KindTypeName
	KindConstant
	KindNumber
	KindString
	KindOperator
)

var kindNames = [...]string{
	KindEOF:        "eof",
	KindInvalid:    "invalid",
	KindIdentifier: "identifier",
	KindKeyword:    "keyword",
	KindTypeName:   "type",
	KindConstant:   "constant",
	KindNumber:     "number",
	KindString:     "string",
	KindOperator:   "operator",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Token is an immutable lexical token.
type Token struct {
	Type     TokenType
	Text     string // lexeme exactly as written
	Value    string // decoded contents of STRING_LIT and CHAR_LIT
	Position Position
}

// String returns the lexeme (for testing and debugging).
func (t Token) String() string {
	return t.Text
}

// Kind returns the token's category.
func (t Token) Kind() Kind {
	return t.Type.Kind()
}

// Position is a location in source text.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column; a tab or any non-ASCII rune counts as one
	Offset int // 0-based byte offset
}

// keywords maps every reserved word to its token type. Matching is
// case-sensitive. The table is built once and never mutated.
var keywords = map[string]TokenType{
	"TRUE":         TRUE,
	"FALSE":        FALSE,
	"NULL":         NULL,
	"INTEGER":      TYPE_INTEGER,
	"REAL":         TYPE_REAL,
	"STRING":       TYPE_STRING,
	"BOOLEAN":      TYPE_BOOLEAN,
	"CHAR":         TYPE_CHAR,
	"ARRAY":        ARRAY,
	"DECLARE":      DECLARE,
	"CONSTANT":     CONSTANT,
	"OF":           OF,
	"IF":           IF,
	"THEN":         THEN,
	"ELSE":         ELSE,
	"ENDIF":        ENDIF,
	"WHILE":        WHILE,
	"DO":           DO,
	"ENDWHILE":     ENDWHILE,
	"FOR":          FOR,
	"TO":           TO,
	"STEP":         STEP,
	"NEXT":         NEXT,
	"ENDFOR":       ENDFOR,
	"REPEAT":       REPEAT,
	"UNTIL":        UNTIL,
	"CASE":         CASE,
	"OTHERWISE":    OTHERWISE,
	"ENDCASE":      ENDCASE,
	"BREAK":        BREAK,
	"CONTINUE":     CONTINUE,
	"FUNCTION":     FUNCTION,
	"RETURNS":      RETURNS,
	"ENDFUNCTION":  ENDFUNCTION,
	"PROCEDURE":    PROCEDURE,
	"ENDPROCEDURE": ENDPROCEDURE,
	"CALL":         CALL,
	"BYREF":        BYREF,
	"BYVAL":        BYVAL,
	"RETURN":       RETURN,
	"OUTPUT":       OUTPUT,
	"INPUT":        INPUT,
	"AND":          AND,
	"OR":           OR,
	"NOT":          NOT,
	"MOD":          MOD,
	"DIV":          DIV,
}

// keywordList is the sorted set of reserved words, used for suggestions.
var keywordList = func() []string {
	out := make([]string, 0, len(keywords))
	for k := range keywords {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}()

// tokenNames holds the display spelling of every token type.
var tokenNames = func() [tokenTypeCount]string {
	var names [tokenTypeCount]string
	for word, typ := range keywords {
		names[typ] = word
	}
	names[EOF] = "end of file"
	names[INVALID] = "invalid token"
	names[IDENTIFIER] = "identifier"
	names[INT_LIT] = "integer literal"
	names[REAL_LIT] = "real literal"
	names[STRING_LIT] = "string literal"
	names[CHAR_LIT] = "character literal"
	names[ASSIGN] = "←"
	names[EQ] = "="
	names[NOT_EQ] = "≠"
	names[LT] = "<"
	names[LT_EQ] = "≤"
	names[GT] = ">"
	names[GT_EQ] = "≥"
	names[PLUS] = "+"
	names[MINUS] = "-"
	names[MULTIPLY] = "*"
	names[DIVIDE] = "/"
	names[AMPERSAND] = "&"
	names[LPAREN] = "("
	names[RPAREN] = ")"
	names[LSQUARE] = "["
	names[RSQUARE] = "]"
	names[COMMA] = ","
	names[COLON] = ":"
	return names
}()

// String returns the keyword or symbol for t, or a description for
// literal classes.
func (t TokenType) String() string {
	if t < 0 || t >= tokenTypeCount {
		return "unknown"
	}
	return tokenNames[t]
}

// Kind returns the category of t.
func (t TokenType) Kind() Kind {
	switch {
	case t == EOF:
		return KindEOF
	case t == INVALID:
		return KindInvalid
	case t == IDENTIFIER:
		return KindIdentifier
	case t == INT_LIT || t == REAL_LIT:
		return KindNumber
	case t == STRING_LIT || t == CHAR_LIT:
		return KindString
	case t == TRUE || t == FALSE || t == NULL:
		return KindConstant
	case t >= TYPE_INTEGER && t <= ARRAY:
		return KindTypeName
	case t >= AND && t <= DIV:
		return KindOperator
	case t >= ASSIGN && t < tokenTypeCount:
		return KindOperator
	default:
		return KindKeyword
	}
}

// LookupKeyword returns the token type for a reserved word, or IDENTIFIER.
func LookupKeyword(word string) TokenType {
	if t, ok := keywords[word]; ok {
		return t
	}
	return IDENTIFIER
}

// Keywords returns the reserved words in sorted order.
func Keywords() []string {
	out := make([]string, len(keywordList))
	copy(out, keywordList)
	return out
}

// IsStatementStart reports whether t can only begin a statement. Parser
// error recovery resynchronises on these.
func (t TokenType) IsStatementStart() bool {
	switch t {
	case DECLARE, CONSTANT, IF, WHILE, FOR, REPEAT, CASE, FUNCTION, PROCEDURE,
		CALL, RETURN, OUTPUT, INPUT, BREAK, CONTINUE:
		return true
	}
	return false
}

// IsBlockEnd reports whether t closes or splits a block.
func (t TokenType) IsBlockEnd() bool {
	switch t {
	case ELSE, ENDIF, ENDWHILE, NEXT, ENDFOR, UNTIL, OTHERWISE, ENDCASE,
		ENDFUNCTION, ENDPROCEDURE, EOF:
		return true
	}
	return false
}

package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opal-lang/pseudo/core/diag"
)

// tokenExpectation represents an expected token for testing
type tokenExpectation struct {
	Type   TokenType
	Text   string
	Line   int
	Column int
}

// assertTokens compares actual tokens with expected, EOF excluded
func assertTokens(t *testing.T, input string, expected []tokenExpectation) {
	t.Helper()

	tokens, diags := Tokenize(input)
	require.Empty(t, diags, "unexpected lexical diagnostics")
	require.NotEmpty(t, tokens)
	assert.Equal(t, EOF, tokens[len(tokens)-1].Type, "stream must end in EOF")

	var actual []tokenExpectation
	for _, token := range tokens[:len(tokens)-1] {
		actual = append(actual, tokenExpectation{
			Type:   token.Type,
			Text:   token.Text,
			Line:   token.Position.Line,
			Column: token.Position.Column,
		})
	}

	if diff := cmp.Diff(expected, actual); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestDeclarationAndAssignment(t *testing.T) {
	assertTokens(t, "DECLARE total : INTEGER\ntotal ← 10", []tokenExpectation{
		{DECLARE, "DECLARE", 1, 1},
		{IDENTIFIER, "total", 1, 9},
		{COLON, ":", 1, 15},
		{TYPE_INTEGER, "INTEGER", 1, 17},
		{IDENTIFIER, "total", 2, 1},
		{ASSIGN, "←", 2, 7},
		{INT_LIT, "10", 2, 9},
	})
}

func TestOperators(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"←", ASSIGN},
		{"<-", ASSIGN},
		{"=", EQ},
		{"≠", NOT_EQ},
		{"<>", NOT_EQ},
		{"<", LT},
		{"≤", LT_EQ},
		{"<=", LT_EQ},
		{">", GT},
		{"≥", GT_EQ},
		{">=", GT_EQ},
		{"+", PLUS},
		{"-", MINUS},
		{"*", MULTIPLY},
		{"/", DIVIDE},
		{"&", AMPERSAND},
		{"(", LPAREN},
		{")", RPAREN},
		{"[", LSQUARE},
		{"]", RSQUARE},
		{",", COMMA},
		{":", COLON},
		{"MOD", MOD},
		{"DIV", DIV},
		{"AND", AND},
		{"OR", OR},
		{"NOT", NOT},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens, diags := Tokenize(tt.input)
			require.Empty(t, diags)
			require.Len(t, tokens, 2)
			assert.Equal(t, tt.want, tokens[0].Type)
			assert.Equal(t, tt.input, tokens[0].Text)
		})
	}
}

func TestLiterals(t *testing.T) {
	tokens, diags := Tokenize(`42 3.14 "hi\tthere" 'A' '\'' TRUE FALSE NULL`)
	require.Empty(t, diags)

	got := make([]TokenType, 0, len(tokens))
	for _, tok := range tokens {
		got = append(got, tok.Type)
	}
	assert.Equal(t, []TokenType{INT_LIT, REAL_LIT, STRING_LIT, CHAR_LIT, CHAR_LIT, TRUE, FALSE, NULL, EOF}, got)
	assert.Equal(t, "hi\tthere", tokens[2].Value)
	assert.Equal(t, `"hi\tthere"`, tokens[2].Text)
	assert.Equal(t, "A", tokens[3].Value)
	assert.Equal(t, "'", tokens[4].Value)
}

func TestTrailingDotIsNotReal(t *testing.T) {
	tokens, diags := Tokenize("7.")
	assert.Equal(t, INT_LIT, tokens[0].Type)
	require.Len(t, diags, 1, "the lone dot is not a symbol")
	assert.Equal(t, diag.CodeInvalidCharacter, diags[0].Code)
}

func TestCommentsAreSkipped(t *testing.T) {
	assertTokens(t, "// header\nOUTPUT 1 # trailing\n  # indented\nOUTPUT 2", []tokenExpectation{
		{OUTPUT, "OUTPUT", 2, 1},
		{INT_LIT, "1", 2, 8},
		{OUTPUT, "OUTPUT", 4, 1},
		{INT_LIT, "2", 4, 8},
	})
}

func TestKeywordsAreCaseSensitive(t *testing.T) {
	tokens, diags := Tokenize("endif ENDIF EndIf")
	require.Empty(t, diags)
	assert.Equal(t, IDENTIFIER, tokens[0].Type)
	assert.Equal(t, ENDIF, tokens[1].Type)
	assert.Equal(t, IDENTIFIER, tokens[2].Type)
}

func TestColumnsCountRunes(t *testing.T) {
	assertTokens(t, "x\t← \"é\" & y", []tokenExpectation{
		{IDENTIFIER, "x", 1, 1},
		{ASSIGN, "←", 1, 3},
		{STRING_LIT, `"é"`, 1, 5},
		{AMPERSAND, "&", 1, 9},
		{IDENTIFIER, "y", 1, 11},
	})
}

func TestByteOrderMarkSkipped(t *testing.T) {
	assertTokens(t, "\uFEFFOUTPUT 1", []tokenExpectation{
		{OUTPUT, "OUTPUT", 1, 1},
		{INT_LIT, "1", 1, 8},
	})
}

func TestLexicalErrorsResumeNextLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  diag.Code
		line  int
		col   int
	}{
		{"unterminated string", "OUTPUT \"abc\nOUTPUT 2", diag.CodeUnterminatedString, 1, 8},
		{"invalid character", "x ← 5 $ 3\nOUTPUT 2", diag.CodeInvalidCharacter, 1, 7},
		{"empty char", "c ← ''\nOUTPUT 2", diag.CodeInvalidChar, 1, 5},
		{"long char", "c ← 'ab'\nOUTPUT 2", diag.CodeInvalidChar, 1, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, diags := Tokenize(tt.input)
			require.Len(t, diags, 1)
			assert.Equal(t, tt.code, diags[0].Code)
			assert.Equal(t, tt.line, diags[0].Line)
			assert.Equal(t, tt.col, diags[0].Column)
			assert.Contains(t, diags[0].Message, "Lexical Error")

			// Scanning picks up again on line 2.
			n := len(tokens)
			require.GreaterOrEqual(t, n, 3)
			assert.Equal(t, OUTPUT, tokens[n-3].Type)
			assert.Equal(t, 2, tokens[n-3].Position.Line)
			assert.Equal(t, INT_LIT, tokens[n-2].Type)
			assert.Equal(t, EOF, tokens[n-1].Type)
		})
	}
}

func TestStreamingMatchesBatch(t *testing.T) {
	src := "FOR i ← 1 TO 3\n  OUTPUT i\nNEXT i"
	batch, _ := Tokenize(src)

	l := NewLexer(src)
	var streamed []Token
	for {
		tok := l.NextToken()
		streamed = append(streamed, tok)
		if tok.Type == EOF {
			break
		}
	}
	assert.Equal(t, batch, streamed)
	assert.Equal(t, EOF, l.NextToken().Type, "EOF repeats")
}

func TestTelemetryCountsTokens(t *testing.T) {
	l := NewLexer("OUTPUT 1, 2, 3", WithTelemetryBasic())
	l.GetTokens()

	tel := l.GetTokenTelemetry()
	require.NotNil(t, tel)
	assert.Equal(t, 3, tel[INT_LIT].Count)
	assert.Equal(t, 2, tel[COMMA].Count)
	assert.Equal(t, 1, tel[OUTPUT].Count)

	assert.Nil(t, NewLexer("x").GetTokenTelemetry(), "telemetry off by default")
}

func TestDebugEvents(t *testing.T) {
	l := NewLexer("x ← 1", WithDebugPaths())
	l.GetTokens()
	events := l.GetDebugEvents()
	require.NotEmpty(t, events)
	assert.Equal(t, "enter_lexToken", events[0].Event)
}

func TestTokenKinds(t *testing.T) {
	tests := []struct {
		typ  TokenType
		want Kind
	}{
		{IF, KindKeyword},
		{ENDPROCEDURE, KindKeyword},
		{IDENTIFIER, KindIdentifier},
		{TYPE_REAL, KindTypeName},
		{ARRAY, KindTypeName},
		{TRUE, KindConstant},
		{INT_LIT, KindNumber},
		{CHAR_LIT, KindString},
		{MOD, KindOperator},
		{ASSIGN, KindOperator},
		{COLON, KindOperator},
		{EOF, KindEOF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.Kind(), tt.typ.String())
	}
}

func TestKeywordsSorted(t *testing.T) {
	kw := Keywords()
	assert.Contains(t, kw, "ENDIF")
	assert.IsIncreasing(t, kw)
	kw[0] = "mutated"
	assert.NotEqual(t, "mutated", Keywords()[0], "Keywords returns a copy")
}

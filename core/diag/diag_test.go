package diag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsPrefixLine(t *testing.T) {
	tests := []struct {
		name string
		got  Diagnostic
		want string
	}{
		{"lexical", Lexical(2, 7, CodeUnterminatedString, "Unterminated string literal"), "Line 2: Lexical Error - Unterminated string literal"},
		{"syntax", Syntax(4, 1, CodeMissingTerminator, "Expected '%s' after %s", "ENDIF", "IF statement"), "Line 4: Syntax Error - Expected 'ENDIF' after IF statement"},
		{"semantic", Semantic(1, 8, SeverityError, CodeUndeclaredVariable, "Variable '%s' used before declaration", "x"), "Line 1: Variable 'x' used before declaration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got.Message)
			assert.Equal(t, tt.want, tt.got.Error())
		})
	}
}

func TestBagSplitsBySeverity(t *testing.T) {
	var b Bag
	b.Add(Semantic(3, 1, SeverityWarning, CodeUnusedVariable, "Variable 'y' is declared but never used"))
	b.Add(Semantic(1, 1, SeverityError, CodeUndeclaredVariable, "Variable 'x' used before declaration"))
	b.Add(Syntax(2, 1, CodeSyntax, "Unexpected ')'"))

	require.True(t, b.HasErrors())
	assert.Equal(t, 2, b.ErrorCount())
	assert.Equal(t, 1, b.WarningCount())
	assert.Equal(t, 3, b.Len())

	errs := b.Errors()
	require.Len(t, errs, 2)
	assert.Equal(t, CodeUndeclaredVariable, errs[0].Code)
	assert.Equal(t, CodeSyntax, errs[1].Code)

	all := b.All()
	SortByPosition(all)
	lines := []int{all[0].Line, all[1].Line, all[2].Line}
	if diff := cmp.Diff([]int{1, 2, 3}, lines); diff != "" {
		t.Errorf("sorted lines mismatch (-want +got):\n%s", diff)
	}
}

func TestSuggest(t *testing.T) {
	names := []string{"total", "count", "average"}
	tests := []struct {
		target string
		want   string
	}{
		{"totl", "total"},
		{"cuont", "count"},
		{"zzzzzz", ""},
		{"x", ""},
		{"endif", "ENDIF"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			candidates := names
			if tt.want == "ENDIF" {
				candidates = []string{"ENDIF", "ENDWHILE", "ENDFOR"}
			}
			assert.Equal(t, tt.want, Suggest(tt.target, candidates))
		})
	}

	assert.Equal(t, "did you mean 'total'?", DidYouMean("totl", names))
	assert.Equal(t, "", DidYouMean("total", names))
}

func TestLineMapRender(t *testing.T) {
	src := "DECLARE x : INTEGER\r\nIF x > 1 THEN\n    OUTPUT y\n"
	m := NewLineMap(src)

	assert.Equal(t, 4, m.LineCount())
	line, ok := m.Line(1)
	require.True(t, ok)
	assert.Equal(t, "DECLARE x : INTEGER", line)
	_, ok = m.Line(9)
	assert.False(t, ok)
	assert.Equal(t, 4, m.Clamp(12))

	d := Semantic(3, 12, SeverityError, CodeUndeclaredVariable, "Variable 'y' used before declaration").WithHint("did you mean 'x'?")
	want := "Line 3: Variable 'y' used before declaration\n" +
		"  --> 3:12\n" +
		"   |\n" +
		" 3 |     OUTPUT y\n" +
		"   |            ^\n" +
		"   = hint: did you mean 'x'?\n"
	if diff := cmp.Diff(want, m.Render(d)); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opal-lang/pseudo/runtime/parser"
)

func recursion(t *testing.T, src string) []*RecursionError {
	t.Helper()
	tree := parser.Parse(src)
	require.False(t, tree.HasErrors(), "parse errors: %v", tree.Diagnostics())
	return FindUnboundedRecursion(tree.Program)
}

func TestFindUnboundedRecursion_Direct(t *testing.T) {
	errs := recursion(t, `PROCEDURE Loop()
    OUTPUT 1
    CALL Loop()
ENDPROCEDURE`)

	require.Len(t, errs, 1)
	assert.Equal(t, "Loop", errs[0].Routine)
	assert.Equal(t, []string{"Loop", "Loop"}, errs[0].Cycle)
	assert.Equal(t, 1, errs[0].Pos.Line)
	assert.Contains(t, errs[0].Message, "Loop -> Loop")
}

func TestFindUnboundedRecursion_Mutual(t *testing.T) {
	errs := recursion(t, `PROCEDURE A()
    CALL B()
ENDPROCEDURE
PROCEDURE B()
    OUTPUT 1
    CALL A()
ENDPROCEDURE`)

	require.Len(t, errs, 1, "one report per cycle")
	assert.Equal(t, []string{"A", "B", "A"}, errs[0].Cycle)
	assert.Equal(t, "Routine 'A' always calls itself (A -> B -> A) and can never finish", errs[0].Message)
}

func TestFindUnboundedRecursion_RepeatBodyRunsOnce(t *testing.T) {
	errs := recursion(t, `PROCEDURE R()
    REPEAT
        CALL R()
    UNTIL TRUE
ENDPROCEDURE`)

	require.Len(t, errs, 1)
	assert.Equal(t, "R", errs[0].Routine)
}

func TestFindUnboundedRecursion_Guarded(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"return before call", `FUNCTION Fact(n : INTEGER) RETURNS INTEGER
    IF n <= 1 THEN
        RETURN 1
    ENDIF
    RETURN n * Fact(n - 1)
ENDFUNCTION`},
		{"call inside loop body", `PROCEDURE W(n : INTEGER)
    WHILE n > 0
        CALL W(n - 1)
    ENDWHILE
ENDPROCEDURE`},
		{"short circuit", `FUNCTION F(n : INTEGER) RETURNS BOOLEAN
    RETURN n = 0 OR F(n - 1)
ENDFUNCTION`},
		{"call inside IF", `PROCEDURE Count(n : INTEGER)
    IF n > 0 THEN
        CALL Count(n - 1)
    ENDIF
ENDPROCEDURE`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, recursion(t, tt.src))
		})
	}
}

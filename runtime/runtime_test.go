package runtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/runtime/executor"
)

const averageProgram = `// average of three marks
DECLARE marks : ARRAY[1:3] OF INTEGER
DECLARE total : INTEGER
marks[1] ← 70
marks[2] ← 80
marks[3] ← 90
total ← 0
FOR i ← 1 TO 3
    total ← total + marks[i]
NEXT i
OUTPUT "Average:", total / 3
`

func TestValidateValidProgram(t *testing.T) {
	res := Validate(averageProgram)

	assert.True(t, res.IsValid)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, res.Program)
}

func TestValidateMergesPhases(t *testing.T) {
	src := `DECLARE x : INTEGER
x ← "text"
x ← 1 @
OUTPUT y`

	res := Validate(src)
	require.False(t, res.IsValid)

	var lines []int
	var codes []diag.Code
	for _, d := range res.Errors {
		lines = append(lines, d.Line)
		codes = append(codes, d.Code)
	}
	if diff := cmp.Diff([]int{2, 3, 4}, lines); diff != "" {
		t.Errorf("error lines mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, codes, diag.CodeInvalidCharacter)
	assert.Contains(t, codes, diag.CodeTypeMismatch)
	assert.Contains(t, codes, diag.CodeUndeclaredVariable)
}

func TestValidateMissingTerminator(t *testing.T) {
	res := Validate("WHILE TRUE DO\n  OUTPUT 1\n\n")

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Line 2: Syntax Error - Expected 'ENDWHILE' after WHILE loop", res.Errors[0].Message)
	assert.Equal(t, diag.CodeMissingTerminator, res.Errors[0].Code)
}

func TestValidationResultJSON(t *testing.T) {
	b, err := json.Marshal(Validate("OUTPUT y"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, false, got["isValid"])
	assert.Equal(t, []any{}, got["warnings"])

	errs := got["errors"].([]any)
	require.Len(t, errs, 1)
	first := errs[0].(map[string]any)
	assert.Equal(t, float64(1), first["lineNumber"])
	assert.Equal(t, "UNDECLARED_VARIABLE", first["code"])
	assert.Equal(t, "error", first["severity"])
}

func TestExecute(t *testing.T) {
	res, err := Execute(context.Background(), averageProgram, executor.Config{})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, []string{"Average: 80"}, res.Outputs())
}

func TestExecuteRefusesInvalidProgram(t *testing.T) {
	var streamed []executor.Event
	config := executor.Config{OnEvent: func(e executor.Event) { streamed = append(streamed, e) }}

	res, err := Execute(context.Background(), "OUTPUT 1\nOUTPUT y", config)
	require.NoError(t, err)

	want := []executor.Event{
		{Kind: executor.EventError, Text: "Line 2: Variable 'y' used before declaration", Line: 2},
	}
	assert.False(t, res.Success)
	if diff := cmp.Diff(want, res.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want, streamed)
}

func TestExecuteRuntimeError(t *testing.T) {
	res, err := Execute(context.Background(), "DECLARE d : INTEGER\nOUTPUT 10 DIV d", executor.Config{})
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.NotEmpty(t, res.Events)
	assert.Equal(t, "Line 2: Runtime Error - Division by zero", res.Events[len(res.Events)-1].Text)
}

func TestEngineCachesValidation(t *testing.T) {
	e := NewEngine()

	first := e.Validate("OUTPUT y")
	first.Errors[0].Message = "mutated"
	second := e.Validate("OUTPUT y")

	assert.Equal(t, 1, e.CacheLen())
	assert.Equal(t, "Line 1: Variable 'y' used before declaration", second.Errors[0].Message)
	assert.Same(t, first.Program, second.Program, "parsed tree is shared")
}

func TestEngineCacheEviction(t *testing.T) {
	e := NewEngine(WithCacheSize(2))
	e.Validate("OUTPUT 1")
	e.Validate("OUTPUT 2")
	e.Validate("OUTPUT 3")

	assert.Equal(t, 1, e.CacheLen())
}

func TestEngineWithoutCache(t *testing.T) {
	e := NewEngine(WithCacheSize(0))
	res, err := e.Execute(context.Background(), "OUTPUT 1", executor.Config{})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 0, e.CacheLen())
}

func TestEngineConcurrentExecute(t *testing.T) {
	e := NewEngine()
	var wg sync.WaitGroup
	outputs := make([][]string, 16)
	for i := range outputs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Execute(context.Background(), averageProgram, executor.Config{})
			if err == nil {
				outputs[i] = res.Outputs()
			}
		}()
	}
	wg.Wait()

	for _, out := range outputs {
		assert.Equal(t, []string{"Average: 80"}, out)
	}
	assert.Equal(t, 1, e.CacheLen())
}

func TestHashSourceIsStable(t *testing.T) {
	assert.Equal(t, hashSource("OUTPUT 1"), hashSource("OUTPUT 1"))
	assert.NotEqual(t, hashSource("OUTPUT 1"), hashSource("OUTPUT 2"))
	assert.Len(t, hashSource(""), 64)
}

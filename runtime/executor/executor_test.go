package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/runtime/parser"
)

func run(t *testing.T, src string, config Config) *ExecutionResult {
	t.Helper()
	tree := parser.Parse(src)
	require.False(t, tree.HasErrors(), "parse errors: %v", tree.Diagnostics())
	res, err := Execute(context.Background(), tree.Program, config)
	require.NoError(t, err)
	return res
}

func TestOutputs(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{"real division", "OUTPUT 10 / 4", []string{"2.5"}},
		{"integer division", "OUTPUT 10 DIV 4", []string{"2"}},
		{"remainder", "OUTPUT 10 MOD 4", []string{"2"}},
		{"precedence", "OUTPUT 2 + 3 * 4", []string{"14"}},
		{"mixed arithmetic is REAL", "OUTPUT 1 + 0.5", []string{"1.5"}},
		{"concatenation", `OUTPUT "total: " & 3`, []string{"total: 3"}},
		{"comparison", "OUTPUT 3 > 2, 2 <> 2", []string{"TRUE FALSE"}},
		{"short circuit", "OUTPUT FALSE AND (1 DIV 0 = 0)", []string{"FALSE"}},
		{"for loop", "FOR i = 1 TO 3\n    OUTPUT i\nENDFOR", []string{"1", "2", "3"}},
		{"for step down", "FOR i ← 5 TO 1 STEP -2\n    OUTPUT i\nNEXT i", []string{"5", "3", "1"}},
		{"for real step", "FOR x ← 0 TO 1 STEP 0.5\n    OUTPUT x\nNEXT x", []string{"0", "0.5", "1"}},
		{"empty for range", "FOR i ← 3 TO 1\n    OUTPUT i\nNEXT i", nil},
		{"repeat runs once", "REPEAT\n    OUTPUT 1\nUNTIL TRUE", []string{"1"}},
		{
			name: "while with break",
			src: `DECLARE n : INTEGER
n ← 0
WHILE TRUE DO
    n ← n + 1
    IF n = 3 THEN
        BREAK
    ENDIF
ENDWHILE
OUTPUT n`,
			want: []string{"3"},
		},
		{
			name: "continue skips",
			src: `FOR i ← 1 TO 4
    IF i MOD 2 = 0 THEN
        CONTINUE
    ENDIF
    OUTPUT i
NEXT i`,
			want: []string{"1", "3"},
		},
		{
			name: "case ranges",
			src: `DECLARE g : INTEGER
g ← 75
CASE OF g
    90 TO 100 : OUTPUT "A"
    70 TO 89 : OUTPUT "B"
    OTHERWISE : OUTPUT "C"
ENDCASE`,
			want: []string{"B"},
		},
		{
			name: "recursion",
			src: `FUNCTION Fact(n : INTEGER) RETURNS INTEGER
    IF n <= 1 THEN
        RETURN 1
    ENDIF
    RETURN n * Fact(n - 1)
ENDFUNCTION
OUTPUT Fact(5)`,
			want: []string{"120"},
		},
		{
			name: "BYREF swaps",
			src: `PROCEDURE Swap(BYREF a : INTEGER, BYREF b : INTEGER)
    DECLARE t : INTEGER
    t ← a
    a ← b
    b ← t
ENDPROCEDURE
DECLARE x : INTEGER
DECLARE y : INTEGER
x ← 1
y ← 2
CALL Swap(x, y)
OUTPUT x, y`,
			want: []string{"2 1"},
		},
		{
			name: "arrays pass by value",
			src: `PROCEDURE Clear(arr : ARRAY OF INTEGER)
    arr[1] ← 0
ENDPROCEDURE
DECLARE a : ARRAY[1:2] OF INTEGER
a[1] ← 5
CALL Clear(a)
OUTPUT a[1]`,
			want: []string{"5"},
		},
		{
			name: "BYREF array is shared",
			src: `PROCEDURE Clear(BYREF arr : ARRAY OF INTEGER)
    arr[1] ← 0
ENDPROCEDURE
DECLARE a : ARRAY[1:2] OF INTEGER
a[1] ← 5
CALL Clear(a)
OUTPUT a[1]`,
			want: []string{"0"},
		},
		{
			name: "array assignment shares storage",
			src: `DECLARE a : ARRAY[1:2] OF INTEGER
a[1] ← 1
b ← a
b[1] ← 9
OUTPUT a[1], b[1]`,
			want: []string{"9 9"},
		},
		{
			name: "declared array assignment shares storage",
			src: `DECLARE a : ARRAY[1:3] OF INTEGER
DECLARE b : ARRAY[1:3] OF INTEGER
b ← a
b[1] ← 5
OUTPUT a[1]`,
			want: []string{"5"},
		},
		{
			name: "two dimensional array",
			src: `DECLARE grid : ARRAY[1:2, 1:3] OF INTEGER
grid[2, 3] ← 7
OUTPUT grid[2, 3], grid[1, 1]`,
			want: []string{"7 0"},
		},
		{
			name: "zero values",
			src: `DECLARE s : STRING
DECLARE b : BOOLEAN
DECLARE r : REAL
OUTPUT LENGTH(s), b, r`,
			want: []string{"0 FALSE 0"},
		},
		{
			name: "assignment converts to declared type",
			src: `DECLARE n : INTEGER
n ← 7.9
OUTPUT n`,
			want: []string{"7"},
		},
		{
			name: "built-ins",
			src:  `OUTPUT LENGTH("abc"), UCASE("hi"), MID("pseudo", 2, 3)`,
			want: []string{"3 HI seu"},
		},
		{
			name: "globals visible in routines",
			src: `PROCEDURE Bump()
    total ← total + 1
ENDPROCEDURE
DECLARE total : INTEGER
CALL Bump()
CALL Bump()
OUTPUT total`,
			want: []string{"2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.src, Config{})
			require.True(t, res.Success, "events: %v", res.Events)
			if diff := cmp.Diff(tt.want, res.Outputs()); diff != "" {
				t.Errorf("outputs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		config Config
		code   diag.Code
		want   string
	}{
		{
			name: "division by zero",
			src:  "OUTPUT 1\nOUTPUT 10 DIV 0\nOUTPUT 3",
			code: diag.CodeDivisionByZero,
			want: "Line 2: Runtime Error - Division by zero",
		},
		{
			name: "real division by zero",
			src:  "OUTPUT 1 / 0",
			code: diag.CodeDivisionByZero,
			want: "Line 1: Runtime Error - Division by zero",
		},
		{
			name: "index out of bounds",
			src:  "DECLARE a : ARRAY[1:5] OF INTEGER\nOUTPUT a[10]",
			code: diag.CodeIndexOutOfBounds,
			want: "Line 2: Runtime Error - Array index out of bounds",
		},
		{
			name: "step zero",
			src:  "FOR i ← 1 TO 3 STEP 0\n    OUTPUT i\nNEXT i",
			code: diag.CodeInvalidStep,
			want: "Line 1: Runtime Error - FOR loop STEP cannot be zero",
		},
		{
			name: "incomparable types",
			src:  `OUTPUT "a" = TRUE`,
			code: diag.CodeTypeMismatch,
			want: "Line 1: Runtime Error - Cannot compare STRING with BOOLEAN",
		},
		{
			name: "stack overflow",
			src: `FUNCTION Down(n : INTEGER) RETURNS INTEGER
    RETURN Down(n + 1)
ENDFUNCTION
OUTPUT Down(0)`,
			config: Config{MaxCallDepth: 50},
			code:   diag.CodeStackOverflow,
			want:   "Line 2: Runtime Error - Stack overflow",
		},
		{
			name: "function falls off its end",
			src: `FUNCTION F(n : INTEGER) RETURNS INTEGER
    IF n > 0 THEN
        RETURN n
    ENDIF
ENDFUNCTION
OUTPUT F(0)`,
			code: diag.CodeMissingReturn,
			want: "Line 6: Runtime Error - FUNCTION 'F' ended without returning a value",
		},
		{
			name: "input exhausted",
			src:  "INPUT x",
			code: diag.CodeInputExhausted,
			want: "Line 1: Runtime Error - No input available for INPUT x",
		},
		{
			name:   "input of wrong type",
			src:    "DECLARE n : INTEGER\nINPUT n",
			config: Config{Inputs: []string{"abc"}},
			code:   diag.CodeInvalidInput,
			want:   "Line 2: Runtime Error - Cannot convert input 'abc' to INTEGER",
		},
		{
			name: "built-in argument",
			src:  `OUTPUT MID("abc", 0, 1)`,
			code: diag.CodeInvalidArgument,
		},
		{
			name: "integer overflow",
			src:  "OUTPUT 9223372036854775807 + 1",
			code: diag.CodeIntegerOverflow,
			want: "Line 1: Runtime Error - Integer overflow",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.src, tt.config)
			require.False(t, res.Success)
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.code, res.Err.Code)

			last := res.Events[len(res.Events)-1]
			assert.Equal(t, EventError, last.Kind, "runtime error is the final event")
			if tt.want != "" {
				assert.Equal(t, tt.want, last.Text)
			}
		})
	}
}

func TestErrorHaltsRun(t *testing.T) {
	res := run(t, "OUTPUT 1\nOUTPUT 10 DIV 0\nOUTPUT 3", Config{})

	want := []Event{
		{Kind: EventOutput, Text: "1", Line: 1},
		{Kind: EventError, Text: "Line 2: Runtime Error - Division by zero", Line: 2},
	}
	if diff := cmp.Diff(want, res.Events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestInfiniteLoopHitsStepLimit(t *testing.T) {
	res := run(t, "WHILE TRUE\n    OUTPUT 1\nENDWHILE", Config{StepLimit: 10000})

	require.False(t, res.Success)
	assert.Equal(t, diag.CodeExecutionTimeout, res.Err.Code)
	assert.Contains(t, res.Err.Error(), "Runtime Error - Execution timed out")
	assert.LessOrEqual(t, res.Steps, 10001)
}

func TestEmptyForLoopHitsStepLimit(t *testing.T) {
	res := run(t, "FOR i ← 1 TO 9000000000000\nNEXT i", Config{StepLimit: 500})

	require.False(t, res.Success)
	assert.Equal(t, diag.CodeExecutionTimeout, res.Err.Code)
	assert.Equal(t, 1, res.Err.Line)
}

func TestWallClockTimeout(t *testing.T) {
	res := run(t, "WHILE TRUE\nENDWHILE", Config{StepLimit: 1 << 40, Timeout: time.Millisecond})

	require.False(t, res.Success)
	assert.Equal(t, diag.CodeExecutionTimeout, res.Err.Code)
}

func TestNoOutputSucceeds(t *testing.T) {
	res := run(t, "DECLARE x : INTEGER\nx ← 1", Config{})

	assert.True(t, res.Success)
	assert.Empty(t, res.Events)
	assert.Nil(t, res.Err)
}

func TestOutputCap(t *testing.T) {
	res := run(t, "FOR i ← 1 TO 10\n    OUTPUT i\nNEXT i", Config{MaxOutputEvents: 3, Telemetry: TelemetryBasic})

	require.True(t, res.Success)
	assert.Equal(t, []string{"1", "2", "3"}, res.Outputs())
	require.Len(t, res.Events, 4)
	assert.Equal(t, EventSystem, res.Events[3].Kind)
	assert.Contains(t, res.Events[3].Text, "Output limit of 3 events reached")
	assert.Equal(t, 7, res.Telemetry.DroppedOutputs)
}

func TestInput(t *testing.T) {
	src := `DECLARE n : INTEGER
INPUT n
INPUT name
INPUT count
OUTPUT n * 2, name, count + 1`

	res := run(t, src, Config{Inputs: []string{"21", "Ada", "4"}})
	require.True(t, res.Success, "events: %v", res.Events)
	assert.Equal(t, []string{"42 Ada 5"}, res.Outputs())
}

func TestInteractiveInput(t *testing.T) {
	var prompts []string
	source := InputFunc(func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		if len(prompts) > 1 {
			return "", errors.New("closed")
		}
		return "interactive", nil
	})

	res := run(t, "INPUT a\nINPUT b\nINPUT c", Config{Inputs: []string{"queued"}, Input: source})

	require.False(t, res.Success)
	assert.Equal(t, []string{"b? ", "c? "}, prompts)
	assert.Equal(t, 3, res.Err.Line)
	assert.Equal(t, diag.CodeInputExhausted, res.Err.Code)
}

func TestOutputJoin(t *testing.T) {
	tests := []struct {
		mode JoinMode
		want string
	}{
		{JoinSpace, "1 2 3"},
		{JoinComma, "1, 2, 3"},
		{JoinNone, "123"},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			res := run(t, "OUTPUT 1, 2, 3", Config{OutputJoin: tt.mode})
			assert.Equal(t, []string{tt.want}, res.Outputs())
		})
	}
}

func TestParseJoinMode(t *testing.T) {
	m, err := ParseJoinMode("Comma")
	require.NoError(t, err)
	assert.Equal(t, JoinComma, m)

	_, err = ParseJoinMode("tab")
	assert.Error(t, err)
}

func TestRandIsDeterministicPerSeed(t *testing.T) {
	src := "OUTPUT RAND(100)"
	a := run(t, src, Config{RandomSeed: 7})
	b := run(t, src, Config{RandomSeed: 7})
	assert.Equal(t, a.Outputs(), b.Outputs())
}

func TestCancellation(t *testing.T) {
	tree := parser.Parse("WHILE TRUE\n    OUTPUT 1\nENDWHILE")
	require.False(t, tree.HasErrors())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Execute(ctx, tree.Program, Config{})
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, diag.CodeExecutionCanceled, res.Err.Code)
	assert.Equal(t, "Line 1: Runtime Error - Execution cancelled", res.Err.Error())
}

func TestInternalFaultIsNotAProgramError(t *testing.T) {
	prog := &ast.Program{Body: []ast.Stmt{&ast.BadStmt{Pos: ast.Pos{Line: 1, Column: 1}}}}

	res, err := Execute(context.Background(), prog, Config{})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInternal)
}

func TestOnEventStreams(t *testing.T) {
	var got []Event
	res := run(t, "OUTPUT 1\nOUTPUT 2", Config{OnEvent: func(e Event) { got = append(got, e) }})
	assert.Equal(t, res.Events, got)
}

func TestConcurrentRunsShareTree(t *testing.T) {
	tree := parser.Parse(`DECLARE total : INTEGER
FOR i ← 1 TO 100
    total ← total + i
NEXT i
OUTPUT total`)
	require.False(t, tree.HasErrors())

	results := make(chan []string, 8)
	for range 8 {
		go func() {
			res, err := Execute(context.Background(), tree.Program, Config{})
			if err != nil {
				results <- nil
				return
			}
			results <- res.Outputs()
		}()
	}
	for range 8 {
		assert.Equal(t, []string{"5050"}, <-results)
	}
}

func TestTelemetryAndDebug(t *testing.T) {
	src := `FUNCTION Sq(n : INTEGER) RETURNS INTEGER
    RETURN n * n
ENDFUNCTION
OUTPUT Sq(2)
OUTPUT Sq(3)`

	res := run(t, src, Config{Telemetry: TelemetryTiming, Debug: DebugPaths})
	require.NotNil(t, res.Telemetry)
	assert.Equal(t, 2, res.Telemetry.Calls)
	assert.Equal(t, 1, res.Telemetry.MaxDepth)
	assert.Equal(t, 2, res.Telemetry.OutputEvents)
	require.Len(t, res.Telemetry.RoutineTimings, 1)
	assert.Equal(t, "Sq", res.Telemetry.RoutineTimings[0].Name)
	assert.Equal(t, 2, res.Telemetry.RoutineTimings[0].Calls)

	var names []string
	for _, e := range res.DebugEvents {
		names = append(names, e.Event)
	}
	assert.Equal(t, []string{"enter_execute", "call", "return", "call", "return", "exit_execute"}, names)
}

func TestEventKindText(t *testing.T) {
	b, err := EventError.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "error", string(b))

	var k EventKind
	require.NoError(t, k.UnmarshalText([]byte("system")))
	assert.Equal(t, EventSystem, k)
}

func TestTraceDigestIsStableAcrossRuns(t *testing.T) {
	src := "FOR i ← 1 TO 3\n    OUTPUT i * i\nNEXT i"
	a, err := run(t, src, Config{}).Trace("").Digest()
	require.NoError(t, err)
	b, err := run(t, src, Config{}).Trace("").Digest()
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

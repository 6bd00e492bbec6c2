package builtins

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opal-lang/pseudo/core/types"
)

func call(t *testing.T, name string, args ...types.Value) (types.Value, error) {
	t.Helper()
	b, ok := Lookup(name)
	require.True(t, ok, "built-in %s missing", name)
	require.Len(t, args, len(b.Params))
	return b.Fn(&Context{Rand: rand.New(rand.NewPCG(1, 2))}, args)
}

func TestBuiltins(t *testing.T) {
	tests := []struct {
		name string
		fn   string
		args []types.Value
		want types.Value
	}{
		{"length", "LENGTH", []types.Value{types.String("héllo")}, types.Integer(5)},
		{"left", "LEFT", []types.Value{types.String("hello"), types.Integer(2)}, types.String("he")},
		{"left clamps", "LEFT", []types.Value{types.String("hi"), types.Integer(9)}, types.String("hi")},
		{"right", "RIGHT", []types.Value{types.String("hello"), types.Integer(3)}, types.String("llo")},
		{"mid", "MID", []types.Value{types.String("pseudocode"), types.Integer(7), types.Integer(4)}, types.String("code")},
		{"substring", "SUBSTRING", []types.Value{types.String("abc"), types.Integer(2), types.Integer(5)}, types.String("bc")},
		{"ucase string", "UCASE", []types.Value{types.String("abc")}, types.String("ABC")},
		{"lcase char", "LCASE", []types.Value{types.Char('Q')}, types.Char('q')},
		{"int truncates", "INT", []types.Value{types.Real(-3.7)}, types.Integer(-3)},
		{"round", "ROUND", []types.Value{types.Real(2.345), types.Integer(2)}, types.Real(2.35)},
		{"num to str", "NUM_TO_STR", []types.Value{types.Real(2.5)}, types.String("2.5")},
		{"str to int", "STR_TO_NUM", []types.Value{types.String(" 42 ")}, types.Integer(42)},
		{"str to real", "STR_TO_NUM", []types.Value{types.String("4.5")}, types.Real(4.5)},
		{"is num", "IS_NUM", []types.Value{types.String("x1")}, types.Boolean(false)},
		{"asc", "ASC", []types.Value{types.String("A")}, types.Integer(65)},
		{"chr", "CHR", []types.Value{types.Integer(97)}, types.Char('a')},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := call(t, tt.fn, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltinErrors(t *testing.T) {
	tests := []struct {
		fn   string
		args []types.Value
	}{
		{"MID", []types.Value{types.String("abc"), types.Integer(0), types.Integer(1)}},
		{"LEFT", []types.Value{types.String("abc"), types.Integer(-1)}},
		{"STR_TO_NUM", []types.Value{types.String("abc")}},
		{"ASC", []types.Value{types.String("")}},
		{"CHR", []types.Value{types.Integer(-5)}},
		{"RAND", []types.Value{types.Real(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			_, err := call(t, tt.fn, tt.args...)
			assert.ErrorIs(t, err, ErrBadArgument)
		})
	}
}

func TestRandIsSeeded(t *testing.T) {
	a, err := call(t, "RAND", types.Real(10))
	require.NoError(t, err)
	b, err := call(t, "RAND", types.Real(10))
	require.NoError(t, err)
	assert.Equal(t, a, b, "same seed, same value")
	assert.Less(t, float64(a.(types.Real)), 10.0)
}

func TestNamesSorted(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "LENGTH")
	assert.IsIncreasing(t, names)
}

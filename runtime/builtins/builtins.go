// Package builtins is the fixed table of library functions available to
// every program. The table is built once at init and never mutated, so it
// is safe to share between concurrent runs.
package builtins

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/opal-lang/pseudo/core/types"
)

// Context carries per-run state a built-in may need.
type Context struct {
	Rand *rand.Rand
}

// Func implements a built-in. Arguments arrive already converted to the
// declared parameter types.
type Func func(ctx *Context, args []types.Value) (types.Value, error)

// Builtin describes one library function.
type Builtin struct {
	Name string
	// Params lists the parameter types. TypeUnknown accepts any value;
	// TypeString also accepts CHAR and TypeReal also accepts INTEGER.
	Params []types.DataType
	// Returns is the static result type, TypeUnknown when it depends on
	// the arguments.
	Returns types.DataType
	Fn      Func
}

// ErrBadArgument marks a built-in failing on an argument value.
var ErrBadArgument = errors.New("invalid argument")

func badArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadArgument, fmt.Sprintf(format, args...))
}

var table = map[string]*Builtin{}

func register(b *Builtin) {
	table[b.Name] = b
}

// Lookup returns the built-in called name.
func Lookup(name string) (*Builtin, bool) {
	b, ok := table[name]
	return b, ok
}

// Names returns every built-in name in sorted order.
func Names() []string {
	out := make([]string, 0, len(table))
	for n := range table {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

var (
	text    = types.TypeString
	integer = types.TypeInteger
	number  = types.TypeReal
	anyType = types.TypeUnknown
)

func init() {
	register(&Builtin{Name: "LENGTH", Params: []types.DataType{text}, Returns: integer, Fn: length})
	register(&Builtin{Name: "LEFT", Params: []types.DataType{text, integer}, Returns: text, Fn: left})
	register(&Builtin{Name: "RIGHT", Params: []types.DataType{text, integer}, Returns: text, Fn: right})
	register(&Builtin{Name: "MID", Params: []types.DataType{text, integer, integer}, Returns: text, Fn: mid})
	register(&Builtin{Name: "SUBSTRING", Params: []types.DataType{text, integer, integer}, Returns: text, Fn: mid})
	register(&Builtin{Name: "UCASE", Params: []types.DataType{anyType}, Returns: anyType, Fn: caseMapper(strings.ToUpper)})
	register(&Builtin{Name: "LCASE", Params: []types.DataType{anyType}, Returns: anyType, Fn: caseMapper(strings.ToLower)})
	register(&Builtin{Name: "TO_UPPER", Params: []types.DataType{anyType}, Returns: anyType, Fn: caseMapper(strings.ToUpper)})
	register(&Builtin{Name: "TO_LOWER", Params: []types.DataType{anyType}, Returns: anyType, Fn: caseMapper(strings.ToLower)})
	register(&Builtin{Name: "INT", Params: []types.DataType{number}, Returns: integer, Fn: toInt})
	register(&Builtin{Name: "ROUND", Params: []types.DataType{number, integer}, Returns: number, Fn: round})
	register(&Builtin{Name: "RAND", Params: []types.DataType{number}, Returns: number, Fn: random})
	register(&Builtin{Name: "NUM_TO_STR", Params: []types.DataType{number}, Returns: text, Fn: numToStr})
	register(&Builtin{Name: "STR_TO_NUM", Params: []types.DataType{text}, Returns: anyType, Fn: strToNum})
	register(&Builtin{Name: "IS_NUM", Params: []types.DataType{text}, Returns: types.TypeBoolean, Fn: isNum})
	register(&Builtin{Name: "ASC", Params: []types.DataType{text}, Returns: integer, Fn: asc})
	register(&Builtin{Name: "CHR", Params: []types.DataType{integer}, Returns: types.TypeChar, Fn: chr})
}

func str(v types.Value) string {
	s, _ := types.AsText(v)
	return s
}

func num(v types.Value) float64 {
	f, _ := types.AsFloat(v)
	return f
}

func count(v types.Value) int64 {
	n, _ := v.(types.Integer)
	return int64(n)
}

func length(_ *Context, args []types.Value) (types.Value, error) {
	return types.Integer(utf8.RuneCountInString(str(args[0]))), nil
}

func left(_ *Context, args []types.Value) (types.Value, error) {
	r, n := []rune(str(args[0])), count(args[1])
	if n < 0 {
		return nil, badArg("LEFT length %d is negative", n)
	}
	n = min(n, int64(len(r)))
	return types.String(r[:n]), nil
}

func right(_ *Context, args []types.Value) (types.Value, error) {
	r, n := []rune(str(args[0])), count(args[1])
	if n < 0 {
		return nil, badArg("RIGHT length %d is negative", n)
	}
	n = min(n, int64(len(r)))
	return types.String(r[int64(len(r))-n:]), nil
}

// mid returns n characters starting at the 1-based position start.
func mid(_ *Context, args []types.Value) (types.Value, error) {
	r, start, n := []rune(str(args[0])), count(args[1]), count(args[2])
	if start < 1 || start > int64(len(r))+1 {
		return nil, badArg("start position %d is outside the string of length %d", start, len(r))
	}
	if n < 0 {
		return nil, badArg("length %d is negative", n)
	}
	from := start - 1
	to := min(from+n, int64(len(r)))
	return types.String(r[from:to]), nil
}

func caseMapper(fn func(string) string) Func {
	return func(_ *Context, args []types.Value) (types.Value, error) {
		switch v := args[0].(type) {
		case types.String:
			return types.String(fn(string(v))), nil
		case types.Char:
			out := []rune(fn(string(rune(v))))
			return types.Char(out[0]), nil
		}
		return nil, badArg("expected STRING or CHAR, got %s", args[0].Type())
	}
}

func toInt(_ *Context, args []types.Value) (types.Value, error) {
	f := num(args[0])
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return nil, badArg("%s cannot be converted to INTEGER", args[0])
	}
	return types.Integer(int64(math.Trunc(f))), nil
}

func round(_ *Context, args []types.Value) (types.Value, error) {
	f, places := num(args[0]), count(args[1])
	if places < 0 || places > 15 {
		return nil, badArg("ROUND places %d must be between 0 and 15", places)
	}
	scale := math.Pow(10, float64(places))
	return types.Real(math.Round(f*scale) / scale), nil
}

// random returns a REAL in [0, x).
func random(ctx *Context, args []types.Value) (types.Value, error) {
	x := num(args[0])
	if x <= 0 {
		return nil, badArg("RAND upper bound %s must be positive", args[0])
	}
	return types.Real(ctx.Rand.Float64() * x), nil
}

func numToStr(_ *Context, args []types.Value) (types.Value, error) {
	return types.String(args[0].String()), nil
}

// ParseNumber converts text to an INTEGER when it is integral and to a
// REAL otherwise. Surrounding spaces are ignored.
func ParseNumber(s string) (types.Value, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return types.Integer(n), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return types.Real(f), true
	}
	return nil, false
}

func strToNum(_ *Context, args []types.Value) (types.Value, error) {
	v, ok := ParseNumber(str(args[0]))
	if !ok {
		return nil, badArg("'%s' is not a number", str(args[0]))
	}
	return v, nil
}

func isNum(_ *Context, args []types.Value) (types.Value, error) {
	_, ok := ParseNumber(str(args[0]))
	return types.Boolean(ok), nil
}

func asc(_ *Context, args []types.Value) (types.Value, error) {
	s := str(args[0])
	if s == "" {
		return nil, badArg("ASC of an empty string")
	}
	r, _ := utf8.DecodeRuneInString(s)
	return types.Integer(r), nil
}

func chr(_ *Context, args []types.Value) (types.Value, error) {
	n := count(args[0])
	if n < 0 || n > utf8.MaxRune || !utf8.ValidRune(rune(n)) {
		return nil, badArg("%d is not a character code", n)
	}
	return types.Char(rune(n)), nil
}

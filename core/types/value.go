package types

import (
	"math"
	"strconv"
	"strings"
)

// Value is a runtime pseudocode value. The set of implementations is closed:
// Integer, Real, String, Boolean, Char, *Array and Null.
type Value interface {
	Type() DataType
	// String renders the value the way OUTPUT prints it.
	String() string
	value()
}

type (
	Integer int64
	Real    float64
	String  string
	Boolean bool
	Char    rune
	Null    struct{}
)

// Array is a fixed-size sequence indexed from Lower to Lower+len(Elems)-1.
// Multi-dimensional arrays nest *Array values.
type Array struct {
	Elem  DataType
	Lower int
	Elems []Value
}

// Bounds is an inclusive index range of one array dimension.
type Bounds struct {
	Lower int
	Upper int
}

// Len returns the number of elements the range covers.
func (b Bounds) Len() int {
	return b.Upper - b.Lower + 1
}

func (Integer) Type() DataType { return TypeInteger }
func (Real) Type() DataType    { return TypeReal }
func (String) Type() DataType  { return TypeString }
func (Boolean) Type() DataType { return TypeBoolean }
func (Char) Type() DataType    { return TypeChar }
func (Null) Type() DataType    { return TypeNull }
func (*Array) Type() DataType  { return TypeArray }

func (Integer) value() {}
func (Real) value()    {}
func (String) value()  {}
func (Boolean) value() {}
func (Char) value()    {}
func (Null) value()    {}
func (*Array) value()  {}

func (v Integer) String() string { return strconv.FormatInt(int64(v), 10) }

func (v Real) String() string {
	f := float64(v)
	switch {
	case math.IsInf(f, 1):
		return "INFINITY"
	case math.IsInf(f, -1):
		return "-INFINITY"
	case math.IsNaN(f):
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (v String) String() string { return string(v) }
func (v Char) String() string   { return string(rune(v)) }
func (Null) String() string     { return "NULL" }

func (v Boolean) String() string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (a *Array) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range a.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Upper returns the highest valid index.
func (a *Array) Upper() int {
	return a.Lower + len(a.Elems) - 1
}

// InBounds reports whether index addresses an element.
func (a *Array) InBounds(index int64) bool {
	return index >= int64(a.Lower) && index <= int64(a.Upper())
}

// At returns the element at index. The caller checks InBounds first.
func (a *Array) At(index int64) Value {
	return a.Elems[index-int64(a.Lower)]
}

// Set stores v at index. The caller checks InBounds first.
func (a *Array) Set(index int64, v Value) {
	a.Elems[index-int64(a.Lower)] = v
}

// NewArray allocates an array with one level per dimension, every leaf set
// to the zero value of elem.
func NewArray(elem DataType, dims []Bounds) *Array {
	d := dims[0]
	a := &Array{Elem: elem, Lower: d.Lower, Elems: make([]Value, d.Len())}
	if len(dims) > 1 {
		a.Elem = TypeArray
		for i := range a.Elems {
			a.Elems[i] = NewArray(elem, dims[1:])
		}
		return a
	}
	for i := range a.Elems {
		a.Elems[i] = Zero(elem)
	}
	return a
}

// Zero returns the initial value of a freshly declared scalar of type t.
func Zero(t DataType) Value {
	switch t {
	case TypeInteger:
		return Integer(0)
	case TypeReal:
		return Real(0)
	case TypeString:
		return String("")
	case TypeBoolean:
		return Boolean(false)
	case TypeChar:
		return Char(' ')
	default:
		return Null{}
	}
}

// Copy returns v with any array storage duplicated, so the result shares no
// mutable state with v. Scalars are returned unchanged.
func Copy(v Value) Value {
	a, ok := v.(*Array)
	if !ok {
		return v
	}
	out := &Array{Elem: a.Elem, Lower: a.Lower, Elems: make([]Value, len(a.Elems))}
	for i, e := range a.Elems {
		out.Elems[i] = Copy(e)
	}
	return out
}

// Convert coerces v to the declared type t where the language allows it:
// INTEGER and REAL convert into each other (REAL to INTEGER truncates) and a
// CHAR widens to STRING. ok is false when no conversion exists.
func Convert(v Value, t DataType) (Value, bool) {
	if t == TypeUnknown || v.Type() == t {
		return v, true
	}
	switch x := v.(type) {
	case Integer:
		if t == TypeReal {
			return Real(float64(x)), true
		}
	case Real:
		if t == TypeInteger {
			return Integer(int64(math.Trunc(float64(x)))), true
		}
	case Char:
		if t == TypeString {
			return String(string(rune(x))), true
		}
	case String:
		if t == TypeChar && len([]rune(string(x))) == 1 {
			return Char([]rune(string(x))[0]), true
		}
	}
	return v, false
}

// AsFloat returns the numeric value of an Integer or Real.
func AsFloat(v Value) (float64, bool) {
	switch x := v.(type) {
	case Integer:
		return float64(x), true
	case Real:
		return float64(x), true
	}
	return 0, false
}

// AsText returns the text of a String or Char.
func AsText(v Value) (string, bool) {
	switch x := v.(type) {
	case String:
		return string(x), true
	case Char:
		return string(rune(x)), true
	}
	return "", false
}

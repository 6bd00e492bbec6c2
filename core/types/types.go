// Package types defines the pseudocode data types and the runtime value union
// shared by the validator, the interpreter and the trace encoders.
package types

// DataType is a declared or inferred pseudocode type.
type DataType int

const (
	TypeUnknown DataType = iota // not statically known
	TypeInteger
	TypeReal
	TypeString
	TypeBoolean
	TypeChar
	TypeArray
	TypeNull
)

var typeNames = [...]string{
	TypeUnknown: "UNKNOWN",
	TypeInteger: "INTEGER",
	TypeReal:    "REAL",
	TypeString:  "STRING",
	TypeBoolean: "BOOLEAN",
	TypeChar:    "CHAR",
	TypeArray:   "ARRAY",
	TypeNull:    "NULL",
}

// String returns the keyword spelling of the type.
func (t DataType) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "UNKNOWN"
	}
	return typeNames[t]
}

// IsNumeric reports whether t is INTEGER or REAL.
func (t DataType) IsNumeric() bool {
	return t == TypeInteger || t == TypeReal
}

// IsText reports whether t is STRING or CHAR.
func (t DataType) IsText() bool {
	return t == TypeString || t == TypeChar
}

// ParseDataType maps a type keyword to its DataType. ARRAY is not a scalar
// type name and is handled by the parser's array declaration form.
func ParseDataType(name string) (DataType, bool) {
	switch name {
	case "INTEGER":
		return TypeInteger, true
	case "REAL":
		return TypeReal, true
	case "STRING":
		return TypeString, true
	case "BOOLEAN":
		return TypeBoolean, true
	case "CHAR":
		return TypeChar, true
	default:
		return TypeUnknown, false
	}
}

// AssignableTo reports whether a value of type from may be stored in a
// variable declared as to. INTEGER and REAL convert into each other; a CHAR
// widens into STRING. Unknown types are assumed compatible.
func AssignableTo(from, to DataType) bool {
	if from == TypeUnknown || to == TypeUnknown || from == to {
		return true
	}
	if from.IsNumeric() && to.IsNumeric() {
		return true
	}
	return from == TypeChar && to == TypeString
}

// Comparable reports whether values of types a and b may be compared for
// equality or ordering.
func Comparable(a, b DataType) bool {
	if a == TypeUnknown || b == TypeUnknown || a == b {
		return true
	}
	if a.IsNumeric() && b.IsNumeric() {
		return true
	}
	return a.IsText() && b.IsText()
}

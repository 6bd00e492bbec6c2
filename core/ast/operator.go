package ast

// Operator is a unary or binary operator.
type Operator int

const (
	OpInvalid Operator = iota
	OpOr
	OpAnd
	OpNot
	OpEq
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpAdd
	OpSub
	OpConcat
	OpMul
	OpDiv    // "/", always REAL
	OpIntDiv // DIV
	OpMod
	OpNeg
)

var opSymbols = [...]string{
	OpInvalid: "?",
	OpOr:      "OR",
	OpAnd:     "AND",
	OpNot:     "NOT",
	OpEq:      "=",
	OpNotEq:   "<>",
	OpLt:      "<",
	OpLtEq:    "<=",
	OpGt:      ">",
	OpGtEq:    ">=",
	OpAdd:     "+",
	OpSub:     "-",
	OpConcat:  "&",
	OpMul:     "*",
	OpDiv:     "/",
	OpIntDiv:  "DIV",
	OpMod:     "MOD",
	OpNeg:     "-",
}

// String returns the ASCII spelling of op.
func (op Operator) String() string {
	if op < 0 || int(op) >= len(opSymbols) {
		return "?"
	}
	return opSymbols[op]
}

// Precedence levels, loosest first.
const (
	PrecLowest = iota
	PrecOr
	PrecAnd
	PrecNot
	PrecCompare
	PrecAdditive
	PrecMultiplicative
	PrecUnary
)

// Precedence returns the binding strength of op.
func (op Operator) Precedence() int {
	switch op {
	case OpOr:
		return PrecOr
	case OpAnd:
		return PrecAnd
	case OpNot:
		return PrecNot
	case OpEq, OpNotEq, OpLt, OpLtEq, OpGt, OpGtEq:
		return PrecCompare
	case OpAdd, OpSub, OpConcat:
		return PrecAdditive
	case OpMul, OpDiv, OpIntDiv, OpMod:
		return PrecMultiplicative
	case OpNeg:
		return PrecUnary
	}
	return PrecLowest
}

// IsComparison reports whether op yields BOOLEAN from two comparable operands.
func (op Operator) IsComparison() bool {
	return op.Precedence() == PrecCompare
}

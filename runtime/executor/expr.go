package executor

import (
	"cmp"
	"math"
	"strings"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/invariant"
	"github.com/opal-lang/pseudo/core/types"
)

var _ ast.ExprVisitor[result] = (*interpreter)(nil)

// result is what evaluating an expression yields.
type result struct {
	val types.Value
	err error
}

func value(v types.Value) result { return result{val: v} }
func fault(err error) result     { return result{err: err} }

// eval evaluates e; every expression node counts as a step.
func (in *interpreter) eval(e ast.Expr) (types.Value, error) {
	if err := in.tick(); err != nil {
		return nil, err
	}
	r := ast.AcceptExpr[result](e, in)
	invariant.Postcondition(r.err != nil || r.val != nil, "expression at line %d produced no value", in.line)
	return r.val, r.err
}

func (in *interpreter) evalBool(e ast.Expr, what string) (bool, error) {
	v, err := in.eval(e)
	if err != nil {
		return false, err
	}
	b, ok := v.(types.Boolean)
	if !ok {
		return false, in.mismatch("%s condition must be BOOLEAN, got %s", what, typeName(v))
	}
	return bool(b), nil
}

func (in *interpreter) evalInt(e ast.Expr, what string) (int64, error) {
	v, err := in.eval(e)
	if err != nil {
		return 0, err
	}
	i, ok := v.(types.Integer)
	if !ok {
		return 0, in.mismatch("%s must be INTEGER, got %s", what, typeName(v))
	}
	return int64(i), nil
}

func (in *interpreter) evalNumber(e ast.Expr, what string) (types.Value, error) {
	v, err := in.eval(e)
	if err != nil {
		return nil, err
	}
	if _, ok := types.AsFloat(v); !ok {
		return nil, in.mismatch("%s must be a number, got %s", what, typeName(v))
	}
	return v, nil
}

// element resolves name[i, j, ...] to the innermost array and the index
// within it.
func (in *interpreter) element(n *ast.ArrayAccess) (*types.Array, int64, error) {
	invariant.Precondition(len(n.Indices) > 0, "array access without indices")

	c := in.env.lookup(n.Name)
	if c == nil {
		return nil, 0, in.errorf(diag.CodeUndeclaredVariable, "Array '%s' is not declared", n.Name)
	}
	arr, ok := c.val.(*types.Array)
	if !ok {
		return nil, 0, in.mismatch("'%s' is not an array", n.Name)
	}
	for i, e := range n.Indices {
		idx, err := in.evalInt(e, "Array index")
		if err != nil {
			return nil, 0, err
		}
		if !arr.InBounds(idx) {
			return nil, 0, in.errorf(diag.CodeIndexOutOfBounds, "Array index out of bounds")
		}
		if i == len(n.Indices)-1 {
			return arr, idx, nil
		}
		next, ok := arr.At(idx).(*types.Array)
		if !ok {
			return nil, 0, in.mismatch("Array '%s' has fewer than %d dimensions", n.Name, len(n.Indices))
		}
		arr = next
	}
	return nil, 0, nil
}

func (in *interpreter) VisitLiteral(n *ast.Literal) result {
	return value(n.Value)
}

func (in *interpreter) VisitIdentifier(n *ast.Identifier) result {
	c := in.env.lookup(n.Name)
	if c == nil {
		return fault(in.errorf(diag.CodeUndeclaredVariable, "Variable '%s' is not defined", n.Name))
	}
	return value(c.val)
}

func (in *interpreter) VisitArrayAccess(n *ast.ArrayAccess) result {
	arr, idx, err := in.element(n)
	if err != nil {
		return fault(err)
	}
	return value(arr.At(idx))
}

func (in *interpreter) VisitCall(n *ast.CallExpr) result {
	v, err := in.call(n, true)
	if err != nil {
		return fault(err)
	}
	return value(v)
}

func (in *interpreter) VisitBadExpr(n *ast.BadExpr) result {
	invariant.Invariant(false, "cannot evaluate an expression that failed to parse at line %d", n.Line)
	return result{}
}

func (in *interpreter) VisitUnary(n *ast.UnaryExpr) result {
	if n.Op == ast.OpNot {
		b, err := in.operandBool(n.Operand, n.Op)
		if err != nil {
			return fault(err)
		}
		return value(types.Boolean(!b))
	}

	invariant.Invariant(n.Op == ast.OpNeg, "unknown unary operator %s", n.Op)
	v, err := in.eval(n.Operand)
	if err != nil {
		return fault(err)
	}
	switch x := v.(type) {
	case types.Integer:
		if x == math.MinInt64 {
			return fault(in.errorf(diag.CodeIntegerOverflow, "Integer overflow"))
		}
		return value(-x)
	case types.Real:
		return value(-x)
	}
	return fault(in.mismatch("Operator '-' expects a number, got %s", typeName(v)))
}

func (in *interpreter) operandBool(e ast.Expr, op ast.Operator) (bool, error) {
	v, err := in.eval(e)
	if err != nil {
		return false, err
	}
	b, ok := v.(types.Boolean)
	if !ok {
		return false, in.mismatch("Operator '%s' expects BOOLEAN, got %s", op, typeName(v))
	}
	return bool(b), nil
}

func (in *interpreter) VisitBinary(n *ast.BinaryExpr) result {
	if n.Op == ast.OpAnd || n.Op == ast.OpOr {
		l, err := in.operandBool(n.Left, n.Op)
		if err != nil {
			return fault(err)
		}
		if (n.Op == ast.OpAnd && !l) || (n.Op == ast.OpOr && l) {
			return value(types.Boolean(l))
		}
		r, err := in.operandBool(n.Right, n.Op)
		if err != nil {
			return fault(err)
		}
		return value(types.Boolean(r))
	}

	l, err := in.eval(n.Left)
	if err != nil {
		return fault(err)
	}
	r, err := in.eval(n.Right)
	if err != nil {
		return fault(err)
	}

	switch {
	case n.Op.IsComparison():
		order, err := in.compare(l, r, n.Op)
		if err != nil {
			return fault(err)
		}
		return value(types.Boolean(holds(n.Op, order)))
	case n.Op == ast.OpConcat:
		if _, ok := l.(*types.Array); ok {
			return fault(in.mismatch("Operator '&' cannot join an ARRAY"))
		}
		if _, ok := r.(*types.Array); ok {
			return fault(in.mismatch("Operator '&' cannot join an ARRAY"))
		}
		return value(types.String(l.String() + r.String()))
	}
	v, err := in.arithmetic(n.Op, l, r)
	if err != nil {
		return fault(err)
	}
	return value(v)
}

// holds interprets a three-way comparison result for op.
func holds(op ast.Operator, c int) bool {
	switch op {
	case ast.OpEq:
		return c == 0
	case ast.OpNotEq:
		return c != 0
	case ast.OpLt:
		return c < 0
	case ast.OpLtEq:
		return c <= 0
	case ast.OpGt:
		return c > 0
	case ast.OpGtEq:
		return c >= 0
	}
	invariant.Invariant(false, "not a comparison: %s", op)
	return false
}

// compare orders like-typed values: numbers with numbers, text with text.
// BOOLEAN values support only equality.
func (in *interpreter) compare(l, r types.Value, op ast.Operator) (int, error) {
	if li, ok := l.(types.Integer); ok {
		if ri, ok := r.(types.Integer); ok {
			return cmp.Compare(li, ri), nil
		}
	}
	if lf, ok := types.AsFloat(l); ok {
		if rf, ok := types.AsFloat(r); ok {
			return cmp.Compare(lf, rf), nil
		}
	}
	if ls, ok := types.AsText(l); ok {
		if rs, ok := types.AsText(r); ok {
			return strings.Compare(ls, rs), nil
		}
	}
	if lb, ok := l.(types.Boolean); ok {
		if rb, ok := r.(types.Boolean); ok {
			if op != ast.OpEq && op != ast.OpNotEq {
				return 0, in.mismatch("BOOLEAN values cannot be ordered with '%s'", op)
			}
			if lb == rb {
				return 0, nil
			}
			return 1, nil
		}
	}
	if l.Type() == types.TypeNull && r.Type() == types.TypeNull {
		return 0, nil
	}
	return 0, in.mismatch("Cannot compare %s with %s", typeName(l), typeName(r))
}

func (in *interpreter) arithmetic(op ast.Operator, l, r types.Value) (types.Value, error) {
	lf, lok := types.AsFloat(l)
	rf, rok := types.AsFloat(r)
	if !lok || !rok {
		return nil, in.mismatch("Operator '%s' expects numbers, got %s and %s", op, typeName(l), typeName(r))
	}
	li, lInt := l.(types.Integer)
	ri, rInt := r.(types.Integer)
	ints := lInt && rInt

	switch op {
	case ast.OpDiv:
		if rf == 0 {
			return nil, in.divisionByZero()
		}
		return types.Real(lf / rf), nil
	case ast.OpIntDiv:
		if rf == 0 {
			return nil, in.divisionByZero()
		}
		if ints {
			if li == math.MinInt64 && ri == -1 {
				return nil, in.overflow()
			}
			return li / ri, nil
		}
		q := math.Trunc(lf / rf)
		if math.IsNaN(q) || math.Abs(q) >= math.MaxInt64 {
			return nil, in.overflow()
		}
		return types.Integer(int64(q)), nil
	case ast.OpMod:
		if rf == 0 {
			return nil, in.divisionByZero()
		}
		if ints {
			if ri == -1 {
				return types.Integer(0), nil
			}
			return li % ri, nil
		}
		return types.Real(math.Mod(lf, rf)), nil
	case ast.OpAdd:
		if ints {
			s := li + ri
			if (li > 0 && ri > 0 && s < 0) || (li < 0 && ri < 0 && s >= 0) {
				return nil, in.overflow()
			}
			return s, nil
		}
		return types.Real(lf + rf), nil
	case ast.OpSub:
		if ints {
			d := li - ri
			if (li >= 0 && ri < 0 && d < 0) || (li < 0 && ri > 0 && d >= 0) {
				return nil, in.overflow()
			}
			return d, nil
		}
		return types.Real(lf - rf), nil
	case ast.OpMul:
		if ints {
			if li == 0 || ri == 0 {
				return types.Integer(0), nil
			}
			p := li * ri
			if p/ri != li || (li == -1 && ri == math.MinInt64) || (ri == -1 && li == math.MinInt64) {
				return nil, in.overflow()
			}
			return p, nil
		}
		return types.Real(lf * rf), nil
	}
	invariant.Invariant(false, "unknown binary operator %s", op)
	return nil, nil
}

func (in *interpreter) divisionByZero() error {
	return in.errorf(diag.CodeDivisionByZero, "Division by zero")
}

func (in *interpreter) overflow() error {
	return in.errorf(diag.CodeIntegerOverflow, "Integer overflow")
}

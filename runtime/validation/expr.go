package validation

import (
	"fmt"
	"math"
	"sort"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/types"
	"github.com/opal-lang/pseudo/runtime/builtins"
)

var _ ast.ExprVisitor[types.DataType] = (*validator)(nil)

// expr infers the static type of e. A missing expression is reported
// against parent and typed TypeUnknown, which is compatible with anything.
func (v *validator) expr(e ast.Expr, parent ast.Pos) types.DataType {
	if e == nil {
		v.errorf(parent, diag.CodeIncompleteNode, "Incomplete statement: an expression is missing")
		return types.TypeUnknown
	}
	return ast.AcceptExpr[types.DataType](e, v)
}

func (v *validator) exprs(es []ast.Expr, parent ast.Pos) {
	for _, e := range es {
		v.expr(e, parent)
	}
}

// isLiteral reports whether e is a literal, possibly negated. Only these
// give a type mismatch that is certain enough to be an error.
func isLiteral(e ast.Expr) bool {
	switch n := e.(type) {
	case *ast.Literal:
		return true
	case *ast.UnaryExpr:
		return n.Op == ast.OpNeg && isLiteral(n.Operand)
	}
	return false
}

// intConstant folds an INTEGER literal, possibly negated.
func intConstant(e ast.Expr) (int64, bool) {
	switch n := e.(type) {
	case *ast.Literal:
		i, ok := n.Value.(types.Integer)
		return int64(i), ok
	case *ast.UnaryExpr:
		if n.Op == ast.OpNeg {
			i, ok := intConstant(n.Operand)
			return -i, ok
		}
	}
	return 0, false
}

// realConstant folds a REAL literal, possibly negated.
func realConstant(e ast.Expr) (float64, bool) {
	switch n := e.(type) {
	case *ast.Literal:
		f, ok := n.Value.(types.Real)
		return float64(f), ok
	case *ast.UnaryExpr:
		if n.Op == ast.OpNeg {
			f, ok := realConstant(n.Operand)
			return -f, ok
		}
	}
	return 0, false
}

// checkAssignable reports storing a value of type from into what, declared
// as to. A one-character STRING literal fits a CHAR. A REAL literal with a
// fraction stored as INTEGER is truncated and only warns.
func (v *validator) checkAssignable(e ast.Expr, from, to types.DataType, what string) {
	if e == nil {
		return
	}
	if to == types.TypeInteger {
		if f, ok := realConstant(e); ok && f != math.Trunc(f) {
			v.warn(e.Position(), diag.CodeTypeUncertain, "REAL value %s is truncated when stored in %s of type INTEGER",
				types.Real(f), what)
			return
		}
	}
	if types.AssignableTo(from, to) {
		return
	}
	if lit, ok := e.(*ast.Literal); ok && to == types.TypeChar {
		if _, ok := types.Convert(lit.Value, types.TypeChar); ok {
			return
		}
	}
	if isLiteral(e) {
		v.errorf(e.Position(), diag.CodeTypeMismatch, "Cannot assign %s to %s of type %s", from, what, to)
		return
	}
	v.warn(e.Position(), diag.CodeTypeUncertain, "Value of type %s may not fit %s of type %s", from, what, to)
}

func (v *validator) checkCondition(e ast.Expr, parent ast.Pos, what string) {
	t := v.expr(e, parent)
	if t == types.TypeBoolean || t == types.TypeUnknown {
		return
	}
	if isLiteral(e) {
		v.errorf(e.Position(), diag.CodeTypeMismatch, "%s condition must be BOOLEAN, got %s", what, t)
		return
	}
	v.warn(e.Position(), diag.CodeTypeUncertain, "%s condition has type %s, expected BOOLEAN", what, t)
}

func (v *validator) checkInteger(e ast.Expr, parent ast.Pos, what string) {
	t := v.expr(e, parent)
	if t == types.TypeInteger || t == types.TypeUnknown {
		return
	}
	if isLiteral(e) {
		v.errorf(e.Position(), diag.CodeTypeMismatch, "%s must be INTEGER, got %s", what, t)
		return
	}
	v.warn(e.Position(), diag.CodeTypeUncertain, "%s has type %s, expected INTEGER", what, t)
}

func (v *validator) checkNumeric(e ast.Expr, parent ast.Pos, what string) types.DataType {
	t := v.expr(e, parent)
	if t.IsNumeric() || t == types.TypeUnknown {
		return t
	}
	if isLiteral(e) {
		v.errorf(e.Position(), diag.CodeTypeMismatch, "%s must be a number, got %s", what, t)
	} else {
		v.warn(e.Position(), diag.CodeTypeUncertain, "%s has type %s, expected a number", what, t)
	}
	return types.TypeUnknown
}

// arrayAccess checks name[indices] and returns the element type. Reads
// mark the array used; writes do not.
func (v *validator) arrayAccess(n *ast.ArrayAccess, read bool) types.DataType {
	for _, idx := range n.Indices {
		v.checkInteger(idx, n.Pos, "Array index")
	}
	sym, ok := v.resolve(n.Name, n.Pos, true)
	if !ok {
		v.errorHint(n.Pos, diag.CodeUndeclaredVariable, diag.DidYouMean(n.Name, v.scope.visible()),
			"Array '%s' used before declaration", n.Name)
		return types.TypeUnknown
	}
	if read {
		sym.used = true
	}
	if sym.kind != symArray {
		if sym.typ == types.TypeUnknown {
			return types.TypeUnknown
		}
		v.errorf(n.Pos, diag.CodeTypeMismatch, "'%s' is not an array", n.Name)
		return types.TypeUnknown
	}
	if sym.dims == 0 {
		return sym.elem
	}
	if len(n.Indices) != sym.dims {
		v.errorf(n.Pos, diag.CodeTypeMismatch, "Array '%s' has %d dimension(s) but %d index(es) given",
			n.Name, sym.dims, len(n.Indices))
		return types.TypeUnknown
	}
	return sym.elem
}

func (v *validator) undeclaredRoutine(call *ast.CallExpr) {
	names := builtins.Names()
	for name := range v.routines {
		names = append(names, name)
	}
	sort.Strings(names)
	v.errorHint(call.Pos, diag.CodeUndeclaredRoutine, diag.DidYouMean(call.Callee, names),
		"Routine '%s' is not declared", call.Callee)
}

func (v *validator) VisitLiteral(n *ast.Literal) types.DataType {
	if n.Value == nil {
		v.errorf(n.Pos, diag.CodeIncompleteNode, "Literal has no value")
		return types.TypeUnknown
	}
	return n.Value.Type()
}

func (v *validator) VisitIdentifier(n *ast.Identifier) types.DataType {
	if sym, ok := v.resolve(n.Name, n.Pos, false); ok {
		sym.used = true
		return sym.typ
	}
	if r, ok := v.routines[n.Name]; ok {
		if r.isFunction {
			v.errorf(n.Pos, diag.CodeInvalidCall, "FUNCTION '%s' must be called with parentheses: %s(...)", n.Name, n.Name)
			return r.returns
		}
		v.errorf(n.Pos, diag.CodeInvalidCall, "PROCEDURE '%s' does not return a value", n.Name)
		return types.TypeUnknown
	}
	v.errorHint(n.Pos, diag.CodeUndeclaredVariable, diag.DidYouMean(n.Name, v.scope.visible()),
		"Variable '%s' used before declaration", n.Name)
	return types.TypeUnknown
}

func (v *validator) VisitArrayAccess(n *ast.ArrayAccess) types.DataType {
	return v.arrayAccess(n, true)
}

func (v *validator) VisitCall(n *ast.CallExpr) types.DataType {
	if r, ok := v.routines[n.Callee]; ok {
		if !r.isFunction {
			v.errorf(n.Pos, diag.CodeInvalidCall,
				"PROCEDURE '%s' does not return a value; use CALL %s(...)", n.Callee, n.Callee)
		}
		v.noteCall(r, n.Pos)
		v.checkArgs(r, n)
		return r.returns
	}

	if b, ok := builtins.Lookup(n.Callee); ok {
		if len(n.Args) != len(b.Params) {
			v.errorf(n.Pos, diag.CodeArgumentCount, "Built-in function '%s' expects %d argument(s), got %d",
				b.Name, len(b.Params), len(n.Args))
		}
		for i, arg := range n.Args {
			t := v.expr(arg, n.Pos)
			if i < len(b.Params) {
				v.checkAssignable(arg, t, b.Params[i], fmt.Sprintf("argument %d of %s", i+1, b.Name))
			}
		}
		return b.Returns
	}

	if sym, ok := v.scope.lookup(n.Callee); ok && sym.kind == symArray {
		sym.used = true
		v.errorf(n.Pos, diag.CodeInvalidCall, "'%s' is an array; index it with [ ] instead of ( )", n.Callee)
	} else {
		v.undeclaredRoutine(n)
	}
	v.exprs(n.Args, n.Pos)
	return types.TypeUnknown
}

func (v *validator) VisitUnary(n *ast.UnaryExpr) types.DataType {
	t := v.expr(n.Operand, n.Pos)
	switch n.Op {
	case ast.OpNot:
		v.operand(n, t, types.TypeBoolean == t, "a BOOLEAN")
		return types.TypeBoolean
	case ast.OpNeg:
		if v.operand(n, t, t.IsNumeric(), "a number") {
			return t
		}
	}
	return types.TypeUnknown
}

func (v *validator) VisitBinary(n *ast.BinaryExpr) types.DataType {
	lt := v.expr(n.Left, n.Pos)
	rt := v.expr(n.Right, n.Pos)

	switch n.Op {
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpMod:
		if v.numeric(n, lt, rt) {
			return arithmetic(lt, rt)
		}
		return types.TypeUnknown
	case ast.OpDiv:
		v.numeric(n, lt, rt)
		return types.TypeReal
	case ast.OpIntDiv:
		v.numeric(n, lt, rt)
		return types.TypeInteger
	case ast.OpConcat:
		v.operand(n, lt, lt != types.TypeArray, "a value")
		v.operand(n, rt, rt != types.TypeArray, "a value")
		return types.TypeString
	case ast.OpAnd, ast.OpOr:
		v.operand(n, lt, lt == types.TypeBoolean, "a BOOLEAN")
		v.operand(n, rt, rt == types.TypeBoolean, "a BOOLEAN")
		return types.TypeBoolean
	case ast.OpEq, ast.OpNotEq, ast.OpLt, ast.OpLtEq, ast.OpGt, ast.OpGtEq:
		v.comparison(n, lt, rt)
		return types.TypeBoolean
	}
	return types.TypeUnknown
}

// operand warns when an operand of n has type t and ok is false.
func (v *validator) operand(n ast.Expr, t types.DataType, ok bool, want string) bool {
	if ok || t == types.TypeUnknown {
		return true
	}
	v.warn(n.Position(), diag.CodeTypeUncertain, "Operator '%s' expects %s, got %s", opOf(n), want, t)
	return false
}

func (v *validator) numeric(n *ast.BinaryExpr, lt, rt types.DataType) bool {
	l := v.operand(n, lt, lt.IsNumeric(), "a number")
	r := v.operand(n, rt, rt.IsNumeric(), "a number")
	return l && r
}

func (v *validator) comparison(n *ast.BinaryExpr, lt, rt types.DataType) {
	if lt == types.TypeArray || rt == types.TypeArray {
		v.warn(n.Pos, diag.CodeTypeUncertain, "Arrays cannot be compared with '%s'", n.Op)
		return
	}
	if !types.Comparable(lt, rt) {
		v.warn(n.Pos, diag.CodeTypeUncertain, "Cannot compare %s with %s", lt, rt)
		return
	}
	ordered := n.Op != ast.OpEq && n.Op != ast.OpNotEq
	if ordered && (lt == types.TypeBoolean || rt == types.TypeBoolean) {
		v.warn(n.Pos, diag.CodeTypeUncertain, "BOOLEAN values cannot be ordered with '%s'", n.Op)
	}
}

// arithmetic is the result type of + - * MOD on numeric operands.
func arithmetic(lt, rt types.DataType) types.DataType {
	switch {
	case lt == types.TypeInteger && rt == types.TypeInteger:
		return types.TypeInteger
	case lt == types.TypeReal || rt == types.TypeReal:
		return types.TypeReal
	}
	return types.TypeUnknown
}

func opOf(n ast.Expr) ast.Operator {
	switch e := n.(type) {
	case *ast.BinaryExpr:
		return e.Op
	case *ast.UnaryExpr:
		return e.Op
	}
	return ast.OpInvalid
}

func (v *validator) VisitBadExpr(*ast.BadExpr) types.DataType {
	return types.TypeUnknown
}

package validation

import (
	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/types"
	"github.com/opal-lang/pseudo/runtime/builtins"
)

var _ ast.StmtVisitor[struct{}] = (*validator)(nil)

func (v *validator) stmt(s ast.Stmt) {
	ast.AcceptStmt[struct{}](s, v)
}

// declare adds sym to the innermost scope unless the name is taken there.
func (v *validator) declare(sym *symbol) {
	if sym.name == "" {
		return
	}
	if prev, ok := v.scope.local(sym.name); ok {
		v.errorf(sym.pos, diag.CodeRedeclaration, "Variable '%s' is already declared on line %d", sym.name, prev.pos.Line)
		return
	}
	if r, ok := v.routines[sym.name]; ok {
		v.errorf(sym.pos, diag.CodeRedeclaration, "'%s' is already declared as a %s on line %d", sym.name, r.kind(), r.pos.Line)
		return
	}
	v.scope.declare(sym)
}

func (v *validator) VisitVarDecl(n *ast.VarDecl) struct{} {
	v.declare(&symbol{name: n.Name, kind: symVariable, typ: n.Type, pos: n.Pos})
	return struct{}{}
}

func (v *validator) VisitArrayDecl(n *ast.ArrayDecl) struct{} {
	if len(n.Dims) == 0 {
		v.errorf(n.Pos, diag.CodeIncompleteNode, "Array '%s' has no dimensions", n.Name)
	}
	for _, d := range n.Dims {
		v.checkInteger(d.Lower, n.Pos, "Array bound")
		v.checkInteger(d.Upper, n.Pos, "Array bound")
		lo, lok := intConstant(d.Lower)
		hi, hok := intConstant(d.Upper)
		if lok && hok && lo > hi {
			v.errorf(n.Pos, diag.CodeInvalidArrayBounds,
				"Array '%s' lower bound %d is greater than upper bound %d", n.Name, lo, hi)
		}
	}
	v.declare(&symbol{name: n.Name, kind: symArray, typ: types.TypeArray, elem: n.Elem, dims: len(n.Dims), pos: n.Pos})
	return struct{}{}
}

func (v *validator) VisitConstDecl(n *ast.ConstDecl) struct{} {
	t := v.expr(n.Value, n.Pos)
	v.declare(&symbol{name: n.Name, kind: symConstant, typ: t, pos: n.Pos})
	return struct{}{}
}

func (v *validator) VisitAssignment(n *ast.Assignment) struct{} {
	vt := v.expr(n.Value, n.Pos)

	switch target := n.Target.(type) {
	case *ast.Identifier:
		sym, ok := v.scope.lookup(target.Name)
		if !ok {
			if r, isRoutine := v.routines[target.Name]; isRoutine {
				v.errorf(target.Pos, diag.CodeInvalidCall, "Cannot assign to %s '%s'", r.kind(), target.Name)
				break
			}
			// Assigning an unknown name declares it.
			sym := &symbol{name: target.Name, kind: symVariable, typ: vt, pos: target.Pos}
			if vt == types.TypeArray {
				sym.kind, sym.elem = symArray, types.TypeUnknown
			}
			v.scope.declare(sym)
			break
		}
		switch sym.kind {
		case symConstant:
			v.errorf(target.Pos, diag.CodeConstantAssignment, "Cannot assign to constant '%s'", target.Name)
		case symArray:
			v.checkAssignable(n.Value, vt, types.TypeArray, "array '"+target.Name+"'")
		default:
			v.checkAssignable(n.Value, vt, sym.typ, "variable '"+target.Name+"'")
		}
	case *ast.ArrayAccess:
		elem := v.arrayAccess(target, false)
		v.checkAssignable(n.Value, vt, elem, "element of '"+target.Name+"'")
	case *ast.BadExpr:
	case nil:
		v.errorf(n.Pos, diag.CodeIncompleteNode, "Assignment has no target")
	default:
		v.errorf(n.Target.Position(), diag.CodeUnsupportedExpression, "Cannot assign to this expression")
	}
	return struct{}{}
}

func (v *validator) VisitIf(n *ast.IfStmt) struct{} {
	v.checkCondition(n.Cond, n.Pos, "IF")
	v.nested(n.Then)
	v.nested(n.Else)
	return struct{}{}
}

func (v *validator) VisitWhile(n *ast.WhileStmt) struct{} {
	v.checkCondition(n.Cond, n.Pos, "WHILE")
	v.loopDepth++
	v.nested(n.Body)
	v.loopDepth--
	return struct{}{}
}

func (v *validator) VisitFor(n *ast.ForStmt) struct{} {
	varType := types.TypeInteger
	if n.Start == nil || n.End == nil {
		v.errorf(n.Pos, diag.CodeIncompleteNode, "FOR loop is missing a bound")
	}
	for _, e := range []ast.Expr{n.Start, n.End, n.Step} {
		if e == nil {
			continue
		}
		if t := v.checkNumeric(e, n.Pos, "FOR bound"); t == types.TypeReal {
			varType = types.TypeReal
		}
	}
	if sym, ok := v.scope.lookup(n.Var); ok && sym.kind == symConstant {
		v.errorf(n.Pos, diag.CodeConstantAssignment, "Cannot use constant '%s' as a loop counter", n.Var)
	}

	loop := newScope(v.scope)
	if n.Var != "" {
		loop.declare(&symbol{name: n.Var, kind: symLoopVar, typ: varType, pos: n.Pos})
	}
	saved := v.scope
	v.scope = loop
	v.loopDepth++
	v.nested(n.Body)
	v.loopDepth--
	v.scope = saved
	v.closeScope(loop)
	return struct{}{}
}

func (v *validator) VisitRepeatUntil(n *ast.RepeatUntilStmt) struct{} {
	v.loopDepth++
	v.nested(n.Body)
	v.loopDepth--
	v.checkCondition(n.Cond, n.Pos, "UNTIL")
	return struct{}{}
}

func (v *validator) VisitCase(n *ast.CaseStmt) struct{} {
	subject := v.expr(n.Subject, n.Pos)
	for _, b := range n.Branches {
		for _, l := range b.Labels {
			v.checkLabel(l.Value, b.Pos, subject)
			if l.Upper != nil {
				v.checkLabel(l.Upper, b.Pos, subject)
			}
		}
		v.nested(b.Body)
	}
	v.nested(n.Otherwise)
	return struct{}{}
}

func (v *validator) checkLabel(e ast.Expr, pos ast.Pos, subject types.DataType) {
	t := v.expr(e, pos)
	if types.Comparable(t, subject) {
		return
	}
	if isLiteral(e) {
		v.errorf(e.Position(), diag.CodeTypeMismatch, "CASE label of type %s cannot match a value of type %s", t, subject)
		return
	}
	v.warn(e.Position(), diag.CodeTypeUncertain, "CASE label of type %s may never match a value of type %s", t, subject)
}

func (v *validator) VisitFunctionDecl(n *ast.FunctionDecl) struct{} {
	v.checkTopLevel(n.Pos, "FUNCTION", n.Name)
	return struct{}{}
}

func (v *validator) VisitProcedureDecl(n *ast.ProcedureDecl) struct{} {
	v.checkTopLevel(n.Pos, "PROCEDURE", n.Name)
	return struct{}{}
}

func (v *validator) checkTopLevel(pos ast.Pos, kind, name string) {
	if v.depth > 0 || v.current != nil {
		v.errorf(pos, diag.CodeRoutineNotTopLevel, "%s '%s' must be declared at the top level of the program", kind, name)
	}
}

func (v *validator) VisitReturn(n *ast.ReturnStmt) struct{} {
	r := v.current
	switch {
	case r == nil:
		v.errorf(n.Pos, diag.CodeReturnOutsideRoutine, "RETURN used outside a FUNCTION or PROCEDURE")
		if n.Value != nil {
			v.expr(n.Value, n.Pos)
		}
	case r.isFunction && n.Value == nil:
		v.errorf(n.Pos, diag.CodeTypeMismatch, "FUNCTION '%s' must return a value of type %s", r.name, r.returns)
	case r.isFunction:
		t := v.expr(n.Value, n.Pos)
		v.checkAssignable(n.Value, t, r.returns, "the result of '"+r.name+"'")
	case n.Value != nil:
		v.errorf(n.Pos, diag.CodeTypeMismatch, "PROCEDURE '%s' cannot return a value", r.name)
		v.expr(n.Value, n.Pos)
	}
	return struct{}{}
}

func (v *validator) VisitCallStmt(n *ast.CallStmt) struct{} {
	call := n.Call
	if call == nil {
		v.errorf(n.Pos, diag.CodeIncompleteNode, "CALL has no procedure")
		return struct{}{}
	}
	r, ok := v.routines[call.Callee]
	if !ok {
		if _, builtin := builtins.Lookup(call.Callee); builtin {
			v.errorf(call.Pos, diag.CodeInvalidCall,
				"Built-in function '%s' returns a value and cannot be used with CALL", call.Callee)
		} else {
			v.undeclaredRoutine(call)
		}
		v.exprs(call.Args, call.Pos)
		return struct{}{}
	}
	if r.isFunction {
		v.errorf(call.Pos, diag.CodeInvalidCall,
			"'%s' is a FUNCTION; use its result in an expression instead of CALL", r.name)
	}
	v.noteCall(r, n.Pos)
	v.checkArgs(r, call)
	return struct{}{}
}

func (v *validator) VisitOutput(n *ast.OutputStmt) struct{} {
	if len(n.Values) == 0 {
		v.errorf(n.Pos, diag.CodeIncompleteNode, "OUTPUT needs at least one value")
	}
	v.exprs(n.Values, n.Pos)
	return struct{}{}
}

func (v *validator) VisitInput(n *ast.InputStmt) struct{} {
	switch target := n.Target.(type) {
	case *ast.Identifier:
		sym, ok := v.scope.lookup(target.Name)
		if !ok {
			// INPUT declares unknown names; the type follows the text read.
			v.declare(&symbol{name: target.Name, kind: symVariable, typ: types.TypeUnknown, pos: target.Pos})
			break
		}
		switch sym.kind {
		case symConstant:
			v.errorf(target.Pos, diag.CodeConstantAssignment, "Cannot INPUT into constant '%s'", target.Name)
		case symArray:
			v.errorf(target.Pos, diag.CodeTypeMismatch, "Cannot INPUT into the whole array '%s'", target.Name)
		}
	case *ast.ArrayAccess:
		v.arrayAccess(target, false)
	case *ast.BadExpr:
	case nil:
		v.errorf(n.Pos, diag.CodeIncompleteNode, "INPUT has no target")
	default:
		v.errorf(n.Target.Position(), diag.CodeUnsupportedExpression, "Cannot INPUT into this expression")
	}
	return struct{}{}
}

func (v *validator) VisitBreak(n *ast.BreakStmt) struct{} {
	if v.loopDepth == 0 {
		v.errorf(n.Pos, diag.CodeLoopControlOutside, "BREAK used outside a loop")
	}
	return struct{}{}
}

func (v *validator) VisitContinue(n *ast.ContinueStmt) struct{} {
	if v.loopDepth == 0 {
		v.errorf(n.Pos, diag.CodeLoopControlOutside, "CONTINUE used outside a loop")
	}
	return struct{}{}
}

func (v *validator) VisitBadStmt(*ast.BadStmt) struct{} {
	return struct{}{}
}

// checkArgs matches call arguments against a user routine's parameters.
func (v *validator) checkArgs(r *routine, call *ast.CallExpr) {
	if len(call.Args) != len(r.params) {
		v.errorf(call.Pos, diag.CodeArgumentCount, "%s '%s' expects %d argument(s), got %d",
			r.kind(), r.name, len(r.params), len(call.Args))
	}
	for i, arg := range call.Args {
		t := v.expr(arg, call.Pos)
		if i >= len(r.params) || arg == nil {
			continue
		}
		p := r.params[i]
		if p.ByRef && !r.isFunction {
			v.checkByRef(arg, p.Name)
		}
		if p.Type == types.TypeArray {
			v.checkAssignable(arg, t, types.TypeArray, "parameter '"+p.Name+"'")
			continue
		}
		v.checkAssignable(arg, t, p.Type, "parameter '"+p.Name+"'")
	}
}

func (v *validator) checkByRef(arg ast.Expr, param string) {
	switch a := arg.(type) {
	case *ast.Identifier:
		if sym, ok := v.scope.lookup(a.Name); ok && sym.kind == symConstant {
			v.errorf(a.Pos, diag.CodeByRefArgument, "Constant '%s' cannot be passed BYREF to '%s'", a.Name, param)
		}
	case *ast.ArrayAccess, *ast.BadExpr:
	default:
		v.errorf(arg.Position(), diag.CodeByRefArgument, "BYREF parameter '%s' needs a variable, not an expression", param)
	}
}

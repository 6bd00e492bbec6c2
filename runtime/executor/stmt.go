package executor

import (
	"fmt"
	"strings"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/invariant"
	"github.com/opal-lang/pseudo/core/types"
)

var _ ast.StmtVisitor[completion] = (*interpreter)(nil)

// exec runs one statement after checking the limits.
func (in *interpreter) exec(s ast.Stmt) completion {
	in.line = s.Position().Line
	if err := in.checkCancelled(); err != nil {
		return failed(err)
	}
	if err := in.tick(); err != nil {
		return failed(err)
	}
	if in.telemetry != nil {
		in.telemetry.Statements++
	}
	if in.config.Debug >= DebugDetailed {
		in.recordDebugEvent("statement", in.line, fmt.Sprintf("%T", s))
	}
	return ast.AcceptStmt[completion](s, in)
}

// block runs statements until one completes abnormally.
func (in *interpreter) block(body []ast.Stmt) completion {
	for _, s := range body {
		if c := in.exec(s); c.kind != completeNormal || c.err != nil {
			return c
		}
	}
	return normal
}

// loopBody runs one iteration and reports whether the loop should stop.
// The returned completion is what the loop itself completes with.
func (in *interpreter) loopBody(body []ast.Stmt) (completion, bool) {
	c := in.block(body)
	switch {
	case c.err != nil, c.kind == completeReturn:
		return c, true
	case c.kind == completeBreak:
		return normal, true
	}
	return normal, false
}

func (in *interpreter) VisitVarDecl(n *ast.VarDecl) completion {
	in.env.define(n.Name, &cell{val: types.Zero(n.Type), typ: n.Type})
	return normal
}

func (in *interpreter) VisitArrayDecl(n *ast.ArrayDecl) completion {
	dims := make([]types.Bounds, len(n.Dims))
	total := 1
	for i, d := range n.Dims {
		lo, err := in.evalInt(d.Lower, "Array bound")
		if err != nil {
			return failed(err)
		}
		hi, err := in.evalInt(d.Upper, "Array bound")
		if err != nil {
			return failed(err)
		}
		if lo > hi {
			return failed(in.errorf(diag.CodeInvalidArrayBounds, "Array '%s' bounds %d:%d are reversed", n.Name, lo, hi))
		}
		size := hi - lo + 1
		if size > int64(in.config.MaxArrayElements) || int64(total)*size > int64(in.config.MaxArrayElements) {
			return failed(in.errorf(diag.CodeArrayTooLarge, "Array '%s' exceeds %d elements", n.Name, in.config.MaxArrayElements))
		}
		total *= int(size)
		dims[i] = types.Bounds{Lower: int(lo), Upper: int(hi)}
	}
	in.env.define(n.Name, &cell{val: types.NewArray(n.Elem, dims), typ: types.TypeArray})
	return normal
}

func (in *interpreter) VisitConstDecl(n *ast.ConstDecl) completion {
	v, err := in.eval(n.Value)
	if err != nil {
		return failed(err)
	}
	in.env.define(n.Name, &cell{val: v, typ: v.Type(), constant: true})
	return normal
}

func (in *interpreter) VisitAssignment(n *ast.Assignment) completion {
	v, err := in.eval(n.Value)
	if err != nil {
		return failed(err)
	}
	if err := in.store(n.Target, v); err != nil {
		return failed(err)
	}
	return normal
}

// store writes v to an assignable target. An unknown name is declared in
// the innermost scope with v's type.
func (in *interpreter) store(target ast.Expr, v types.Value) error {
	switch t := target.(type) {
	case *ast.Identifier:
		c := in.env.lookup(t.Name)
		if c == nil {
			in.env.define(t.Name, &cell{val: v, typ: v.Type()})
			return nil
		}
		return in.assign(c, t.Name, v)
	case *ast.ArrayAccess:
		arr, idx, err := in.element(t)
		if err != nil {
			return err
		}
		converted, err := in.convert(v, arr.Elem, "element of '"+t.Name+"'")
		if err != nil {
			return err
		}
		arr.Set(idx, converted)
		return nil
	}
	invariant.Invariant(false, "unassignable target %T", target)
	return nil
}

func (in *interpreter) assign(c *cell, name string, v types.Value) error {
	if c.constant {
		return in.errorf(diag.CodeConstantAssignment, "Cannot assign to constant '%s'", name)
	}
	converted, err := in.convert(v, c.typ, "variable '"+name+"'")
	if err != nil {
		return err
	}
	c.val = converted
	return nil
}

// convert coerces v for storage in a slot of type t. An array is stored as
// is, so both names share its elements.
func (in *interpreter) convert(v types.Value, t types.DataType, what string) (types.Value, error) {
	if t == types.TypeArray {
		if _, ok := v.(*types.Array); !ok {
			return nil, in.mismatch("Cannot assign %s to %s of type ARRAY", typeName(v), what)
		}
		return v, nil
	}
	if _, isArray := v.(*types.Array); isArray && t != types.TypeUnknown {
		return nil, in.mismatch("Cannot assign ARRAY to %s of type %s", what, t)
	}
	converted, ok := types.Convert(v, t)
	if !ok {
		return nil, in.mismatch("Cannot assign %s to %s of type %s", typeName(v), what, t)
	}
	return converted, nil
}

func (in *interpreter) VisitIf(n *ast.IfStmt) completion {
	ok, err := in.evalBool(n.Cond, "IF")
	if err != nil {
		return failed(err)
	}
	if ok {
		return in.block(n.Then)
	}
	return in.block(n.Else)
}

func (in *interpreter) VisitWhile(n *ast.WhileStmt) completion {
	for {
		in.line = n.Line
		ok, err := in.evalBool(n.Cond, "WHILE")
		if err != nil {
			return failed(err)
		}
		if !ok {
			return normal
		}
		if c, stop := in.loopBody(n.Body); stop {
			return c
		}
	}
}

func (in *interpreter) VisitFor(n *ast.ForStmt) completion {
	start, err := in.evalNumber(n.Start, "FOR start")
	if err != nil {
		return failed(err)
	}
	end, err := in.evalNumber(n.End, "FOR end")
	if err != nil {
		return failed(err)
	}
	var step types.Value = types.Integer(1)
	if n.Step != nil {
		if step, err = in.evalNumber(n.Step, "FOR STEP"); err != nil {
			return failed(err)
		}
	}

	loop := newEnv(in.env)
	counter := &cell{}
	loop.define(n.Var, counter)
	saved := in.env
	in.env = loop
	defer func() { in.env = saved }()

	// Bounds are fixed at entry. INTEGER bounds give an INTEGER counter.
	si, sok := start.(types.Integer)
	ei, eok := end.(types.Integer)
	st, stok := step.(types.Integer)
	if sok && eok && stok {
		if st == 0 {
			return failed(in.errorf(diag.CodeInvalidStep, "FOR loop STEP cannot be zero"))
		}
		counter.typ = types.TypeInteger
		for i := si; (st > 0 && i <= ei) || (st < 0 && i >= ei); i += st {
			counter.val = i
			in.line = n.Line
			if err := in.tick(); err != nil {
				return failed(err)
			}
			if c, stop := in.loopBody(n.Body); stop {
				return c
			}
			if (st > 0 && i > ei-st) || (st < 0 && i < ei-st) {
				break // next increment would overflow or pass the end
			}
		}
		return normal
	}

	sf, _ := types.AsFloat(start)
	ef, _ := types.AsFloat(end)
	stf, _ := types.AsFloat(step)
	if stf == 0 {
		return failed(in.errorf(diag.CodeInvalidStep, "FOR loop STEP cannot be zero"))
	}
	counter.typ = types.TypeReal
	for k := 0; ; k++ {
		f := sf + float64(k)*stf
		if (stf > 0 && f > ef) || (stf < 0 && f < ef) {
			return normal
		}
		counter.val = types.Real(f)
		in.line = n.Line
		if err := in.tick(); err != nil {
			return failed(err)
		}
		if c, stop := in.loopBody(n.Body); stop {
			return c
		}
	}
}

func (in *interpreter) VisitRepeatUntil(n *ast.RepeatUntilStmt) completion {
	for {
		if c, stop := in.loopBody(n.Body); stop {
			return c
		}
		in.line = n.Cond.Position().Line
		done, err := in.evalBool(n.Cond, "UNTIL")
		if err != nil {
			return failed(err)
		}
		if done {
			return normal
		}
	}
}

func (in *interpreter) VisitCase(n *ast.CaseStmt) completion {
	subject, err := in.eval(n.Subject)
	if err != nil {
		return failed(err)
	}
	for _, b := range n.Branches {
		for _, l := range b.Labels {
			matched, err := in.matchLabel(subject, l)
			if err != nil {
				return failed(err)
			}
			if matched {
				return in.block(b.Body)
			}
		}
	}
	return in.block(n.Otherwise)
}

func (in *interpreter) matchLabel(subject types.Value, l ast.CaseLabel) (bool, error) {
	lo, err := in.eval(l.Value)
	if err != nil {
		return false, err
	}
	if l.Upper == nil {
		order, err := in.compare(subject, lo, ast.OpEq)
		return err == nil && order == 0, err
	}
	hi, err := in.eval(l.Upper)
	if err != nil {
		return false, err
	}
	below, err := in.compare(subject, lo, ast.OpGtEq)
	if err != nil {
		return false, err
	}
	above, err := in.compare(subject, hi, ast.OpLtEq)
	if err != nil {
		return false, err
	}
	return below >= 0 && above <= 0, nil
}

func (in *interpreter) VisitFunctionDecl(*ast.FunctionDecl) completion {
	return normal
}

func (in *interpreter) VisitProcedureDecl(*ast.ProcedureDecl) completion {
	return normal
}

func (in *interpreter) VisitReturn(n *ast.ReturnStmt) completion {
	if in.current == nil {
		return failed(in.errorf(diag.CodeReturnOutsideRoutine, "RETURN used outside a FUNCTION or PROCEDURE"))
	}
	c := completion{kind: completeReturn}
	if n.Value != nil {
		v, err := in.eval(n.Value)
		if err != nil {
			return failed(err)
		}
		c.value = v
	}
	return c
}

func (in *interpreter) VisitCallStmt(n *ast.CallStmt) completion {
	if _, err := in.call(n.Call, false); err != nil {
		return failed(err)
	}
	return normal
}

func (in *interpreter) VisitOutput(n *ast.OutputStmt) completion {
	parts := make([]string, len(n.Values))
	for i, e := range n.Values {
		v, err := in.eval(e)
		if err != nil {
			return failed(err)
		}
		parts[i] = v.String()
	}
	in.emit(Event{Kind: EventOutput, Text: strings.Join(parts, in.config.OutputJoin.separator()), Line: n.Pos.Line})
	return normal
}

func (in *interpreter) VisitInput(n *ast.InputStmt) completion {
	switch t := n.Target.(type) {
	case *ast.Identifier:
		text, err := in.readInput(t.Name)
		if err != nil {
			return failed(err)
		}
		c := in.env.lookup(t.Name)
		typ := types.TypeUnknown
		if c != nil {
			typ = c.typ
		}
		v, err := in.parseInput(text, typ)
		if err != nil {
			return failed(err)
		}
		if c == nil {
			in.env.define(t.Name, &cell{val: v, typ: v.Type()})
			return normal
		}
		if err := in.assign(c, t.Name, v); err != nil {
			return failed(err)
		}
	case *ast.ArrayAccess:
		arr, idx, err := in.element(t)
		if err != nil {
			return failed(err)
		}
		text, err := in.readInput(t.Name)
		if err != nil {
			return failed(err)
		}
		v, err := in.parseInput(text, arr.Elem)
		if err != nil {
			return failed(err)
		}
		arr.Set(idx, v)
	default:
		invariant.Invariant(false, "unassignable INPUT target %T", n.Target)
	}
	return normal
}

func (in *interpreter) VisitBreak(*ast.BreakStmt) completion {
	return completion{kind: completeBreak}
}

func (in *interpreter) VisitContinue(*ast.ContinueStmt) completion {
	return completion{kind: completeContinue}
}

func (in *interpreter) VisitBadStmt(n *ast.BadStmt) completion {
	invariant.Invariant(false, "cannot execute a statement that failed to parse at line %d", n.Line)
	return normal
}

package executor

import (
	"sort"
	"time"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/types"
	"github.com/opal-lang/pseudo/runtime/builtins"
)

// routineFrame identifies the routine whose body is running.
type routineFrame struct {
	name       string
	isFunction bool
}

// call invokes a user routine or built-in. wantValue is true when the call
// appears in an expression.
func (in *interpreter) call(call *ast.CallExpr, wantValue bool) (types.Value, error) {
	if decl, ok := in.routines[call.Callee]; ok {
		return in.callRoutine(decl, call, wantValue)
	}
	if b, ok := builtins.Lookup(call.Callee); ok {
		if !wantValue {
			return nil, in.errorf(diag.CodeInvalidCall, "Built-in function '%s' cannot be used with CALL", b.Name)
		}
		return in.callBuiltin(b, call)
	}
	return nil, in.errorf(diag.CodeUndeclaredRoutine, "Routine '%s' is not declared", call.Callee)
}

func (in *interpreter) callBuiltin(b *builtins.Builtin, call *ast.CallExpr) (types.Value, error) {
	if len(call.Args) != len(b.Params) {
		return nil, in.errorf(diag.CodeArgumentCount, "Built-in function '%s' expects %d argument(s), got %d",
			b.Name, len(b.Params), len(call.Args))
	}
	args := make([]types.Value, len(call.Args))
	for i, e := range call.Args {
		v, err := in.eval(e)
		if err != nil {
			return nil, err
		}
		converted, ok := types.Convert(v, b.Params[i])
		if !ok {
			return nil, in.mismatch("Argument %d of %s must be %s, got %s", i+1, b.Name, b.Params[i], typeName(v))
		}
		args[i] = converted
	}
	v, err := b.Fn(in.builtins, args)
	if err != nil {
		return nil, in.errorf(diag.CodeInvalidArgument, "%s: %v", b.Name, err)
	}
	return v, nil
}

func (in *interpreter) callRoutine(decl ast.Stmt, call *ast.CallExpr, wantValue bool) (types.Value, error) {
	var (
		frame   routineFrame
		params  []ast.Param
		body    []ast.Stmt
		returns types.DataType
	)
	switch d := decl.(type) {
	case *ast.FunctionDecl:
		frame = routineFrame{name: d.Name, isFunction: true}
		params, body, returns = d.Params, d.Body, d.Returns
	case *ast.ProcedureDecl:
		frame = routineFrame{name: d.Name}
		params, body = d.Params, d.Body
	}

	switch {
	case wantValue && !frame.isFunction:
		return nil, in.errorf(diag.CodeInvalidCall, "PROCEDURE '%s' does not return a value", frame.name)
	case !wantValue && frame.isFunction:
		return nil, in.errorf(diag.CodeInvalidCall, "'%s' is a FUNCTION; use its result in an expression", frame.name)
	case len(call.Args) != len(params):
		return nil, in.errorf(diag.CodeArgumentCount, "'%s' expects %d argument(s), got %d",
			frame.name, len(params), len(call.Args))
	case in.depth >= in.config.MaxCallDepth:
		return nil, in.errorf(diag.CodeStackOverflow, "Stack overflow")
	}

	// Arguments are evaluated in the caller's scope before binding.
	callee := newEnv(in.global)
	var writeBacks []func() error
	for i, p := range params {
		if p.ByRef && !frame.isFunction {
			wb, err := in.bindByRef(callee, p, call.Args[i])
			if err != nil {
				return nil, err
			}
			if wb != nil {
				writeBacks = append(writeBacks, wb)
			}
			continue
		}
		v, err := in.eval(call.Args[i])
		if err != nil {
			return nil, err
		}
		converted, err := in.convert(v, p.Type, "parameter '"+p.Name+"'")
		if err != nil {
			return nil, err
		}
		if err := in.checkElem(converted, p); err != nil {
			return nil, err
		}
		// BYVAL arrays get their own storage.
		callee.define(p.Name, &cell{val: types.Copy(converted), typ: p.Type})
	}

	in.depth++
	if in.telemetry != nil {
		in.telemetry.Calls++
		in.telemetry.MaxDepth = max(in.telemetry.MaxDepth, in.depth)
	}
	in.recordDebugEvent("call", in.line, frame.name)
	started := time.Now()

	savedEnv, savedFrame, savedLine := in.env, in.current, in.line
	in.env, in.current = callee, &frame
	c := in.block(body)
	if c.err == nil && (c.kind == completeBreak || c.kind == completeContinue) {
		c = failed(in.errorf(diag.CodeLoopControlOutside, "%s used outside a loop", c.kind))
	}
	in.env, in.current, in.line = savedEnv, savedFrame, savedLine
	in.depth--

	in.recordTiming(frame.name, time.Since(started))
	in.recordDebugEvent("return", in.line, frame.name)

	if c.err != nil {
		return nil, c.err
	}
	for _, wb := range writeBacks {
		if err := wb(); err != nil {
			return nil, err
		}
	}
	if !frame.isFunction {
		return nil, nil
	}
	if c.kind != completeReturn || c.value == nil {
		return nil, in.errorf(diag.CodeMissingReturn, "FUNCTION '%s' ended without returning a value", frame.name)
	}
	return in.convert(c.value, returns, "the result of '"+frame.name+"'")
}

// bindByRef aliases a BYREF parameter to the caller's storage. A variable
// shares its cell; an array element is copied in and written back when
// the call returns, through the returned function.
func (in *interpreter) bindByRef(callee *env, p ast.Param, arg ast.Expr) (func() error, error) {
	switch a := arg.(type) {
	case *ast.Identifier:
		c := in.env.lookup(a.Name)
		if c == nil {
			return nil, in.errorf(diag.CodeUndeclaredVariable, "Variable '%s' is not defined", a.Name)
		}
		if c.constant {
			return nil, in.errorf(diag.CodeByRefArgument, "Constant '%s' cannot be passed BYREF", a.Name)
		}
		if c.typ != p.Type {
			return nil, in.mismatch("BYREF argument '%s' is %s but parameter '%s' is %s", a.Name, c.typ, p.Name, p.Type)
		}
		if err := in.checkElem(c.val, p); err != nil {
			return nil, err
		}
		callee.define(p.Name, c)
		return nil, nil
	case *ast.ArrayAccess:
		arr, idx, err := in.element(a)
		if err != nil {
			return nil, err
		}
		v, err := in.convert(arr.At(idx), p.Type, "parameter '"+p.Name+"'")
		if err != nil {
			return nil, err
		}
		slot := &cell{val: v, typ: p.Type}
		callee.define(p.Name, slot)
		return func() error {
			back, err := in.convert(slot.val, arr.Elem, "element of '"+a.Name+"'")
			if err != nil {
				return err
			}
			arr.Set(idx, back)
			return nil
		}, nil
	}
	return nil, in.errorf(diag.CodeByRefArgument, "BYREF parameter '%s' needs a variable, not an expression", p.Name)
}

// checkElem verifies an array argument's element type against an
// ARRAY OF T parameter.
func (in *interpreter) checkElem(v types.Value, p ast.Param) error {
	arr, ok := v.(*types.Array)
	if !ok || p.Type != types.TypeArray || p.Elem == types.TypeUnknown {
		return nil
	}
	elem := arr.Elem
	for elem == types.TypeArray && len(arr.Elems) > 0 {
		arr = arr.Elems[0].(*types.Array)
		elem = arr.Elem
	}
	if elem != p.Elem {
		return in.mismatch("Parameter '%s' expects ARRAY OF %s, got ARRAY OF %s", p.Name, p.Elem, elem)
	}
	return nil
}

func (in *interpreter) recordTiming(name string, d time.Duration) {
	if in.timings == nil {
		return
	}
	t, ok := in.timings[name]
	if !ok {
		t = &RoutineTiming{Name: name}
		in.timings[name] = t
	}
	t.Calls++
	t.Duration += d
}

func sortTimings(ts []RoutineTiming) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Name < ts[j].Name })
}

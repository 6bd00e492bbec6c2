// Package validation checks a parsed program for semantic errors before it
// runs: undeclared names, type mismatches, misuse of routines and loop
// control. Every problem is reported; the checker never stops at the first.
package validation

import (
	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
	"github.com/opal-lang/pseudo/core/invariant"
	"github.com/opal-lang/pseudo/core/types"
	"github.com/opal-lang/pseudo/runtime/builtins"
)

// Result holds the semantic diagnostics of one program, each slice sorted
// by position.
type Result struct {
	Errors   []diag.Diagnostic
	Warnings []diag.Diagnostic
}

// IsValid reports whether the program may run.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validate checks prog. It is pure: the same tree always yields the same
// result, and BadStmt/BadExpr placeholders are skipped because the parser
// already reported them.
func Validate(prog *ast.Program) *Result {
	invariant.NotNil(prog, "program")

	v := &validator{
		routines: make(map[string]*routine),
		global:   newScope(nil),
		graph:    newCallGraph(),
	}
	v.scope = v.global
	v.run(prog)

	errs, warns := v.bag.Errors(), v.bag.Warnings()
	diag.SortByPosition(errs)
	diag.SortByPosition(warns)
	return &Result{Errors: errs, Warnings: warns}
}

type validator struct {
	bag      diag.Bag
	routines map[string]*routine
	global   *scope
	scope    *scope
	graph    *callGraph

	current   *routine // routine whose body is being checked
	loopDepth int
	depth     int // block nesting; routines are only legal at 0
}

func (v *validator) run(prog *ast.Program) {
	v.hoist(prog.Body)

	// Routine bodies see the finished global scope; checkDeclarationOrder
	// then flags globals a routine reads before the main program declares
	// them.
	v.block(prog.Body)
	for _, s := range prog.Body {
		switch r := s.(type) {
		case *ast.FunctionDecl:
			v.routineBody(v.routines[r.Name], r.Pos, r.Params, r.Body)
		case *ast.ProcedureDecl:
			v.routineBody(v.routines[r.Name], r.Pos, r.Params, r.Body)
		}
	}
	v.checkDeclarationOrder()
	v.closeScope(v.global)

	for _, err := range FindUnboundedRecursion(prog) {
		v.warn(err.Pos, diag.CodeInfiniteRecursion, "%s", err.Message)
	}
}

// hoist registers every top-level routine so calls may precede declarations.
func (v *validator) hoist(body []ast.Stmt) {
	for _, s := range body {
		var r *routine
		switch n := s.(type) {
		case *ast.FunctionDecl:
			r = &routine{name: n.Name, isFunction: true, params: n.Params, returns: n.Returns, pos: n.Pos}
		case *ast.ProcedureDecl:
			r = &routine{name: n.Name, params: n.Params, pos: n.Pos}
		default:
			continue
		}
		if r.name == "" {
			continue
		}
		if _, ok := builtins.Lookup(r.name); ok {
			v.errorf(r.pos, diag.CodeRedeclaration, "'%s' is a built-in function and cannot be redefined", r.name)
			continue
		}
		if prev, ok := v.routines[r.name]; ok {
			v.errorf(r.pos, diag.CodeRedeclaration, "Routine '%s' is already declared on line %d", r.name, prev.pos.Line)
			continue
		}
		v.routines[r.name] = r
	}
}

func (v *validator) routineBody(r *routine, pos ast.Pos, params []ast.Param, body []ast.Stmt) {
	if r == nil || r.pos != pos {
		// Duplicate or invalid declaration, already reported.
		return
	}
	sc := newScope(v.global)
	for _, p := range params {
		if p.Name == "" {
			continue
		}
		if prev, ok := sc.local(p.Name); ok {
			v.errorf(p.Pos, diag.CodeRedeclaration, "Parameter '%s' is already declared on line %d", p.Name, prev.pos.Line)
			continue
		}
		if p.ByRef && r.isFunction {
			v.errorf(p.Pos, diag.CodeByRefArgument, "BYREF parameter '%s' is only allowed in a PROCEDURE", p.Name)
		}
		sym := &symbol{name: p.Name, kind: symParam, typ: p.Type, pos: p.Pos, used: true}
		if p.Type == types.TypeArray {
			sym.kind, sym.elem = symArray, p.Elem
		}
		sc.declare(sym)
	}

	saved, savedLoop, savedScope := v.current, v.loopDepth, v.scope
	v.current, v.loopDepth, v.scope = r, 0, sc
	v.block(body)
	v.closeScope(sc)
	v.current, v.loopDepth, v.scope = saved, savedLoop, savedScope

	if r.isFunction && !alwaysReturns(body) {
		v.warn(pos, diag.CodeMissingReturn, "FUNCTION '%s' may end without returning a value", r.name)
	}
}

// closeScope reports variables that were declared but never read.
func (v *validator) closeScope(sc *scope) {
	for _, sym := range sc.order {
		if sym.used || sym.kind == symParam || sym.kind == symLoopVar {
			continue
		}
		if sym.kind == symConstant {
			v.warn(sym.pos, diag.CodeUnusedVariable, "Constant '%s' is declared but never used", sym.name)
			continue
		}
		v.warn(sym.pos, diag.CodeUnusedVariable, "Variable '%s' is declared but never used", sym.name)
	}
}

// block checks a statement list, warning once about code after a statement
// that always leaves it. Unreachable statements are still checked.
func (v *validator) block(body []ast.Stmt) {
	var leaver string
	warned := false
	for _, s := range body {
		if s == nil {
			continue
		}
		if leaver != "" && !warned {
			v.warn(s.Position(), diag.CodeUnreachableCode, "Unreachable code after %s", leaver)
			warned = true
		}
		v.stmt(s)
		if leaver != "" {
			continue
		}
		switch s.(type) {
		case *ast.ReturnStmt:
			leaver = "RETURN"
		case *ast.BreakStmt:
			leaver = "BREAK"
		case *ast.ContinueStmt:
			leaver = "CONTINUE"
		}
	}
}

// nested checks a block inside a compound statement.
func (v *validator) nested(body []ast.Stmt) {
	v.depth++
	v.block(body)
	v.depth--
}

func (v *validator) errorf(pos ast.Pos, code diag.Code, format string, args ...any) {
	v.bag.Add(diag.Semantic(pos.Line, pos.Column, diag.SeverityError, code, format, args...))
}

func (v *validator) warn(pos ast.Pos, code diag.Code, format string, args ...any) {
	v.bag.Add(diag.Semantic(pos.Line, pos.Column, diag.SeverityWarning, code, format, args...))
}

func (v *validator) errorHint(pos ast.Pos, code diag.Code, hint string, format string, args ...any) {
	v.bag.Add(diag.Semantic(pos.Line, pos.Column, diag.SeverityError, code, format, args...).WithHint(hint))
}

// alwaysReturns reports whether every path through body ends in RETURN.
func alwaysReturns(body []ast.Stmt) bool {
	for _, s := range body {
		switch n := s.(type) {
		case *ast.ReturnStmt:
			return true
		case *ast.IfStmt:
			if n.Else != nil && alwaysReturns(n.Then) && alwaysReturns(n.Else) {
				return true
			}
		case *ast.CaseStmt:
			if n.Otherwise == nil || !alwaysReturns(n.Otherwise) {
				continue
			}
			all := true
			for _, b := range n.Branches {
				all = all && alwaysReturns(b.Body)
			}
			if all {
				return true
			}
		case *ast.RepeatUntilStmt:
			if alwaysReturns(n.Body) {
				return true
			}
		}
	}
	return false
}

package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opal-lang/pseudo/core/ast"
)

// RecursionError describes a routine that always calls back into itself
// before it can return, so every call overflows the stack.
type RecursionError struct {
	Routine string   // The routine where the cycle was found
	Cycle   []string // The call path (e.g. ["A", "B", "A"])
	Pos     ast.Pos
	Message string
}

func (e *RecursionError) Error() string {
	return e.Message
}

// FindUnboundedRecursion returns one RecursionError per cycle of
// unconditional calls between top-level routines. A call is unconditional
// when it runs on every path through the routine before any RETURN, so
// ordinary guarded recursion is never reported.
func FindUnboundedRecursion(program *ast.Program) []*RecursionError {
	routines := make(map[string]ast.Stmt)
	var names []string
	for _, s := range program.Body {
		switch r := s.(type) {
		case *ast.FunctionDecl:
			if _, dup := routines[r.Name]; !dup {
				routines[r.Name] = r
				names = append(names, r.Name)
			}
		case *ast.ProcedureDecl:
			if _, dup := routines[r.Name]; !dup {
				routines[r.Name] = r
				names = append(names, r.Name)
			}
		}
	}
	sort.Strings(names)

	var errs []*RecursionError
	reported := make(map[string]bool)
	for _, name := range names {
		if err := detectRecursion(name, routines, nil, make(map[string]bool)); err != nil {
			key := cycleKey(err.Cycle)
			if !reported[key] {
				reported[key] = true
				errs = append(errs, err)
			}
		}
	}
	return errs
}

// detectRecursion performs a depth-first search over unconditional calls.
func detectRecursion(name string, routines map[string]ast.Stmt, path []string, visiting map[string]bool) *RecursionError {
	if visiting[name] {
		start := 0
		for i, n := range path {
			if n == name {
				start = i
				break
			}
		}
		cycle := append(append([]string{}, path[start:]...), name)
		routine := routines[cycle[0]]
		return &RecursionError{
			Routine: cycle[0],
			Cycle:   cycle,
			Pos:     routine.Position(),
			Message: fmt.Sprintf("Routine '%s' always calls itself (%s) and can never finish",
				cycle[0], strings.Join(cycle, " -> ")),
		}
	}

	routine, exists := routines[name]
	if !exists {
		// Unknown or built-in; reported elsewhere.
		return nil
	}

	visiting[name] = true
	path = append(path, name)
	for _, callee := range unconditionalCalls(bodyOf(routine)) {
		if err := detectRecursion(callee, routines, path, visiting); err != nil {
			return err
		}
	}
	delete(visiting, name)

	return nil
}

// cycleKey identifies a cycle independently of where the search entered it.
func cycleKey(cycle []string) string {
	members := append([]string{}, cycle[:len(cycle)-1]...)
	sort.Strings(members)
	return strings.Join(members, ",")
}

func bodyOf(s ast.Stmt) []ast.Stmt {
	switch r := s.(type) {
	case *ast.FunctionDecl:
		return r.Body
	case *ast.ProcedureDecl:
		return r.Body
	}
	return nil
}

// unconditionalCalls lists the routines a body calls on every path, in
// order, stopping at the first statement that may leave the body.
func unconditionalCalls(body []ast.Stmt) []string {
	var refs []string
	for _, s := range body {
		switch n := s.(type) {
		case *ast.ReturnStmt:
			refs = append(refs, callsIn(n.Value)...)
			return refs
		case *ast.BreakStmt, *ast.ContinueStmt:
			return refs
		case *ast.ConstDecl:
			refs = append(refs, callsIn(n.Value)...)
		case *ast.Assignment:
			refs = append(refs, callsIn(n.Value)...)
		case *ast.CallStmt:
			if n.Call != nil {
				refs = append(refs, callsIn(n.Call)...)
			}
		case *ast.OutputStmt:
			for _, v := range n.Values {
				refs = append(refs, callsIn(v)...)
			}
		case *ast.IfStmt:
			refs = append(refs, callsIn(n.Cond)...)
			if mayLeave(n.Then) || mayLeave(n.Else) {
				return refs
			}
		case *ast.WhileStmt:
			refs = append(refs, callsIn(n.Cond)...)
			if mayLeave(n.Body) {
				return refs
			}
		case *ast.ForStmt:
			refs = append(refs, callsIn(n.Start)...)
			refs = append(refs, callsIn(n.End)...)
			refs = append(refs, callsIn(n.Step)...)
			if mayLeave(n.Body) {
				return refs
			}
		case *ast.RepeatUntilStmt:
			refs = append(refs, unconditionalCalls(n.Body)...)
			if mayLeave(n.Body) {
				return refs
			}
			refs = append(refs, callsIn(n.Cond)...)
		case *ast.CaseStmt:
			refs = append(refs, callsIn(n.Subject)...)
			for _, b := range n.Branches {
				if mayLeave(b.Body) {
					return refs
				}
			}
			if mayLeave(n.Otherwise) {
				return refs
			}
		}
	}
	return refs
}

// mayLeave reports whether any statement in body, at any depth, is a
// RETURN, or a BREAK or CONTINUE that could end the enclosing loop.
func mayLeave(body []ast.Stmt) bool {
	for _, s := range body {
		switch n := s.(type) {
		case *ast.ReturnStmt, *ast.BreakStmt, *ast.ContinueStmt:
			return true
		case *ast.IfStmt:
			if mayLeave(n.Then) || mayLeave(n.Else) {
				return true
			}
		case *ast.WhileStmt:
			if mayLeave(n.Body) {
				return true
			}
		case *ast.ForStmt:
			if mayLeave(n.Body) {
				return true
			}
		case *ast.RepeatUntilStmt:
			if mayLeave(n.Body) {
				return true
			}
		case *ast.CaseStmt:
			for _, b := range n.Branches {
				if mayLeave(b.Body) {
					return true
				}
			}
			if mayLeave(n.Otherwise) {
				return true
			}
		}
	}
	return false
}

// callsIn returns the user routines e always calls. The right operand of
// AND and OR may be skipped, so it is not searched.
func callsIn(e ast.Expr) []string {
	switch n := e.(type) {
	case *ast.CallExpr:
		refs := []string{n.Callee}
		for _, a := range n.Args {
			refs = append(refs, callsIn(a)...)
		}
		return refs
	case *ast.BinaryExpr:
		refs := callsIn(n.Left)
		if n.Op == ast.OpAnd || n.Op == ast.OpOr {
			return refs
		}
		return append(refs, callsIn(n.Right)...)
	case *ast.UnaryExpr:
		return callsIn(n.Operand)
	case *ast.ArrayAccess:
		var refs []string
		for _, i := range n.Indices {
			refs = append(refs, callsIn(i)...)
		}
		return refs
	}
	return nil
}

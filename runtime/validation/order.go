package validation

import (
	"maps"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/diag"
)

// callSite is where the main program first reaches a routine.
type callSite struct {
	line   int
	inLoop bool // inside a main-program loop, so a later iteration may call again
}

func (c callSite) before(o callSite) bool {
	if c.line != o.line {
		return c.line < o.line
	}
	return !c.inLoop && o.inLoop
}

// globalRead is a routine body's use of a name that resolves to the
// program scope.
type globalRead struct {
	routine *routine
	sym     *symbol
	pos     ast.Pos
	array   bool
}

// callGraph tracks enough about calls to tell whether a routine can run
// before the globals it reads have been declared.
type callGraph struct {
	first map[*routine]callSite
	calls map[*routine][]*routine
	reads []globalRead
}

func newCallGraph() *callGraph {
	return &callGraph{
		first: make(map[*routine]callSite),
		calls: make(map[*routine][]*routine),
	}
}

// noteCall records a call to r at pos from the code being checked.
func (v *validator) noteCall(r *routine, pos ast.Pos) {
	if v.current != nil {
		v.graph.calls[v.current] = append(v.graph.calls[v.current], r)
		return
	}
	site := callSite{line: pos.Line, inLoop: v.loopDepth > 0}
	if prev, ok := v.graph.first[r]; !ok || site.before(prev) {
		v.graph.first[r] = site
	}
}

// resolve looks name up and, inside a routine body, remembers uses of
// program-level symbols.
func (v *validator) resolve(name string, pos ast.Pos, array bool) (*symbol, bool) {
	sym, ok := v.scope.lookup(name)
	if ok && v.current != nil && v.global.symbols[name] == sym {
		v.graph.reads = append(v.graph.reads, globalRead{routine: v.current, sym: sym, pos: pos, array: array})
	}
	return sym, ok
}

// earliestCalls spreads each routine's first call site through the calls
// made from routine bodies.
func (g *callGraph) earliestCalls() map[*routine]callSite {
	earliest := maps.Clone(g.first)
	for changed := true; changed; {
		changed = false
		for caller, callees := range g.calls {
			site, ok := earliest[caller]
			if !ok {
				continue
			}
			for _, callee := range callees {
				if cur, ok := earliest[callee]; !ok || site.before(cur) {
					earliest[callee] = site
					changed = true
				}
			}
		}
	}
	return earliest
}

// checkDeclarationOrder reports routine reads of globals that the main
// program declares only after it first calls the routine. A call from
// inside a loop may be repeated after the declaration, so it only warns.
func (v *validator) checkDeclarationOrder() {
	earliest := v.graph.earliestCalls()
	for _, rd := range v.graph.reads {
		site, ok := earliest[rd.routine]
		if !ok || rd.sym.pos.Line <= site.line {
			continue
		}
		what := "Variable"
		if rd.array {
			what = "Array"
		}
		format := "%s '%s' used before declaration: '%s' is called on line %d but '%s' is declared on line %d"
		args := []any{what, rd.sym.name, rd.routine.name, site.line, rd.sym.name, rd.sym.pos.Line}
		if site.inLoop {
			v.warn(rd.pos, diag.CodeUndeclaredVariable, format, args...)
			continue
		}
		v.errorf(rd.pos, diag.CodeUndeclaredVariable, format, args...)
	}
}

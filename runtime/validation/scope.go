package validation

import (
	"sort"

	"github.com/opal-lang/pseudo/core/ast"
	"github.com/opal-lang/pseudo/core/types"
)

type symbolKind int

const (
	symVariable symbolKind = iota
	symConstant
	symArray
	symParam
	symLoopVar
)

type symbol struct {
	name string
	kind symbolKind
	typ  types.DataType
	elem types.DataType // arrays only
	dims int            // arrays only; 0 when unknown (array parameters)
	pos  ast.Pos
	used bool
}

// scope mirrors the interpreter's environment chain: one for the program,
// one per routine body and one per FOR loop.
type scope struct {
	parent  *scope
	symbols map[string]*symbol
	order   []*symbol
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, symbols: make(map[string]*symbol)}
}

func (s *scope) declare(sym *symbol) {
	s.symbols[sym.name] = sym
	s.order = append(s.order, sym)
}

// local finds name in this scope only.
func (s *scope) local(name string) (*symbol, bool) {
	sym, ok := s.symbols[name]
	return sym, ok
}

// lookup finds name here or in any enclosing scope.
func (s *scope) lookup(name string) (*symbol, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// visible returns every name reachable from s, sorted, for suggestions.
func (s *scope) visible() []string {
	seen := make(map[string]bool)
	var names []string
	for sc := s; sc != nil; sc = sc.parent {
		for name := range sc.symbols {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// routine is a hoisted FUNCTION or PROCEDURE signature.
type routine struct {
	name       string
	isFunction bool
	params     []ast.Param
	returns    types.DataType
	pos        ast.Pos
}

func (r *routine) kind() string {
	if r.isFunction {
		return "FUNCTION"
	}
	return "PROCEDURE"
}

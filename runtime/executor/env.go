package executor

import (
	"github.com/opal-lang/pseudo/core/types"
)

// cell is one variable's storage. BYREF parameters share the caller's
// cell, so writes through either name are visible to both.
type cell struct {
	val      types.Value
	typ      types.DataType
	constant bool
}

// env is a scope. Environments form a strict tree: the global scope, one
// per routine call (parented to the global scope) and one per FOR loop.
type env struct {
	parent *env
	vars   map[string]*cell
}

func newEnv(parent *env) *env {
	return &env{parent: parent, vars: make(map[string]*cell)}
}

// define binds name in this scope, replacing any previous binding here.
func (e *env) define(name string, c *cell) {
	e.vars[name] = c
}

// lookup finds name here or in an enclosing scope.
func (e *env) lookup(name string) *cell {
	for s := e; s != nil; s = s.parent {
		if c, ok := s.vars[name]; ok {
			return c
		}
	}
	return nil
}

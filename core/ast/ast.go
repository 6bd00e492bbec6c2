// Package ast defines the syntax tree produced by the parser. The set of
// statement and expression variants is closed: every phase walks the tree
// through StmtVisitor and ExprVisitor, so adding a variant breaks every
// phase that does not handle it at compile time.
package ast

import (
	"github.com/opal-lang/pseudo/core/types"
)

// Pos is a 1-based source location.
type Pos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Position returns p. Embedding Pos gives every node its location.
func (p Pos) Position() Pos { return p }

// Node is any syntax tree node.
type Node interface {
	Position() Pos
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Program is the root of a parsed source file.
type Program struct {
	Body []Stmt
}

// ---- Statements ----

// VarDecl is DECLARE name : TYPE.
type VarDecl struct {
	Pos
	Name string
	Type types.DataType
}

// Dim is one array dimension, lower:upper.
type Dim struct {
	Lower Expr
	Upper Expr
}

// ArrayDecl is DECLARE name : ARRAY[l:u, ...] OF TYPE.
type ArrayDecl struct {
	Pos
	Name string
	Dims []Dim
	Elem types.DataType
}

// ConstDecl is CONSTANT name = value (or ← value).
type ConstDecl struct {
	Pos
	Name  string
	Value Expr
}

// Assignment is target ← value. Target is an *Identifier or *ArrayAccess.
type Assignment struct {
	Pos
	Target Expr
	Value  Expr
}

// IfStmt is IF cond THEN ... [ELSE ...] ENDIF. ELSE IF chains nest in Else.
type IfStmt struct {
	Pos
	Cond Expr
	Then []Stmt
	Else []Stmt
}

// WhileStmt is WHILE cond [DO] ... ENDWHILE.
type WhileStmt struct {
	Pos
	Cond Expr
	Body []Stmt
}

// ForStmt is FOR var ← start TO end [STEP step] ... NEXT [var].
type ForStmt struct {
	Pos
	Var   string
	Start Expr
	End   Expr
	Step  Expr // nil means 1
	Body  []Stmt
}

// RepeatUntilStmt is REPEAT ... UNTIL cond.
type RepeatUntilStmt struct {
	Pos
	Body []Stmt
	Cond Expr
}

// CaseLabel matches a single value, or the inclusive range Value TO Upper.
type CaseLabel struct {
	Value Expr
	Upper Expr
}

// CaseBranch is one "label[, label] : statements" arm.
type CaseBranch struct {
	Pos
	Labels []CaseLabel
	Body   []Stmt
}

// CaseStmt is CASE OF subject ... [OTHERWISE ...] ENDCASE.
type CaseStmt struct {
	Pos
	Subject   Expr
	Branches  []CaseBranch
	Otherwise []Stmt // nil when absent
}

// Param is a routine parameter. Array parameters carry Type TypeArray and
// their element type in Elem.
type Param struct {
	Pos
	Name  string
	Type  types.DataType
	Elem  types.DataType
	ByRef bool
}

// FunctionDecl is FUNCTION name(params) RETURNS TYPE ... ENDFUNCTION.
type FunctionDecl struct {
	Pos
	Name    string
	Params  []Param
	Returns types.DataType
	Body    []Stmt
}

// ProcedureDecl is PROCEDURE name(params) ... ENDPROCEDURE.
type ProcedureDecl struct {
	Pos
	Name   string
	Params []Param
	Body   []Stmt
}

// ReturnStmt is RETURN [value].
type ReturnStmt struct {
	Pos
	Value Expr // nil inside procedures
}

// CallStmt is CALL name(args).
type CallStmt struct {
	Pos
	Call *CallExpr
}

// OutputStmt is OUTPUT value[, value].
type OutputStmt struct {
	Pos
	Values []Expr
}

// InputStmt is INPUT target.
type InputStmt struct {
	Pos
	Target Expr
}

// BreakStmt exits the innermost loop.
type BreakStmt struct {
	Pos
}

// ContinueStmt skips to the next iteration of the innermost loop.
type ContinueStmt struct {
	Pos
}

// BadStmt stands in for a statement that failed to parse.
type BadStmt struct {
	Pos
	Text string
}

// ---- Expressions ----

// BinaryExpr is left op right.
type BinaryExpr struct {
	Pos
	Op    Operator
	Left  Expr
	Right Expr
}

// UnaryExpr is op operand (NOT or unary minus).
type UnaryExpr struct {
	Pos
	Op      Operator
	Operand Expr
}

// Literal is a constant value. Raw keeps the source spelling when known.
type Literal struct {
	Pos
	Value types.Value
	Raw   string
}

// Identifier is a variable or constant reference.
type Identifier struct {
	Pos
	Name string
}

// ArrayAccess is name[index, ...].
type ArrayAccess struct {
	Pos
	Name    string
	Indices []Expr
}

// CallExpr is name(args), a function or built-in call.
type CallExpr struct {
	Pos
	Callee string
	Args   []Expr
}

// BadExpr stands in for an expression that failed to parse.
type BadExpr struct {
	Pos
}

func (*VarDecl) stmtNode()         {}
func (*ArrayDecl) stmtNode()       {}
func (*ConstDecl) stmtNode()       {}
func (*Assignment) stmtNode()      {}
func (*IfStmt) stmtNode()          {}
func (*WhileStmt) stmtNode()       {}
func (*ForStmt) stmtNode()         {}
func (*RepeatUntilStmt) stmtNode() {}
func (*CaseStmt) stmtNode()        {}
func (*FunctionDecl) stmtNode()    {}
func (*ProcedureDecl) stmtNode()   {}
func (*ReturnStmt) stmtNode()      {}
func (*CallStmt) stmtNode()        {}
func (*OutputStmt) stmtNode()      {}
func (*InputStmt) stmtNode()       {}
func (*BreakStmt) stmtNode()       {}
func (*ContinueStmt) stmtNode()    {}
func (*BadStmt) stmtNode()         {}

func (*BinaryExpr) exprNode()  {}
func (*UnaryExpr) exprNode()   {}
func (*Literal) exprNode()     {}
func (*Identifier) exprNode()  {}
func (*ArrayAccess) exprNode() {}
func (*CallExpr) exprNode()    {}
func (*BadExpr) exprNode()     {}

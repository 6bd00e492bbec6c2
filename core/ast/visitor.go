package ast

import (
	"fmt"

	"github.com/opal-lang/pseudo/core/invariant"
)

// StmtVisitor has one method per statement variant.
type StmtVisitor[R any] interface {
	VisitVarDecl(*VarDecl) R
	VisitArrayDecl(*ArrayDecl) R
	VisitConstDecl(*ConstDecl) R
	VisitAssignment(*Assignment) R
	VisitIf(*IfStmt) R
	VisitWhile(*WhileStmt) R
	VisitFor(*ForStmt) R
	VisitRepeatUntil(*RepeatUntilStmt) R
	VisitCase(*CaseStmt) R
	VisitFunctionDecl(*FunctionDecl) R
	VisitProcedureDecl(*ProcedureDecl) R
	VisitReturn(*ReturnStmt) R
	VisitCallStmt(*CallStmt) R
	VisitOutput(*OutputStmt) R
	VisitInput(*InputStmt) R
	VisitBreak(*BreakStmt) R
	VisitContinue(*ContinueStmt) R
	VisitBadStmt(*BadStmt) R
}

// ExprVisitor has one method per expression variant.
type ExprVisitor[R any] interface {
	VisitBinary(*BinaryExpr) R
	VisitUnary(*UnaryExpr) R
	VisitLiteral(*Literal) R
	VisitIdentifier(*Identifier) R
	VisitArrayAccess(*ArrayAccess) R
	VisitCall(*CallExpr) R
	VisitBadExpr(*BadExpr) R
}

// AcceptStmt dispatches s to the matching method of v.
func AcceptStmt[R any](s Stmt, v StmtVisitor[R]) R {
	switch n := s.(type) {
	case *VarDecl:
		return v.VisitVarDecl(n)
	case *ArrayDecl:
		return v.VisitArrayDecl(n)
	case *ConstDecl:
		return v.VisitConstDecl(n)
	case *Assignment:
		return v.VisitAssignment(n)
	case *IfStmt:
		return v.VisitIf(n)
	case *WhileStmt:
		return v.VisitWhile(n)
	case *ForStmt:
		return v.VisitFor(n)
	case *RepeatUntilStmt:
		return v.VisitRepeatUntil(n)
	case *CaseStmt:
		return v.VisitCase(n)
	case *FunctionDecl:
		return v.VisitFunctionDecl(n)
	case *ProcedureDecl:
		return v.VisitProcedureDecl(n)
	case *ReturnStmt:
		return v.VisitReturn(n)
	case *CallStmt:
		return v.VisitCallStmt(n)
	case *OutputStmt:
		return v.VisitOutput(n)
	case *InputStmt:
		return v.VisitInput(n)
	case *BreakStmt:
		return v.VisitBreak(n)
	case *ContinueStmt:
		return v.VisitContinue(n)
	case *BadStmt:
		return v.VisitBadStmt(n)
	}
	invariant.Invariant(false, "unknown statement node %T", s)
	panic(fmt.Sprintf("unreachable: %T", s))
}

// AcceptExpr dispatches e to the matching method of v.
func AcceptExpr[R any](e Expr, v ExprVisitor[R]) R {
	switch n := e.(type) {
	case *BinaryExpr:
		return v.VisitBinary(n)
	case *UnaryExpr:
		return v.VisitUnary(n)
	case *Literal:
		return v.VisitLiteral(n)
	case *Identifier:
		return v.VisitIdentifier(n)
	case *ArrayAccess:
		return v.VisitArrayAccess(n)
	case *CallExpr:
		return v.VisitCall(n)
	case *BadExpr:
		return v.VisitBadExpr(n)
	}
	invariant.Invariant(false, "unknown expression node %T", e)
	panic(fmt.Sprintf("unreachable: %T", e))
}

package ast

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/opal-lang/pseudo/core/types"
)

const indentUnit = "    "

// Fprint writes prog to w in canonical layout: four-space indents, ← for
// assignment and one statement per line. Comments are not preserved.
func Fprint(w io.Writer, prog *Program) error {
	bw := bufio.NewWriter(w)
	p := &printer{w: bw}
	for i, s := range prog.Body {
		if i > 0 && (isRoutine(s) || isRoutine(prog.Body[i-1])) {
			p.blank()
		}
		AcceptStmt[struct{}](s, p)
	}
	return bw.Flush()
}

// Format returns the canonical text of prog.
func Format(prog *Program) string {
	var sb strings.Builder
	_ = Fprint(&sb, prog)
	return sb.String()
}

// ExprString returns the canonical text of e.
func ExprString(e Expr) string {
	return AcceptExpr[string](e, &printer{})
}

func isRoutine(s Stmt) bool {
	switch s.(type) {
	case *FunctionDecl, *ProcedureDecl:
		return true
	}
	return false
}

type printer struct {
	w     *bufio.Writer
	depth int
}

func (p *printer) line(parts ...string) {
	for i := 0; i < p.depth; i++ {
		p.w.WriteString(indentUnit)
	}
	for _, s := range parts {
		p.w.WriteString(s)
	}
	p.w.WriteByte('\n')
}

func (p *printer) blank() {
	p.w.WriteByte('\n')
}

func (p *printer) block(body []Stmt) {
	p.depth++
	for _, s := range body {
		AcceptStmt[struct{}](s, p)
	}
	p.depth--
}

func (p *printer) expr(e Expr) string {
	if e == nil {
		return ""
	}
	return AcceptExpr[string](e, p)
}

func (p *printer) exprList(es []Expr) string {
	parts := make([]string, len(es))
	for i, e := range es {
		parts[i] = p.expr(e)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) VisitVarDecl(n *VarDecl) struct{} {
	p.line("DECLARE ", n.Name, " : ", n.Type.String())
	return struct{}{}
}

func (p *printer) VisitArrayDecl(n *ArrayDecl) struct{} {
	dims := make([]string, len(n.Dims))
	for i, d := range n.Dims {
		dims[i] = p.expr(d.Lower) + ":" + p.expr(d.Upper)
	}
	p.line("DECLARE ", n.Name, " : ARRAY[", strings.Join(dims, ", "), "] OF ", n.Elem.String())
	return struct{}{}
}

func (p *printer) VisitConstDecl(n *ConstDecl) struct{} {
	p.line("CONSTANT ", n.Name, " = ", p.expr(n.Value))
	return struct{}{}
}

func (p *printer) VisitAssignment(n *Assignment) struct{} {
	p.line(p.expr(n.Target), " ← ", p.expr(n.Value))
	return struct{}{}
}

func (p *printer) VisitIf(n *IfStmt) struct{} {
	p.line("IF ", p.expr(n.Cond), " THEN")
	p.block(n.Then)
	if n.Else != nil {
		p.line("ELSE")
		p.block(n.Else)
	}
	p.line("ENDIF")
	return struct{}{}
}

func (p *printer) VisitWhile(n *WhileStmt) struct{} {
	p.line("WHILE ", p.expr(n.Cond), " DO")
	p.block(n.Body)
	p.line("ENDWHILE")
	return struct{}{}
}

func (p *printer) VisitFor(n *ForStmt) struct{} {
	head := "FOR " + n.Var + " ← " + p.expr(n.Start) + " TO " + p.expr(n.End)
	if n.Step != nil {
		head += " STEP " + p.expr(n.Step)
	}
	p.line(head)
	p.block(n.Body)
	p.line("NEXT ", n.Var)
	return struct{}{}
}

func (p *printer) VisitRepeatUntil(n *RepeatUntilStmt) struct{} {
	p.line("REPEAT")
	p.block(n.Body)
	p.line("UNTIL ", p.expr(n.Cond))
	return struct{}{}
}

func (p *printer) VisitCase(n *CaseStmt) struct{} {
	p.line("CASE OF ", p.expr(n.Subject))
	p.depth++
	for _, b := range n.Branches {
		labels := make([]string, len(b.Labels))
		for i, l := range b.Labels {
			labels[i] = p.expr(l.Value)
			if l.Upper != nil {
				labels[i] += " TO " + p.expr(l.Upper)
			}
		}
		p.line(strings.Join(labels, ", "), " :")
		p.block(b.Body)
	}
	if n.Otherwise != nil {
		p.line("OTHERWISE :")
		p.block(n.Otherwise)
	}
	p.depth--
	p.line("ENDCASE")
	return struct{}{}
}

func (p *printer) params(ps []Param) string {
	parts := make([]string, len(ps))
	for i, prm := range ps {
		var sb strings.Builder
		if prm.ByRef {
			sb.WriteString("BYREF ")
		}
		sb.WriteString(prm.Name)
		sb.WriteString(" : ")
		if prm.Type == types.TypeArray {
			sb.WriteString("ARRAY OF ")
			sb.WriteString(prm.Elem.String())
		} else {
			sb.WriteString(prm.Type.String())
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, ", ")
}

func (p *printer) VisitFunctionDecl(n *FunctionDecl) struct{} {
	p.line("FUNCTION ", n.Name, "(", p.params(n.Params), ") RETURNS ", n.Returns.String())
	p.block(n.Body)
	p.line("ENDFUNCTION")
	return struct{}{}
}

func (p *printer) VisitProcedureDecl(n *ProcedureDecl) struct{} {
	p.line("PROCEDURE ", n.Name, "(", p.params(n.Params), ")")
	p.block(n.Body)
	p.line("ENDPROCEDURE")
	return struct{}{}
}

func (p *printer) VisitReturn(n *ReturnStmt) struct{} {
	if n.Value == nil {
		p.line("RETURN")
	} else {
		p.line("RETURN ", p.expr(n.Value))
	}
	return struct{}{}
}

func (p *printer) VisitCallStmt(n *CallStmt) struct{} {
	p.line("CALL ", p.expr(n.Call))
	return struct{}{}
}

func (p *printer) VisitOutput(n *OutputStmt) struct{} {
	p.line("OUTPUT ", p.exprList(n.Values))
	return struct{}{}
}

func (p *printer) VisitInput(n *InputStmt) struct{} {
	p.line("INPUT ", p.expr(n.Target))
	return struct{}{}
}

func (p *printer) VisitBreak(*BreakStmt) struct{} {
	p.line("BREAK")
	return struct{}{}
}

func (p *printer) VisitContinue(*ContinueStmt) struct{} {
	p.line("CONTINUE")
	return struct{}{}
}

func (p *printer) VisitBadStmt(n *BadStmt) struct{} {
	p.line(n.Text)
	return struct{}{}
}

// ---- expressions ----

// operand renders child, parenthesised when it binds looser than the
// parent operator requires.
func (p *printer) operand(child Expr, minPrec int) string {
	s := p.expr(child)
	if precOf(child) < minPrec {
		return "(" + s + ")"
	}
	return s
}

func precOf(e Expr) int {
	switch n := e.(type) {
	case *BinaryExpr:
		return n.Op.Precedence()
	case *UnaryExpr:
		return n.Op.Precedence()
	}
	return PrecUnary + 1
}

func (p *printer) VisitBinary(n *BinaryExpr) string {
	prec := n.Op.Precedence()
	// Left-associative: the right operand must bind strictly tighter.
	return p.operand(n.Left, prec) + " " + n.Op.String() + " " + p.operand(n.Right, prec+1)
}

func (p *printer) VisitUnary(n *UnaryExpr) string {
	if n.Op == OpNot {
		return "NOT " + p.operand(n.Operand, PrecNot)
	}
	return "-" + p.operand(n.Operand, PrecUnary)
}

func (p *printer) VisitLiteral(n *Literal) string {
	if n.Raw != "" {
		return n.Raw
	}
	return LiteralText(n.Value)
}

func (p *printer) VisitIdentifier(n *Identifier) string {
	return n.Name
}

func (p *printer) VisitArrayAccess(n *ArrayAccess) string {
	return n.Name + "[" + p.exprList(n.Indices) + "]"
}

func (p *printer) VisitCall(n *CallExpr) string {
	return n.Callee + "(" + p.exprList(n.Args) + ")"
}

func (p *printer) VisitBadExpr(*BadExpr) string {
	return "?"
}

// LiteralText renders v as source text that lexes back to the same value.
func LiteralText(v types.Value) string {
	switch v := v.(type) {
	case types.String:
		return `"` + escape(string(v), '"') + `"`
	case types.Char:
		return "'" + escape(string(rune(v)), '\'') + "'"
	case types.Real:
		s := strconv.FormatFloat(float64(v), 'f', -1, 64)
		if !strings.ContainsAny(s, ".IN") {
			s += ".0"
		}
		return s
	case nil:
		return "NULL"
	}
	return v.String()
}

func escape(s string, quote rune) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\\':
			sb.WriteString(`\\`)
		case quote:
			sb.WriteRune('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

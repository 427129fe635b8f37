// Package cbe generates the portable C simulator: a header and body per
// definition (or per instance under compile-time parametrisation), glue per
// network, a root runnable with the time loop and CSV logger, and a
// hierarchical Makefile.
package cbe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/haml-lang/hamlc/internal/codegen"
	"github.com/haml-lang/hamlc/internal/formula"
)

// exprContext resolves variable and function references while lowering a
// formula to a C expression. Variable references go through the PrefixData
// rename context: explicit substitutes first, the scope prefix otherwise.
type exprContext struct {
	pd    codegen.PrefixData
	funcs map[string]string // function name -> C function name
	data  string            // first argument passed to function calls, e.g. "d"
}

func (ctx exprContext) lvalue(name string) string {
	if lv, ok := ctx.pd.Renames[name]; ok {
		return lv
	}
	return ctx.pd.Prefix + name
}

// renderExpr lowers a formula. Subexpressions are parenthesised outright so
// the emitted code never depends on C precedence.
func renderExpr(f formula.Formula, ctx exprContext) string {
	switch n := f.(type) {
	case *formula.Lit:
		if n.Type == formula.Boolean {
			return strconv.FormatBool(n.Bool)
		}
		return cFloat(n.Real)

	case *formula.Var:
		return ctx.lvalue(n.Name)

	case *formula.Unary:
		if n.Op == formula.Not {
			return "(!" + renderExpr(n.X, ctx) + ")"
		}
		return "(-" + renderExpr(n.X, ctx) + ")"

	case *formula.Binary:
		x := renderExpr(n.X, ctx)
		y := renderExpr(n.Y, ctx)
		if n.Op == formula.Pow {
			return fmt.Sprintf("pow(%s, %s)", x, y)
		}
		return fmt.Sprintf("(%s %s %s)", x, cBinOp(n.Op), y)

	case *formula.Nary:
		parts := make([]string, len(n.Xs))
		for i, x := range n.Xs {
			parts[i] = renderExpr(x, ctx)
		}
		return "(" + strings.Join(parts, " "+cBinOp(n.Op)+" ") + ")"

	case *formula.Call:
		name := n.Name
		if cname, ok := ctx.funcs[name]; ok {
			name = cname
		}
		args := make([]string, 0, len(n.Args)+1)
		if ctx.data != "" {
			args = append(args, ctx.data)
		}
		for _, a := range n.Args {
			args = append(args, renderExpr(a, ctx))
		}
		return name + "(" + strings.Join(args, ", ") + ")"

	case *formula.BuiltinCall:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = renderExpr(a, ctx)
		}
		return cBuiltin(n.Name) + "(" + strings.Join(args, ", ") + ")"

	default:
		return "0"
	}
}

func cBinOp(op formula.BinOp) string {
	switch op {
	case formula.Add:
		return "+"
	case formula.Sub:
		return "-"
	case formula.Mul:
		return "*"
	case formula.Div:
		return "/"
	case formula.Eq:
		return "=="
	case formula.Ne:
		return "!="
	case formula.Lt:
		return "<"
	case formula.Le:
		return "<="
	case formula.Gt:
		return ">"
	case formula.Ge:
		return ">="
	case formula.LAnd:
		return "&&"
	case formula.LOr:
		return "||"
	default:
		return "?"
	}
}

// cBuiltin maps builtins onto math.h names.
func cBuiltin(name string) string {
	if name == "ln" {
		return "log"
	}
	return name
}

// cFloat renders a real literal. Integral values keep a trailing .0 so the
// C expression stays in double arithmetic.
func cFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// cType lowers a variable type.
func cType(t formula.Type) string {
	if t == formula.Boolean {
		return "bool"
	}
	return "double"
}
